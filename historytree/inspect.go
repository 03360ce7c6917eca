// Dump of a history file for debugging.

package historytree

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"StateHistory/types"
)

// InspectFile opens a finished history file and prints its structure to stdout.
func InspectFile(path string) error {
	return InspectFileTo(os.Stdout, path, false)
}

// InspectFileTo writes a human-readable dump of the file to w: the header,
// then every node level by level. With intervals set the content of each
// node is listed too.
func InspectFileTo(w io.Writer, path string, intervals bool) error {
	h, err := ReadHeaderFile(path)
	if err != nil {
		return err
	}
	t, err := Open(path, h.ProviderVersion, Options{})
	if err != nil {
		return err
	}
	defer t.Close()
	return t.Dump(w, intervals)
}

// Dump writes the tree structure to w, breadth first.
func (t *Tree) Dump(w io.Writer, intervals bool) error {
	p := func(format string, args ...any) { fmt.Fprintf(w, format, args...) }
	pln := func(s string) { fmt.Fprintln(w, s) }

	h := t.Header()
	size, err := t.FileSize()
	if err != nil {
		return err
	}
	ext := t.cfg.Extension
	p("History file: %s\n", t.path)
	p("  Header: magic=%#x (%s) version=%d provider=%d\n", h.Magic, ext.Name(), h.FileVersion, h.ProviderVersion)
	p("  Blocks: %s each, %d max children, %d nodes, %s on disk\n",
		humanize.IBytes(uint64(h.BlockSize)), h.MaxChildren, h.NodeCount, humanize.IBytes(uint64(size)))
	p("  Span:   [%d, %d], root %d, depth %d\n", h.TreeStart, t.EndTime(), h.RootSeq, t.Depth())

	pln("\n  Nodes (BFS):")
	pln("  ---")

	queue := []int32{h.RootSeq}
	level := 0
	for len(queue) > 0 {
		width := len(queue)
		p("  Level %d:\n", level)
		for _, seq := range queue[:width] {
			node, err := t.Node(seq)
			if err != nil {
				p("    [node %d] read error: %v\n", seq, err)
				continue
			}
			minQ, maxQ := node.QuarkBounds()
			p("    [node %d] %s %s parent=%d span=[%d, %d] intervals=%d used=%.1f%%",
				seq, node.Type(), node.State(), node.ParentSeq(), node.Start(), node.End(),
				node.NumIntervals(), node.Occupancy()*100)
			if node.NumIntervals() > 0 {
				p(" quarks=[%d, %d]", minQ, maxQ)
			}
			pln("")
			for _, c := range node.Children() {
				end := fmt.Sprint(c.End)
				if c.End == types.UnknownChildEnd {
					end = "open"
				}
				p("      child %d: [%d, %s] quarks=[%d, %d]\n", c.Seq, c.Start, end, c.MinQuark, c.MaxQuark)
				queue = append(queue, c.Seq)
			}
			if intervals {
				for _, iv := range node.Intervals() {
					p("      %s\n", iv)
				}
			}
		}
		pln("  ---")
		queue = queue[width:]
		level++
	}

	if err := t.Verify(context.Background()); err != nil {
		p("  Verify: %v\n", err)
	} else {
		pln("  Verify: ok")
	}
	return nil
}
