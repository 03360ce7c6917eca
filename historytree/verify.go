package historytree

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"StateHistory/condition"
	"StateHistory/types"
)

// Verify walks every reachable node and checks that each parent's child
// descriptors agree with the children themselves, and that every interval
// lies inside its node's span. Point queries at the children's boundary
// times must select exactly the children whose span contains them. All
// violations found are joined.
func (t *Tree) Verify(ctx context.Context) error {
	var errs []error
	report := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{types.ErrCorruptBlock}, args...)...))
	}

	queue := []int32{t.RootSeq()}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		seq := queue[0]
		queue = queue[1:]

		node, err := t.Node(seq)
		if err != nil {
			return err
		}
		closed := node.State() != types.NodeActive
		for _, iv := range node.Intervals() {
			if iv.Start < node.Start() {
				report("%s in node %d starts before the node", iv, seq)
			}
			if closed && iv.End > node.End() {
				report("%s in node %d ends after the node", iv, seq)
			}
		}

		var spans []childSpan
		for _, desc := range node.Children() {
			child, err := t.Node(desc.Seq)
			if err != nil {
				return err
			}
			if child.ParentSeq() != seq {
				report("node %d has parent %d, linked under %d", desc.Seq, child.ParentSeq(), seq)
			}
			if desc.Start != child.Start() || child.Start() < node.Start() {
				report("node %d starts at %d, descriptor says %d", desc.Seq, child.Start(), desc.Start)
			}
			span := childSpan{seq: desc.Seq, start: child.Start(), end: types.UnknownChildEnd}
			if child.State() == types.NodeActive {
				if desc.End != types.UnknownChildEnd {
					report("open node %d has a final end %d", desc.Seq, desc.End)
				}
			} else {
				if desc.End != child.End() {
					report("node %d ends at %d, descriptor says %d", desc.Seq, child.End(), desc.End)
				}
				extra := t.cfg.Extension.Summarize(child)
				if extra.MinQuark != desc.MinQuark || extra.MaxQuark != desc.MaxQuark {
					report("node %d quarks [%d, %d], descriptor says [%d, %d]",
						desc.Seq, extra.MinQuark, extra.MaxQuark, desc.MinQuark, desc.MaxQuark)
				}
				// An empty subtree is never selected by attribute
				span.end, span.empty = child.End(), extra.MinQuark > extra.MaxQuark
			}
			spans = append(spans, span)
			queue = append(queue, desc.Seq)
		}
		checkChildSelection(node, spans, report)
	}
	return errors.Join(errs...)
}

type childSpan struct {
	seq        int32
	start, end int64
	empty      bool
}

func (s childSpan) contains(t int64) bool { return !s.empty && s.start <= t && t <= s.end }

func checkChildSelection(node *Node, spans []childSpan, report func(string, ...any)) {
	if len(spans) == 0 {
		return
	}
	var times []int64
	for _, s := range spans {
		times = append(times, s.start)
		if s.start > node.Start() {
			times = append(times, s.start-1)
		}
		if s.end != types.UnknownChildEnd {
			times = append(times, s.end)
			if s.end < math.MaxInt64 {
				times = append(times, s.end+1)
			}
		}
	}
	slices.Sort(times)
	times = slices.Compact(times)

	closed := node.State() != types.NodeActive
	for _, at := range times {
		if at < node.Start() || (closed && at > node.End()) {
			continue
		}
		var want, got []int32
		for _, s := range spans {
			if s.contains(at) {
				want = append(want, s.seq)
			}
		}
		for _, v := range node.selectNextChildren(condition.Singleton(at), condition.AllQuarks()) {
			got = append(got, v.seq)
		}
		if !slices.Equal(got, want) {
			report("node %d selects children %v at %d, want %v", node.Seq(), got, at, want)
		}
	}
}
