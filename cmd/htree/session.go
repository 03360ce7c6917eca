package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"StateHistory/backend"
	"StateHistory/condition"
	"StateHistory/interval"
	"StateHistory/quarkdb"
)

// session is an open history with its attribute names.
type session struct {
	b   *backend.Backend
	reg *quarkdb.Registry
}

// resolve turns attribute paths into a quark condition. A path ending in
// "/" selects every attribute below it. No paths means every attribute.
func (s *session) resolve(paths []string) (condition.RangeCondition[int32], error) {
	if len(paths) == 0 {
		return condition.AllQuarks(), nil
	}
	var quarks []int32
	for _, p := range paths {
		if strings.HasSuffix(p, "/") {
			entries, err := s.reg.List(p)
			if err != nil {
				return nil, err
			}
			if len(entries) == 0 {
				return nil, fmt.Errorf("%w: nothing below %q", quarkdb.ErrUnknownAttribute, p)
			}
			for _, e := range entries {
				quarks = append(quarks, e.Quark)
			}
			continue
		}
		q, err := s.reg.Lookup(p)
		if err != nil {
			return nil, err
		}
		quarks = append(quarks, q)
	}
	return condition.NewDiscrete(quarks)
}

func (s *session) name(quark int32) string {
	if name, err := s.reg.Name(quark); err == nil {
		return name
	}
	return fmt.Sprintf("#%d", quark)
}

func (s *session) printInterval(w io.Writer, iv interval.Interval) {
	fmt.Fprintf(w, "%d..%d %s = %s\n", iv.Start, iv.End, s.name(iv.Attribute), iv.Value)
}

// at prints the states alive at t.
func (s *session) at(ctx context.Context, w io.Writer, t int64, paths []string) error {
	quarks, err := s.resolve(paths)
	if err != nil {
		return err
	}
	res, err := s.b.QueryTimes(ctx, []int64{t}, quarks)
	if err != nil {
		return err
	}
	for _, iv := range res[0] {
		s.printInterval(w, iv)
	}
	fmt.Fprintf(w, "%d intervals at %d\n", len(res[0]), t)
	return nil
}

// between prints every state intersecting [from, to].
func (s *session) between(ctx context.Context, w io.Writer, from, to int64, paths []string) error {
	quarks, err := s.resolve(paths)
	if err != nil {
		return err
	}
	times, err := condition.NewContinuous(from, to)
	if err != nil {
		return err
	}
	it := s.b.Query2D(ctx, quarks, times)
	n := 0
	for it.Next() {
		s.printInterval(w, it.Interval())
		n++
	}
	if err := it.Err(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d intervals in [%d, %d], %d nodes visited\n", n, from, to, it.Visited())
	return nil
}

func (s *session) attrs(w io.Writer, prefix string) error {
	entries, err := s.reg.List(prefix)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%6d %s\n", e.Quark, e.Path)
	}
	return nil
}

func (s *session) stats(ctx context.Context, w io.Writer) error {
	t := s.b.Tree()
	h := t.Header()

	size, err := s.b.FileSize()
	if err != nil {
		return err
	}
	attrs, err := s.reg.Count()
	if err != nil {
		return err
	}
	it := t.Query(ctx, condition.AllTimes(), condition.AllQuarks())
	var count int64
	for it.Next() {
		count++
	}
	if err := it.Err(); err != nil {
		return err
	}

	fmt.Fprintf(w, "file:         %s\n", t.Path())
	fmt.Fprintf(w, "size:         %s\n", humanize.IBytes(uint64(size)))
	fmt.Fprintf(w, "block size:   %s, max children %d\n", humanize.IBytes(uint64(h.BlockSize)), h.MaxChildren)
	fmt.Fprintf(w, "extension:    %s\n", t.Config().Extension.Name())
	fmt.Fprintf(w, "nodes:        %s (depth %d)\n", humanize.Comma(int64(t.NodeCount())), t.Depth())
	fmt.Fprintf(w, "time range:   [%d, %d]\n", s.b.StartTime(), s.b.EndTime())
	fmt.Fprintf(w, "intervals:    %s\n", humanize.Comma(count))
	fmt.Fprintf(w, "attributes:   %d\n", attrs)
	if count > 0 && t.NodeCount() > 0 {
		fmt.Fprintf(w, "per node:     %.1f intervals\n", float64(count)/float64(t.NodeCount()))
	}
	return nil
}
