package historytree

import (
	"context"
	"fmt"
	"time"

	"StateHistory/condition"
	"StateHistory/interval"
	"StateHistory/types"
)

// Iterator walks the tree depth first, one node at a time, yielding the
// intervals accepted by both conditions. Matches of one node come in storage
// order and nodes are visited parent first, older children first.
//
// The iterator copies the matches of a node under the node's read lock, so
// it can run alongside the writer.
type Iterator struct {
	tree   *Tree
	ctx    context.Context
	times  condition.RangeCondition[int64]
	quarks condition.RangeCondition[int32]

	stack   []childVisit
	buf     []interval.Interval
	pos     int
	cur     interval.Interval
	err     error
	visited int
	started time.Time
	done    bool
}

// Query returns an iterator over the intervals intersecting times whose
// attribute is accepted by quarks. Nil conditions accept everything.
func (t *Tree) Query(ctx context.Context, times condition.RangeCondition[int64], quarks condition.RangeCondition[int32]) *Iterator {
	if times == nil {
		times = condition.AllTimes()
	}
	if quarks == nil {
		quarks = condition.AllQuarks()
	}
	it := &Iterator{tree: t, ctx: ctx, times: times, quarks: quarks}
	it.Reset()
	return it
}

// Reset rewinds the iterator to the root.
func (it *Iterator) Reset() {
	it.stack = append(it.stack[:0], childVisit{seq: it.tree.RootSeq(), times: it.times, quarks: it.quarks})
	it.buf = nil
	it.pos = 0
	it.cur = interval.Interval{}
	it.err = nil
	it.visited = 0
	it.done = false
	it.started = time.Now()
	if it.tree.isReleased() {
		it.err = types.ErrClosedTree
	}
}

// Next advances to the next match. It returns false when the tree is
// exhausted or an error occurred.
func (it *Iterator) Next() bool {
	for {
		if it.pos < len(it.buf) {
			it.cur = it.buf[it.pos]
			it.pos++
			return true
		}
		if it.err != nil || len(it.stack) == 0 {
			it.finish()
			return false
		}
		if err := it.ctx.Err(); err != nil {
			it.err = err
			continue
		}
		it.visit()
	}
}

func (it *Iterator) visit() {
	top := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]

	node, err := it.tree.Node(top.seq)
	if err != nil {
		it.err = fmt.Errorf("query visiting node %d: %w", top.seq, err)
		return
	}
	it.visited++
	it.tree.metrics.NodeVisits.Inc()

	it.buf = node.matching(top.times, top.quarks)
	it.pos = 0

	children := node.selectNextChildren(top.times, top.quarks)
	// Pushed in reverse so the oldest child is popped first
	for i := len(children) - 1; i >= 0; i-- {
		it.stack = append(it.stack, children[i])
	}
}

func (it *Iterator) finish() {
	if it.done {
		return
	}
	it.done = true
	it.tree.metrics.QueryDuration.Observe(time.Since(it.started).Seconds())
}

// Interval returns the current match.
func (it *Iterator) Interval() interval.Interval { return it.cur }

// Err returns the error that stopped the iteration, if any. Cancellation of
// the context is reported as the context error.
func (it *Iterator) Err() error { return it.err }

// Visited is the number of nodes read so far.
func (it *Iterator) Visited() int { return it.visited }

// Collect drains a query into a slice.
func (t *Tree) Collect(ctx context.Context, times condition.RangeCondition[int64], quarks condition.RangeCondition[int32]) ([]interval.Interval, error) {
	it := t.Query(ctx, times, quarks)
	var out []interval.Interval
	for it.Next() {
		out = append(out, it.Interval())
	}
	return out, it.Err()
}

// QueryAt returns the intervals alive at time t for the given attributes.
func (t *Tree) QueryAt(ctx context.Context, at int64, quarks condition.RangeCondition[int32]) ([]interval.Interval, error) {
	return t.Collect(ctx, condition.Singleton(at), quarks)
}
