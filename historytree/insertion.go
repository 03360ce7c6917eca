package historytree

import (
	"fmt"
	"log/slog"

	"StateHistory/interval"
	"StateHistory/types"
)

// ErrIntervalTooLarge is returned for intervals that do not fit an empty leaf.
var ErrIntervalTooLarge = fmt.Errorf("%w: larger than a leaf block", interval.ErrInvalidInterval)

// Insert adds iv to the deepest node of the latest branch that starts at or
// before iv.Start, splitting the branch when that node is full.
func (t *Tree) Insert(iv interval.Interval) error {
	if err := iv.Validate(); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.Finished() {
		return fmt.Errorf("%w: cannot insert %s", types.ErrClosedTree, iv)
	}
	if iv.Start < t.cfg.TreeStart {
		return fmt.Errorf("%w: %s starts before the tree start %d", interval.ErrInvalidInterval, iv, t.cfg.TreeStart)
	}
	if size, room := iv.SizeOnDisk(), t.cfg.BlockSize-CommonHeaderSize; size > room {
		return fmt.Errorf("%w: %s needs %d bytes, a leaf holds %d", ErrIntervalTooLarge, iv, size, room)
	}

	depth := t.insertionDepth(iv.Start)
	node := t.branchNode(depth)
	if !node.hasRoomFor(iv) {
		if err := t.addSiblingNode(depth, iv.Start); err != nil {
			return err
		}
		// The fresh leaf starts at iv.Start and is empty
		node = t.branchNode(t.Depth() - 1)
	}
	if err := node.add(iv); err != nil {
		return err
	}

	t.mu.Lock()
	t.end = max(t.end, iv.End)
	t.mu.Unlock()
	t.metrics.IntervalsInserted.Inc()
	return nil
}

// insertionDepth is the deepest level whose node starts at or before start.
// Starts never decrease going down the branch and the root starts at the
// tree start, so the scan always ends at a valid level.
func (t *Tree) insertionDepth(start int64) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	depth := len(t.latestBranch) - 1
	for depth > 0 && t.latestBranch[depth].start > start {
		depth--
	}
	return depth
}

func (t *Tree) branchNode(depth int) *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latestBranch[depth]
}

// closeNode closes n, hands its close event to parent, then writes it.
// A nil parent drops the event: the node is linked later and pulls its
// summary itself.
func (t *Tree) closeNode(n, parent *Node, endFloor int64) error {
	ev, err := n.close(endFloor)
	if err != nil {
		return err
	}
	if parent != nil {
		if err := parent.applyChildClose(ev); err != nil {
			return err
		}
	}

	block, err := encodeNode(n)
	if err != nil {
		return err
	}
	if err := t.pager.WriteBlock(n.seq, block); err != nil {
		return err
	}
	n.markOnDisk()
	t.cache.Put(n)
	t.metrics.NodesClosed.Inc()

	t.logger.Debug("node closed",
		slog.Int("seq", int(n.seq)),
		slog.String("type", n.nodeType.String()),
		slog.Int64("start", ev.Start),
		slog.Int64("end", ev.End),
		slog.Int("intervals", n.NumIntervals()))
	return nil
}

// closeBranch closes the latest branch from the leaf up to depth, inclusive.
func (t *Tree) closeBranch(depth int, endFloor int64) error {
	branch := t.LatestBranch()
	for i := len(branch) - 1; i >= depth; i-- {
		var parent *Node
		if i > 0 {
			parent = branch[i-1]
		}
		if err := t.closeNode(branch[i], parent, endFloor); err != nil {
			return fmt.Errorf("failed to close depth %d: %w", i, err)
		}
	}
	return nil
}
