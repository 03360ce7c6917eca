package historytree

import (
	"fmt"
	"slices"
	"sort"

	"StateHistory/condition"
	"StateHistory/interval"
	"StateHistory/types"
)

// coreHeaderSize is the size of the child table of a core node:
// childCount(4), then maxChildren starts(8), ends(8), seqs(4) and the
// extension slots.
func coreHeaderSize(maxChildren int, ext Extension) int {
	return 4 + maxChildren*(8+8+4+ext.SlotSize())
}

// MinBlockSize is the smallest block able to hold the headers of a core node.
func MinBlockSize(maxChildren int, ext Extension) int {
	return CommonHeaderSize + coreHeaderSize(maxChildren, ext)
}

func newNode(cfg Config, nodeType types.NodeType, seq, parentSeq int32, start int64) *Node {
	n := &Node{
		ext:         cfg.Extension,
		blockSize:   cfg.BlockSize,
		maxChildren: cfg.MaxChildren,
		nodeType:    nodeType,
		seq:         seq,
		start:       start,
		parentSeq:   parentSeq,
		end:         start,
		state:       types.NodeActive,
		minQuark:    types.EmptyNodeMinQuark,
		maxQuark:    types.EmptyNodeMaxQuark,
	}
	if nodeType == types.NodeTypeCore {
		n.children = newChildTable(cfg.MaxChildren)
	}
	return n
}

func newChildTable(maxChildren int) *childTable {
	return &childTable{
		seqs:   make([]int32, maxChildren),
		starts: make([]int64, maxChildren),
		ends:   make([]int64, maxChildren),
		extras: make([]ChildExtra, maxChildren),
	}
}

func (n *Node) Seq() int32           { return n.seq }
func (n *Node) Start() int64         { return n.start }
func (n *Node) Type() types.NodeType { return n.nodeType }
func (n *Node) Extension() Extension { return n.ext }
func (n *Node) IsLeaf() bool         { return n.nodeType == types.NodeTypeLeaf }
func (n *Node) headerSize() int      { return headerSize(n.nodeType, n.maxChildren, n.ext) }
func (n *Node) capacityLeft() int    { return n.blockSize - n.headerSize() - n.sizeOfIntervals }
func (n *Node) String() string       { return fmt.Sprintf("%s node %d", n.nodeType, n.seq) }

func headerSize(nodeType types.NodeType, maxChildren int, ext Extension) int {
	if nodeType == types.NodeTypeCore {
		return CommonHeaderSize + coreHeaderSize(maxChildren, ext)
	}
	return CommonHeaderSize
}

func (n *Node) ParentSeq() int32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parentSeq
}

func (n *Node) setParentSeq(seq int32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parentSeq = seq
}

// End is the node end time. It is only final once the node is closed.
func (n *Node) End() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.end
}

func (n *Node) State() types.NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// QuarkBounds are the min and max attribute of the node's own intervals.
func (n *Node) QuarkBounds() (int32, int32) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.minQuark, n.maxQuark
}

func (n *Node) NumIntervals() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.intervals)
}

// Intervals returns a copy of the node's intervals in storage order.
func (n *Node) Intervals() []interval.Interval {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.intervals)
}

// Occupancy is the used share of the block, headers included.
func (n *Node) Occupancy() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return float64(n.headerSize()+n.sizeOfIntervals) / float64(n.blockSize)
}

func (n *Node) ChildCount() int {
	if n.children == nil {
		return 0
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.children.count
}

// Children returns the descriptors of the linked children, oldest first.
func (n *Node) Children() []ChildDescriptor {
	if n.children == nil {
		return nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.children.descriptors()
}

func (c *childTable) descriptors() []ChildDescriptor {
	out := make([]ChildDescriptor, c.count)
	for i := range out {
		out[i] = ChildDescriptor{
			Seq:      c.seqs[i],
			Start:    c.starts[i],
			End:      c.ends[i],
			MinQuark: c.extras[i].MinQuark,
			MaxQuark: c.extras[i].MaxQuark,
		}
	}
	return out
}

func (n *Node) hasRoomFor(iv interval.Interval) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return iv.SizeOnDisk() <= n.capacityLeft()
}

func (n *Node) hasRoomForChild() bool {
	return n.ChildCount() < n.maxChildren
}

// add places iv in the node keeping the (end, start, attribute) order.
func (n *Node) add(iv interval.Interval) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != types.NodeActive {
		return fmt.Errorf("%w: %s is %s", types.ErrNodeClosed, n, n.state)
	}
	size := iv.SizeOnDisk()
	if size > n.capacityLeft() {
		return fmt.Errorf("%w: %s has %d bytes left, interval needs %d", types.ErrCapacity, n, n.capacityLeft(), size)
	}

	idx, _ := slices.BinarySearchFunc(n.intervals, iv, interval.Compare)
	n.intervals = slices.Insert(n.intervals, idx, iv)
	n.sizeOfIntervals += size
	n.minQuark = min(n.minQuark, iv.Attribute)
	n.maxQuark = max(n.maxQuark, iv.Attribute)
	return nil
}

// linkChild appends child to the child table. A child already on disk is
// summarized right away; an open child gets the unknown defaults until its
// close event arrives.
func (n *Node) linkChild(child *Node) error {
	if n.children == nil {
		return fmt.Errorf("%w: cannot link %s under %s", types.ErrTypeMismatch, child, n)
	}
	if child.ext.Name() != n.ext.Name() {
		return fmt.Errorf("%w: %s extension under %s extension", types.ErrTypeMismatch, child.ext.Name(), n.ext.Name())
	}

	end, extra := types.UnknownChildEnd, n.ext.Unknown()
	if child.State() == types.NodeOnDisk {
		end, extra = child.End(), n.ext.Summarize(child)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	c := n.children
	if c.count == n.maxChildren {
		return fmt.Errorf("%w: %s already has %d children", types.ErrCapacity, n, c.count)
	}
	c.seqs[c.count] = child.seq
	c.starts[c.count] = child.start
	c.ends[c.count] = end
	c.extras[c.count] = extra
	c.count++
	return nil
}

// applyChildClose copies the child summary into its slot.
func (n *Node) applyChildClose(ev CloseEvent) error {
	if n.children == nil {
		return fmt.Errorf("%w: close event for %d sent to %s", types.ErrTypeMismatch, ev.Seq, n)
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	c := n.children
	for i := 0; i < c.count; i++ {
		if c.seqs[i] == ev.Seq {
			c.ends[i] = ev.End
			c.extras[i] = ev.Extra
			return nil
		}
	}
	return fmt.Errorf("close event for node %d: not a child of %s", ev.Seq, n)
}

// close freezes the node. Its end becomes the maximum of endFloor, its start,
// its interval ends and the ends of its closed children.
func (n *Node) close(endFloor int64) (CloseEvent, error) {
	n.mu.Lock()
	if n.state != types.NodeActive {
		n.mu.Unlock()
		return CloseEvent{}, fmt.Errorf("%w: %s is %s", types.ErrNodeClosed, n, n.state)
	}

	end := max(endFloor, n.start)
	if len(n.intervals) > 0 {
		// Sorted by end, the last interval ends last
		end = max(end, n.intervals[len(n.intervals)-1].End)
	}
	if n.children != nil {
		for i := 0; i < n.children.count; i++ {
			if e := n.children.ends[i]; e != types.UnknownChildEnd {
				end = max(end, e)
			}
		}
	}
	n.end = end
	n.state = types.NodeClosed
	n.mu.Unlock()

	return CloseEvent{Seq: n.seq, Start: n.start, End: end, Extra: n.ext.Summarize(n)}, nil
}

func (n *Node) markOnDisk() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = types.NodeOnDisk
}

// matching returns the intervals accepted by both conditions.
func (n *Node) matching(times condition.RangeCondition[int64], quarks condition.RangeCondition[int32]) []interval.Interval {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(n.intervals) == 0 || !quarks.Intersects(n.minQuark, n.maxQuark) {
		return nil
	}
	// Intervals ending before the window cannot match
	lo := sort.Search(len(n.intervals), func(i int) bool { return n.intervals[i].End >= times.Min() })

	var out []interval.Interval
	for _, iv := range n.intervals[lo:] {
		if iv.Start > times.Max() {
			continue
		}
		if quarks.Contains(iv.Attribute) && times.Intersects(iv.Start, iv.End) {
			out = append(out, iv)
		}
	}
	return out
}

// childVisit is a child to descend into, with the conditions narrowed to
// its span.
type childVisit struct {
	seq    int32
	times  condition.RangeCondition[int64]
	quarks condition.RangeCondition[int32]
}

// selectNextChildren returns the children whose time span intersects times
// and whose extension metadata is admitted by quarks, oldest first.
func (n *Node) selectNextChildren(times condition.RangeCondition[int64], quarks condition.RangeCondition[int32]) []childVisit {
	if n.children == nil {
		return nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	c := n.children
	var out []childVisit
	for i := 0; i < c.count; i++ {
		if !times.Intersects(c.starts[i], c.ends[i]) || !n.ext.Admit(c.extras[i], quarks) {
			continue
		}
		v := childVisit{seq: c.seqs[i], times: times, quarks: quarks}
		if sub, err := times.SubCondition(c.starts[i], c.ends[i]); err == nil {
			v.times = sub
		}
		if sub, err := quarks.SubCondition(c.extras[i].MinQuark, c.extras[i].MaxQuark); err == nil {
			v.quarks = sub
		}
		out = append(out, v)
	}
	return out
}
