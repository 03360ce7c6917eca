package historytree

import (
	"log/slog"
	"math"

	"StateHistory/types"
)

// addSiblingNode replaces the latest branch below the first ancestor of
// depth that can take another child. When no ancestor can, the tree grows
// a new root.
func (t *Tree) addSiblingNode(depth int, splitTime int64) error {
	branch := t.LatestBranch()
	for depth > 0 && !branch[depth-1].hasRoomForChild() {
		depth--
	}
	if depth == 0 {
		return t.addNewRootNode(splitTime)
	}

	if err := t.closeBranch(depth, math.MinInt64); err != nil {
		return err
	}

	parent := branch[depth-1]
	for i := depth; i < len(branch); i++ {
		node := t.allocateNode(nodeTypeAt(i, len(branch)), parent.seq, splitTime)

		// Publish before linking so every linked seq is reachable
		t.mu.Lock()
		t.latestBranch[i] = node
		t.mu.Unlock()

		if err := parent.linkChild(node); err != nil {
			return err
		}
		parent = node
	}
	return t.writeHeader()
}

// addNewRootNode closes the whole branch and puts a new root above the old
// one. The old root is already on disk when it is linked, so the new root
// pulls its summary.
func (t *Tree) addNewRootNode(splitTime int64) error {
	branch := t.LatestBranch()
	oldRoot := branch[0]

	t.mu.Lock()
	newRootSeq := t.nodeCount
	t.nodeCount++
	t.mu.Unlock()
	oldRoot.setParentSeq(newRootSeq)

	if err := t.closeBranch(0, math.MinInt64); err != nil {
		return err
	}

	newRoot := newNode(t.cfg, types.NodeTypeCore, newRootSeq, types.NoParent, oldRoot.start)
	if err := newRoot.linkChild(oldRoot); err != nil {
		return err
	}

	depth := len(branch) + 1
	newBranch := make([]*Node, 0, depth)
	newBranch = append(newBranch, newRoot)
	parent := newRoot
	for i := 1; i < depth; i++ {
		node := t.allocateNode(nodeTypeAt(i, depth), parent.seq, splitTime)
		if err := parent.linkChild(node); err != nil {
			return err
		}
		newBranch = append(newBranch, node)
		parent = node
	}

	t.mu.Lock()
	t.latestBranch = newBranch
	t.rootSeq = newRootSeq
	t.mu.Unlock()

	t.logger.Debug("tree grew a new root",
		slog.Int("root", int(newRootSeq)),
		slog.Int("depth", depth),
		slog.Int64("split_time", splitTime))
	return t.writeHeader()
}

func (t *Tree) allocateNode(nodeType types.NodeType, parentSeq int32, start int64) *Node {
	t.mu.Lock()
	seq := t.nodeCount
	t.nodeCount++
	t.mu.Unlock()
	return newNode(t.cfg, nodeType, seq, parentSeq, start)
}

func nodeTypeAt(depth, branchLen int) types.NodeType {
	if depth == branchLen-1 {
		return types.NodeTypeLeaf
	}
	return types.NodeTypeCore
}
