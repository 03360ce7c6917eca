// Structure of the history tree
/*
File
 ├── Header region (4096 bytes): magic, versions, block size, fan-out, root
 └── Blocks, one per node, addressed by sequence number
        ├── Core node: intervals + child table (start, end, seq, extension slots)
        └── Leaf node: intervals

- intervals inside a node are sorted by (end, start, attribute)
- every interval of a node starts at or after the node start
- a node end is the maximum end of its intervals and of its children
- the latest branch holds one ACTIVE node per depth, root first
- nodes refer to each other by sequence number only
*/
package historytree

import (
	"log/slog"
	"sync"

	"StateHistory/interval"
	"StateHistory/types"
)

// Size of the header shared by every node block:
// type(1), seq(4), parentSeq(4), start(8), end(8), intervalCount(4).
const CommonHeaderSize = 1 + 4 + 4 + 8 + 8 + 4

// Node is the storage unit of the tree, one per block.
type Node struct {
	ext         Extension
	blockSize   int
	maxChildren int

	nodeType types.NodeType
	seq      int32
	start    int64

	parentSeq int32
	end       int64
	state     types.NodeState

	intervals       []interval.Interval
	sizeOfIntervals int
	minQuark        int32
	maxQuark        int32

	children *childTable // nil for leaf nodes

	mu sync.RWMutex // guards everything below the immutable identity fields
}

// childTable is the fixed-capacity descriptor array of a core node.
type childTable struct {
	count  int
	seqs   []int32
	starts []int64
	ends   []int64
	extras []ChildExtra
}

// ChildDescriptor is the parent's view of one child subtree.
type ChildDescriptor struct {
	Seq      int32
	Start    int64
	End      int64
	MinQuark int32
	MaxQuark int32
}

// CloseEvent is emitted when a node is closed. The tree applies it to the
// parent's child slot.
type CloseEvent struct {
	Seq   int32
	Start int64
	End   int64
	Extra ChildExtra
}

// Config is the block model of a new tree.
type Config struct {
	BlockSize       int
	MaxChildren     int
	ProviderVersion int32
	TreeStart       int64
	Extension       Extension // defaults to the quark extension
}

// Options are the runtime collaborators of a tree.
type Options struct {
	Logger     *slog.Logger
	Metrics    *Metrics
	CacheBytes int64 // 0 disables the node cache
	Mmap       bool  // map reopened files read-only where supported
}

// Tree is a history tree bound to one pager.
type Tree struct {
	path string
	cfg  Config

	pager   Pager
	cache   *NodeCache
	logger  *slog.Logger
	metrics *Metrics

	writeMu sync.Mutex // serializes the writer: Insert, Finish, Close

	mu           sync.RWMutex // guards the fields below
	latestBranch []*Node
	rootSeq      int32
	nodeCount    int32
	end          int64
	finished     bool
	released     bool
}
