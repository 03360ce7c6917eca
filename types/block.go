package types

import "math"

const (
	// TreeHeaderSize is the fixed region reserved for the tree header at the
	// start of every history file. Node blocks follow it.
	TreeHeaderSize = 4096

	// DefaultBlockSize is the size of one node block on disk.
	DefaultBlockSize   = 64 * 1024
	DefaultMaxChildren = 50

	// NoParent is the parent sequence number of a root node.
	NoParent int32 = -1
)

// Child descriptor defaults for a child that is linked but not closed yet.
// They cover every possible value so that queries still descend into it.
const (
	UnknownChildEnd      int64 = math.MaxInt64
	UnknownChildMinQuark int32 = 0
	UnknownChildMaxQuark int32 = math.MaxInt32
	EmptyNodeMinQuark    int32 = math.MaxInt32
	EmptyNodeMaxQuark    int32 = 0
)

type NodeType uint8

const (
	NodeTypeUnknown NodeType = iota
	NodeTypeCore
	NodeTypeLeaf
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeCore:
		return "CORE"
	case NodeTypeLeaf:
		return "LEAF"
	default:
		return "UNKNOWN"
	}
}

// NodeState is the lifecycle of a node: ACTIVE -> CLOSED -> ON_DISK.
type NodeState uint8

const (
	NodeActive NodeState = iota
	NodeClosed
	NodeOnDisk
)

func (s NodeState) String() string {
	switch s {
	case NodeActive:
		return "ACTIVE"
	case NodeClosed:
		return "CLOSED"
	case NodeOnDisk:
		return "ON_DISK"
	default:
		return "UNKNOWN"
	}
}
