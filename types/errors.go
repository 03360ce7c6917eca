package types

import "errors"

// Error taxonomy of the history engine. Every error returned by the engine
// wraps one of these, so callers decide with errors.Is whether to rebuild the
// history (format/version mismatch) or abort (I/O, programmer errors).
var (
	// ErrConfig reports bad construction parameters or invalid input values.
	ErrConfig = errors.New("invalid configuration")

	// ErrFormatMismatch is returned when a file does not carry the expected magic number.
	ErrFormatMismatch = errors.New("history file format mismatch")

	// ErrVersionMismatch is returned when the file or provider version differs.
	ErrVersionMismatch = errors.New("history file version mismatch")

	// ErrClosedTree is returned when inserting into a closed or read-only tree.
	ErrClosedTree = errors.New("history tree is closed")

	// ErrNodeClosed is returned when adding to a node that is no longer active.
	ErrNodeClosed = errors.New("node is closed")

	// ErrCapacity means a child was linked to a full node. It indicates a bug
	// in the branch splitting protocol.
	ErrCapacity = errors.New("node child table is full")

	// ErrTypeMismatch means a child of the wrong kind was linked.
	ErrTypeMismatch = errors.New("node type mismatch")

	// ErrCorruptBlock is returned when a block cannot be decoded.
	ErrCorruptBlock = errors.New("corrupt node block")
)
