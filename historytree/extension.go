package historytree

import (
	"encoding/binary"

	"StateHistory/condition"
	"StateHistory/types"
)

// ChildExtra is the per-child metadata kept by an extension, next to the
// child's time span.
type ChildExtra struct {
	MinQuark int32
	MaxQuark int32
}

// Extension is the pluggable strategy for per-child metadata of core nodes.
// It decides what a parent remembers about a closed child, how that is laid
// out on disk and whether a query can skip the child.
type Extension interface {
	Name() string
	Magic() int32
	FileVersion() int32

	// SlotSize is the number of bytes stored per child slot.
	SlotSize() int
	// Unknown is the metadata of a linked child that is not closed yet.
	Unknown() ChildExtra
	// Summarize computes the metadata of a closed child from its content.
	Summarize(n *Node) ChildExtra
	// Admit reports whether a child with this metadata may hold a match.
	Admit(extra ChildExtra, quarks condition.RangeCondition[int32]) bool

	writeSlots(buf []byte, extras []ChildExtra) int
	readSlots(buf []byte, count int) ([]ChildExtra, int)
}

var (
	QuarkExtension Extension = quarkExtension{}
	PlainExtension Extension = plainExtension{}
)

// ExtensionByName returns the extension registered under name.
func ExtensionByName(name string) (Extension, bool) {
	switch name {
	case "", QuarkExtension.Name():
		return QuarkExtension, true
	case PlainExtension.Name():
		return PlainExtension, true
	}
	return nil, false
}

func extensionByMagic(magic int32) (Extension, bool) {
	for _, ext := range []Extension{QuarkExtension, PlainExtension} {
		if ext.Magic() == magic {
			return ext, true
		}
	}
	return nil, false
}

// quarkExtension keeps the min/max quark of each child subtree. Queries for
// a set of attributes skip the children whose quark range misses the set.
type quarkExtension struct{}

func (quarkExtension) Name() string       { return "quark" }
func (quarkExtension) Magic() int32       { return 0x05FFB100 }
func (quarkExtension) FileVersion() int32 { return 8 }
func (quarkExtension) SlotSize() int      { return 4 + 4 }

func (quarkExtension) Unknown() ChildExtra {
	return ChildExtra{MinQuark: types.UnknownChildMinQuark, MaxQuark: types.UnknownChildMaxQuark}
}

// Summarize merges the node's own quark bounds with those of its children.
func (quarkExtension) Summarize(n *Node) ChildExtra {
	n.mu.RLock()
	defer n.mu.RUnlock()

	extra := ChildExtra{MinQuark: n.minQuark, MaxQuark: n.maxQuark}
	if n.children != nil {
		for i := 0; i < n.children.count; i++ {
			extra.MinQuark = min(extra.MinQuark, n.children.extras[i].MinQuark)
			extra.MaxQuark = max(extra.MaxQuark, n.children.extras[i].MaxQuark)
		}
	}
	return extra
}

func (quarkExtension) Admit(extra ChildExtra, quarks condition.RangeCondition[int32]) bool {
	return quarks.Intersects(extra.MinQuark, extra.MaxQuark)
}

// Slots are written as two arrays: all min quarks, then all max quarks.
func (quarkExtension) writeSlots(buf []byte, extras []ChildExtra) int {
	offset := 0
	for _, e := range extras {
		binary.LittleEndian.PutUint32(buf[offset:], uint32(e.MinQuark))
		offset += 4
	}
	for _, e := range extras {
		binary.LittleEndian.PutUint32(buf[offset:], uint32(e.MaxQuark))
		offset += 4
	}
	return offset
}

func (quarkExtension) readSlots(buf []byte, count int) ([]ChildExtra, int) {
	extras := make([]ChildExtra, count)
	offset := 0
	for i := range extras {
		extras[i].MinQuark = int32(binary.LittleEndian.Uint32(buf[offset:]))
		offset += 4
	}
	for i := range extras {
		extras[i].MaxQuark = int32(binary.LittleEndian.Uint32(buf[offset:]))
		offset += 4
	}
	return extras, offset
}

// plainExtension keeps nothing beyond the time span: a time-only
// overlapping history tree.
type plainExtension struct{}

func (plainExtension) Name() string       { return "plain" }
func (plainExtension) Magic() int32       { return 0x05FFB000 }
func (plainExtension) FileVersion() int32 { return 8 }
func (plainExtension) SlotSize() int      { return 0 }

func (plainExtension) Unknown() ChildExtra {
	return ChildExtra{MinQuark: types.UnknownChildMinQuark, MaxQuark: types.UnknownChildMaxQuark}
}

func (p plainExtension) Summarize(*Node) ChildExtra { return p.Unknown() }

func (plainExtension) Admit(ChildExtra, condition.RangeCondition[int32]) bool { return true }

func (plainExtension) writeSlots([]byte, []ChildExtra) int { return 0 }

func (p plainExtension) readSlots(_ []byte, count int) ([]ChildExtra, int) {
	extras := make([]ChildExtra, count)
	for i := range extras {
		extras[i] = p.Unknown()
	}
	return extras, 0
}
