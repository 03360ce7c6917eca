package historytree

import (
	"encoding/binary"
	"fmt"

	"StateHistory/types"
)

// Header is the fixed region at the start of a history file.
type Header struct {
	Magic           int32
	FileVersion     int32
	ProviderVersion int32
	BlockSize       int32
	MaxChildren     int32
	TreeStart       int64
	RootSeq         int32
	NodeCount       int32
}

// encodeHeader serializes the header, zero padded to TreeHeaderSize.
// Format: magic(4), fileVersion(4), providerVersion(4), blockSize(4),
// maxChildren(4), treeStart(8), rootSeq(4), nodeCount(4)
func encodeHeader(h Header) []byte {
	buf := make([]byte, types.TreeHeaderSize)
	offset := 0

	for _, v := range []int32{h.Magic, h.FileVersion, h.ProviderVersion, h.BlockSize, h.MaxChildren} {
		binary.LittleEndian.PutUint32(buf[offset:], uint32(v))
		offset += 4
	}
	binary.LittleEndian.PutUint64(buf[offset:], uint64(h.TreeStart))
	offset += 8
	binary.LittleEndian.PutUint32(buf[offset:], uint32(h.RootSeq))
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], uint32(h.NodeCount))

	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < types.TreeHeaderSize {
		return Header{}, fmt.Errorf("%w: header is %d bytes", types.ErrFormatMismatch, len(buf))
	}
	var h Header
	offset := 0
	read32 := func() int32 {
		v := int32(binary.LittleEndian.Uint32(buf[offset:]))
		offset += 4
		return v
	}

	h.Magic = read32()
	h.FileVersion = read32()
	h.ProviderVersion = read32()
	h.BlockSize = read32()
	h.MaxChildren = read32()
	h.TreeStart = int64(binary.LittleEndian.Uint64(buf[offset:]))
	offset += 8
	h.RootSeq = read32()
	h.NodeCount = read32()
	return h, nil
}

// validate checks the header against the formats this package reads and
// returns the matching extension.
func (h Header) validate(expectedProviderVersion int32) (Extension, error) {
	ext, ok := extensionByMagic(h.Magic)
	if !ok {
		return nil, fmt.Errorf("%w: unknown magic %#x", types.ErrFormatMismatch, h.Magic)
	}
	if h.FileVersion != ext.FileVersion() {
		return nil, fmt.Errorf("%w: file version %d, expected %d", types.ErrVersionMismatch, h.FileVersion, ext.FileVersion())
	}
	if h.ProviderVersion != expectedProviderVersion {
		return nil, fmt.Errorf("%w: provider version %d, expected %d", types.ErrVersionMismatch, h.ProviderVersion, expectedProviderVersion)
	}
	if h.MaxChildren < 2 || int(h.BlockSize) < MinBlockSize(int(h.MaxChildren), ext) {
		return nil, fmt.Errorf("%w: block size %d with %d children", types.ErrFormatMismatch, h.BlockSize, h.MaxChildren)
	}
	if h.NodeCount < 1 || h.RootSeq < 0 || h.RootSeq >= h.NodeCount {
		return nil, fmt.Errorf("%w: root %d of %d nodes", types.ErrCorruptBlock, h.RootSeq, h.NodeCount)
	}
	return ext, nil
}
