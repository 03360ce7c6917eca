package historytree

import (
	"encoding/binary"
	"fmt"

	"StateHistory/interval"
	"StateHistory/types"
)

// encodeNode serializes a node to one block.
// Format:
//   - Common header (29 bytes): type(1), seq(4), parentSeq(4), start(8), end(8), intervalCount(4)
//   - Core nodes: childCount(4), starts[maxChildren], ends[maxChildren],
//     seqs[maxChildren], extension slots
//   - Intervals, in storage order
//   - Zero padding up to the block size
func encodeNode(n *Node) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	block := make([]byte, n.blockSize)
	offset := 0

	block[offset] = byte(n.nodeType)
	offset += 1
	binary.LittleEndian.PutUint32(block[offset:], uint32(n.seq))
	offset += 4
	binary.LittleEndian.PutUint32(block[offset:], uint32(n.parentSeq))
	offset += 4
	binary.LittleEndian.PutUint64(block[offset:], uint64(n.start))
	offset += 8
	binary.LittleEndian.PutUint64(block[offset:], uint64(n.end))
	offset += 8
	binary.LittleEndian.PutUint32(block[offset:], uint32(len(n.intervals)))
	offset += 4

	if n.children != nil {
		offset += encodeChildTable(block[offset:], n.children, n.maxChildren, n.ext)
	}

	for i, iv := range n.intervals {
		written, err := iv.Encode(block[offset:])
		if err != nil {
			return nil, fmt.Errorf("failed to encode interval %d of %s: %w", i, n, err)
		}
		offset += written
	}
	return block, nil
}

// encodeChildTable writes all maxChildren slots. Unused slots carry the
// unknown defaults.
func encodeChildTable(buf []byte, c *childTable, maxChildren int, ext Extension) int {
	offset := 0
	binary.LittleEndian.PutUint32(buf[offset:], uint32(c.count))
	offset += 4

	for i := 0; i < maxChildren; i++ {
		binary.LittleEndian.PutUint64(buf[offset:], uint64(c.starts[i]))
		offset += 8
	}
	for i := 0; i < maxChildren; i++ {
		end := c.ends[i]
		if i >= c.count {
			end = types.UnknownChildEnd
		}
		binary.LittleEndian.PutUint64(buf[offset:], uint64(end))
		offset += 8
	}
	for i := 0; i < maxChildren; i++ {
		binary.LittleEndian.PutUint32(buf[offset:], uint32(c.seqs[i]))
		offset += 4
	}

	extras := make([]ChildExtra, maxChildren)
	copy(extras, c.extras[:c.count])
	for i := c.count; i < maxChildren; i++ {
		extras[i] = ext.Unknown()
	}
	offset += ext.writeSlots(buf[offset:], extras)
	return offset
}

// decodeNode rebuilds an on-disk node from its block.
func decodeNode(block []byte, cfg Config) (*Node, error) {
	if len(block) != cfg.BlockSize {
		return nil, fmt.Errorf("%w: block is %d bytes, expected %d", types.ErrCorruptBlock, len(block), cfg.BlockSize)
	}
	offset := 0

	nodeType := types.NodeType(block[offset])
	offset += 1
	if nodeType != types.NodeTypeCore && nodeType != types.NodeTypeLeaf {
		return nil, fmt.Errorf("%w: node type %d", types.ErrCorruptBlock, nodeType)
	}
	seq := int32(binary.LittleEndian.Uint32(block[offset:]))
	offset += 4
	parentSeq := int32(binary.LittleEndian.Uint32(block[offset:]))
	offset += 4
	start := int64(binary.LittleEndian.Uint64(block[offset:]))
	offset += 8
	end := int64(binary.LittleEndian.Uint64(block[offset:]))
	offset += 8
	count := int(binary.LittleEndian.Uint32(block[offset:]))
	offset += 4

	n := newNode(cfg, nodeType, seq, parentSeq, start)
	n.end = end
	n.state = types.NodeOnDisk

	if n.children != nil {
		read, err := decodeChildTable(block[offset:], n.children, cfg.MaxChildren, cfg.Extension)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", seq, err)
		}
		offset += read
	}

	if count < 0 || count > (len(block)-offset)/interval.FixedHeaderSize {
		return nil, fmt.Errorf("%w: node %d claims %d intervals", types.ErrCorruptBlock, seq, count)
	}
	n.intervals = make([]interval.Interval, 0, count)
	for i := 0; i < count; i++ {
		iv, read, err := interval.Decode(block[offset:])
		if err != nil {
			return nil, fmt.Errorf("node %d interval %d: %w", seq, i, err)
		}
		offset += read
		n.intervals = append(n.intervals, iv)
		n.sizeOfIntervals += read
		n.minQuark = min(n.minQuark, iv.Attribute)
		n.maxQuark = max(n.maxQuark, iv.Attribute)
	}
	return n, nil
}

func decodeChildTable(buf []byte, c *childTable, maxChildren int, ext Extension) (int, error) {
	need := coreHeaderSize(maxChildren, ext)
	if len(buf) < need {
		return 0, fmt.Errorf("%w: child table needs %d bytes, have %d", types.ErrCorruptBlock, need, len(buf))
	}
	offset := 0
	c.count = int(binary.LittleEndian.Uint32(buf[offset:]))
	offset += 4
	if c.count < 0 || c.count > maxChildren {
		return 0, fmt.Errorf("%w: %d children, max %d", types.ErrCorruptBlock, c.count, maxChildren)
	}

	for i := 0; i < maxChildren; i++ {
		c.starts[i] = int64(binary.LittleEndian.Uint64(buf[offset:]))
		offset += 8
	}
	for i := 0; i < maxChildren; i++ {
		c.ends[i] = int64(binary.LittleEndian.Uint64(buf[offset:]))
		offset += 8
	}
	for i := 0; i < maxChildren; i++ {
		c.seqs[i] = int32(binary.LittleEndian.Uint32(buf[offset:]))
		offset += 4
	}
	extras, read := ext.readSlots(buf[offset:], maxChildren)
	copy(c.extras, extras)
	offset += read
	return offset, nil
}
