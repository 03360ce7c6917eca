package historytree

import (
	"fmt"
	"sync"

	"StateHistory/types"
)

// Pager is the block storage under a tree. Block seq lives at
// TreeHeaderSize + seq*blockSize.
type Pager interface {
	ReadHeader() ([]byte, error)
	WriteHeader(data []byte) error
	ReadBlock(seq int32) ([]byte, error)
	WriteBlock(seq int32, data []byte) error
	Size() (int64, error)
	Sync() error
	Close() error
}

func blockOffset(seq int32, blockSize int) int64 {
	return types.TreeHeaderSize + int64(seq)*int64(blockSize)
}

// InMemoryPager keeps blocks in a map. It backs NewInMemory trees and tests.
type InMemoryPager struct {
	blockSize int
	header    []byte
	blocks    map[int32][]byte
	mu        sync.RWMutex
	closed    bool
}

func NewInMemoryPager(blockSize int) *InMemoryPager {
	return &InMemoryPager{
		blockSize: blockSize,
		blocks:    make(map[int32][]byte),
	}
}

func (p *InMemoryPager) ReadHeader() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, fmt.Errorf("pager is closed")
	}
	if p.header == nil {
		return nil, fmt.Errorf("header not written")
	}
	out := make([]byte, types.TreeHeaderSize)
	copy(out, p.header)
	return out, nil
}

func (p *InMemoryPager) WriteHeader(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("pager is closed")
	}
	if len(data) != types.TreeHeaderSize {
		return fmt.Errorf("header size %d does not match %d", len(data), types.TreeHeaderSize)
	}
	p.header = append([]byte(nil), data...)
	return nil
}

func (p *InMemoryPager) ReadBlock(seq int32) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, fmt.Errorf("pager is closed")
	}
	data, ok := p.blocks[seq]
	if !ok {
		return nil, fmt.Errorf("block %d not found", seq)
	}

	// Return a copy so callers cannot modify stored blocks
	out := make([]byte, p.blockSize)
	copy(out, data)
	return out, nil
}

func (p *InMemoryPager) WriteBlock(seq int32, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("pager is closed")
	}
	if len(data) != p.blockSize {
		return fmt.Errorf("data size %d does not match block size %d", len(data), p.blockSize)
	}
	p.blocks[seq] = append([]byte(nil), data...)
	return nil
}

// Size is the size the blocks would take in a file.
func (p *InMemoryPager) Size() (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var last int32 = -1
	for seq := range p.blocks {
		last = max(last, seq)
	}
	return blockOffset(last+1, p.blockSize), nil
}

func (p *InMemoryPager) Sync() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("pager is closed")
	}
	return nil
}

func (p *InMemoryPager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.blocks = nil
	p.header = nil
	p.closed = true
	return nil
}
