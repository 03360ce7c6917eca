package historytree

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// NodeCache keeps decoded on-disk nodes in memory. Only nodes that can no
// longer change are cached, so there is nothing to flush or pin.
type NodeCache struct {
	cache     *ristretto.Cache[int32, *Node]
	blockSize int64
}

// NewNodeCache creates a cache bounded to maxBytes worth of blocks.
func NewNodeCache(maxBytes int64, blockSize int) (*NodeCache, error) {
	blocks := max(maxBytes/int64(blockSize), 1)
	cache, err := ristretto.NewCache(&ristretto.Config[int32, *Node]{
		NumCounters: blocks * 10,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create node cache: %w", err)
	}
	return &NodeCache{cache: cache, blockSize: int64(blockSize)}, nil
}

func (c *NodeCache) Get(seq int32) (*Node, bool) {
	if c == nil {
		return nil, false
	}
	return c.cache.Get(seq)
}

// Put adds an on-disk node. Admission is best effort.
func (c *NodeCache) Put(node *Node) {
	if c == nil {
		return
	}
	c.cache.Set(node.Seq(), node, c.blockSize)
}

// Wait blocks until buffered writes are applied.
func (c *NodeCache) Wait() {
	if c == nil {
		return
	}
	c.cache.Wait()
}

func (c *NodeCache) Close() {
	if c == nil {
		return
	}
	c.cache.Close()
}
