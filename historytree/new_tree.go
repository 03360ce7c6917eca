package historytree

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"StateHistory/logging"
	"StateHistory/types"
)

// DefaultConfig returns the default block model starting at treeStart.
func DefaultConfig(treeStart int64) Config {
	return Config{
		BlockSize:   types.DefaultBlockSize,
		MaxChildren: types.DefaultMaxChildren,
		TreeStart:   treeStart,
		Extension:   QuarkExtension,
	}
}

func (c Config) withDefaults() Config {
	if c.Extension == nil {
		c.Extension = QuarkExtension
	}
	if c.BlockSize == 0 {
		c.BlockSize = types.DefaultBlockSize
	}
	if c.MaxChildren == 0 {
		c.MaxChildren = types.DefaultMaxChildren
	}
	return c
}

func (c Config) validate() error {
	if c.MaxChildren < 2 {
		return fmt.Errorf("%w: max children %d, need at least 2", types.ErrConfig, c.MaxChildren)
	}
	if need := MinBlockSize(c.MaxChildren, c.Extension); c.BlockSize < need {
		return fmt.Errorf("%w: block size %d below the %d byte node headers", types.ErrConfig, c.BlockSize, need)
	}
	if c.BlockSize > math.MaxInt32 {
		return fmt.Errorf("%w: block size %d", types.ErrConfig, c.BlockSize)
	}
	return nil
}

// Create creates a new history file at path, truncating any existing file.
func Create(path string, cfg Config, opts Options) (*Tree, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pager, err := CreateOnDiskPager(path, cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	t, err := newTree(path, cfg, pager, opts)
	if err != nil {
		pager.Close()
		return nil, err
	}
	return t, nil
}

// NewInMemory creates a tree backed by an in-memory pager.
func NewInMemory(cfg Config, opts Options) (*Tree, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newTree("", cfg, NewInMemoryPager(cfg.BlockSize), opts)
}

// NewWithPager creates a tree on a caller supplied pager.
func NewWithPager(cfg Config, pager Pager, opts Options) (*Tree, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newTree("", cfg, pager, opts)
}

func newTree(path string, cfg Config, pager Pager, opts Options) (*Tree, error) {
	t := &Tree{
		path:    path,
		cfg:     cfg,
		pager:   pager,
		logger:  componentLogger(opts.Logger),
		metrics: opts.Metrics,
	}
	if t.metrics == nil {
		t.metrics = NewMetrics(nil)
	}
	if opts.CacheBytes > 0 {
		cache, err := NewNodeCache(opts.CacheBytes, cfg.BlockSize)
		if err != nil {
			return nil, err
		}
		t.cache = cache
	}

	root := newNode(cfg, types.NodeTypeLeaf, 0, types.NoParent, cfg.TreeStart)
	t.latestBranch = []*Node{root}
	t.rootSeq = 0
	t.nodeCount = 1
	t.end = cfg.TreeStart

	if err := t.writeHeader(); err != nil {
		t.cache.Close()
		return nil, err
	}
	t.logger.Info("history tree created",
		slog.String("path", path),
		slog.Int("block_size", cfg.BlockSize),
		slog.Int("max_children", cfg.MaxChildren),
		slog.String("extension", cfg.Extension.Name()),
		slog.Int64("start", cfg.TreeStart))
	return t, nil
}

// Open reopens a finished history file read-only. The header must carry
// expectedProviderVersion.
func Open(path string, expectedProviderVersion int32, opts Options) (*Tree, error) {
	h, err := ReadHeaderFile(path)
	if err != nil {
		return nil, err
	}
	ext, err := h.validate(expectedProviderVersion)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg := Config{
		BlockSize:       int(h.BlockSize),
		MaxChildren:     int(h.MaxChildren),
		ProviderVersion: h.ProviderVersion,
		TreeStart:       h.TreeStart,
		Extension:       ext,
	}

	var pager Pager
	if opts.Mmap {
		pager, err = OpenMmapPager(path, cfg.BlockSize)
	} else {
		pager, err = OpenOnDiskPager(path, cfg.BlockSize)
	}
	if err != nil {
		return nil, err
	}

	t, err := reopen(path, cfg, h, pager, opts)
	if err != nil {
		pager.Close()
		return nil, err
	}
	return t, nil
}

// reopen rebuilds the latest branch by following the last child of every
// core node from the root.
func reopen(path string, cfg Config, h Header, pager Pager, opts Options) (*Tree, error) {
	t := &Tree{
		path:      path,
		cfg:       cfg,
		pager:     pager,
		logger:    componentLogger(opts.Logger),
		metrics:   opts.Metrics,
		rootSeq:   h.RootSeq,
		nodeCount: h.NodeCount,
		finished:  true,
	}
	if t.metrics == nil {
		t.metrics = NewMetrics(nil)
	}
	if opts.CacheBytes > 0 {
		cache, err := NewNodeCache(opts.CacheBytes, cfg.BlockSize)
		if err != nil {
			return nil, err
		}
		t.cache = cache
	}

	seq := h.RootSeq
	for {
		node, err := t.readNode(seq)
		if err != nil {
			t.cache.Close()
			return nil, fmt.Errorf("failed to load latest branch: %w", err)
		}
		if len(t.latestBranch) > 0 && node.ParentSeq() != t.latestBranch[len(t.latestBranch)-1].Seq() {
			t.cache.Close()
			return nil, fmt.Errorf("%w: node %d does not point back to its parent", types.ErrCorruptBlock, seq)
		}
		t.latestBranch = append(t.latestBranch, node)
		children := node.Children()
		if node.IsLeaf() || len(children) == 0 {
			break
		}
		seq = children[len(children)-1].Seq
	}
	t.end = t.latestBranch[0].End()

	t.logger.Info("history tree opened",
		slog.String("path", path),
		slog.Int("nodes", int(h.NodeCount)),
		slog.Int("depth", len(t.latestBranch)),
		slog.Int64("start", h.TreeStart),
		slog.Int64("end", t.end))
	return t, nil
}

func componentLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return logging.Discard()
	}
	return l.With(slog.String("component", "historytree"))
}

func (t *Tree) header() Header {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Header{
		Magic:           t.cfg.Extension.Magic(),
		FileVersion:     t.cfg.Extension.FileVersion(),
		ProviderVersion: t.cfg.ProviderVersion,
		BlockSize:       int32(t.cfg.BlockSize),
		MaxChildren:     int32(t.cfg.MaxChildren),
		TreeStart:       t.cfg.TreeStart,
		RootSeq:         t.rootSeq,
		NodeCount:       t.nodeCount,
	}
}

func (t *Tree) writeHeader() error {
	if err := t.pager.WriteHeader(encodeHeader(t.header())); err != nil {
		return fmt.Errorf("failed to write tree header: %w", err)
	}
	return nil
}

// Header returns the header as it would be written now.
func (t *Tree) Header() Header { return t.header() }

func (t *Tree) Path() string     { return t.path }
func (t *Tree) Config() Config   { return t.cfg }
func (t *Tree) StartTime() int64 { return t.cfg.TreeStart }

// EndTime is the largest end time inserted, or the end the tree was closed at.
func (t *Tree) EndTime() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.end
}

func (t *Tree) NodeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(t.nodeCount)
}

func (t *Tree) Depth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.latestBranch)
}

func (t *Tree) RootSeq() int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootSeq
}

// LatestBranch returns the nodes of the latest branch, root first.
func (t *Tree) LatestBranch() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Node(nil), t.latestBranch...)
}

// Finished reports whether the tree accepts no more intervals.
func (t *Tree) Finished() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finished
}

// FileSize is the size of the history file, or what it would be for an
// in-memory tree.
func (t *Tree) FileSize() (int64, error) {
	return t.pager.Size()
}

// Node returns the node with the given sequence number, from the latest
// branch if it is still there, otherwise from storage.
func (t *Tree) Node(seq int32) (*Node, error) {
	t.mu.RLock()
	if t.released {
		t.mu.RUnlock()
		return nil, types.ErrClosedTree
	}
	if seq < 0 || seq >= t.nodeCount {
		t.mu.RUnlock()
		return nil, fmt.Errorf("node %d out of range [0, %d)", seq, t.nodeCount)
	}
	for _, n := range t.latestBranch {
		if n.seq == seq {
			t.mu.RUnlock()
			return n, nil
		}
	}
	t.mu.RUnlock()

	// Not in the latest branch: the node was written before it left it
	return t.readNode(seq)
}

func (t *Tree) readNode(seq int32) (*Node, error) {
	if n, ok := t.cache.Get(seq); ok {
		t.metrics.CacheHits.Inc()
		return n, nil
	}
	t.metrics.CacheMisses.Inc()

	block, err := t.pager.ReadBlock(seq)
	if err != nil {
		return nil, err
	}
	n, err := decodeNode(block, t.cfg)
	if err != nil {
		return nil, err
	}
	if n.seq != seq {
		return nil, fmt.Errorf("%w: block %d holds node %d", types.ErrCorruptBlock, seq, n.seq)
	}
	t.cache.Put(n)
	return n, nil
}

// IsFormatError reports whether err means the file should be rebuilt
// rather than read.
func IsFormatError(err error) bool {
	return errors.Is(err, types.ErrFormatMismatch) || errors.Is(err, types.ErrVersionMismatch)
}
