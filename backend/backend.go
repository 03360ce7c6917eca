// Package backend exposes a history tree through the calls a state system
// makes: inserting past states as they end, point queries at one time and
// two dimensional queries over attributes and time.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"StateHistory/condition"
	"StateHistory/config"
	"StateHistory/historytree"
	"StateHistory/interval"
	"StateHistory/logging"
	"StateHistory/types"
)

// ErrTimeRange is returned for point queries outside [StartTime, EndTime].
var ErrTimeRange = fmt.Errorf("%w: time outside the history range", types.ErrConfig)

type Options struct {
	Logger  *slog.Logger
	Metrics *historytree.Metrics

	// Parallelism bounds QueryTimes. Defaults to 4.
	Parallelism int
}

// Backend owns one history tree.
type Backend struct {
	cfg         config.Backend
	tree        *historytree.Tree
	logger      *slog.Logger
	parallelism int

	mu       sync.Mutex
	building bool
	closed   bool
}

// Open reopens the history at cfg.Path when it exists and creates it
// otherwise. A file in another format or version is an error, unless
// cfg.RebuildOnMismatch is set in which case it is removed and rebuilt.
func Open(cfg config.Backend, opts Options) (*Backend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With(slog.String("component", "backend"))

	ext, ok := historytree.ExtensionByName(cfg.Extension)
	if !ok {
		return nil, fmt.Errorf("%w: unknown extension %q", types.ErrConfig, cfg.Extension)
	}
	treeCfg := historytree.Config{
		BlockSize:       cfg.BlockSize,
		MaxChildren:     cfg.MaxChildren,
		ProviderVersion: cfg.ProviderVersion,
		TreeStart:       cfg.StartTime,
		Extension:       ext,
	}
	treeOpts := historytree.Options{
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
		CacheBytes: cfg.CacheBytes,
		Mmap:       cfg.Mmap,
	}

	b := &Backend{cfg: cfg, logger: logger, parallelism: opts.Parallelism}
	if b.parallelism <= 0 {
		b.parallelism = 4
	}

	var err error
	switch {
	case cfg.InMemory:
		b.tree, err = historytree.NewInMemory(treeCfg, treeOpts)
		b.building = true
	case fileExists(cfg.Path):
		b.tree, err = historytree.Open(cfg.Path, cfg.ProviderVersion, treeOpts)
		if err != nil && historytree.IsFormatError(err) && cfg.RebuildOnMismatch {
			logger.Warn("history file does not match, rebuilding",
				slog.String("path", cfg.Path),
				slog.String("error", err.Error()))
			if rmErr := os.Remove(cfg.Path); rmErr != nil {
				return nil, fmt.Errorf("remove stale history: %w", rmErr)
			}
			b.tree, err = historytree.Create(cfg.Path, treeCfg, treeOpts)
			b.building = true
		}
	default:
		b.tree, err = historytree.Create(cfg.Path, treeCfg, treeOpts)
		b.building = true
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Tree gives direct access to the underlying tree.
func (b *Backend) Tree() *historytree.Tree { return b.tree }

// Building reports whether the history is still being written.
func (b *Backend) Building() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.building
}

func (b *Backend) StartTime() int64 { return b.tree.StartTime() }
func (b *Backend) EndTime() int64   { return b.tree.EndTime() }

// InsertPastState stores the state value of quark over [start, end].
func (b *Backend) InsertPastState(start, end int64, quark int32, value interval.Value) error {
	iv, err := interval.New(start, end, quark, value)
	if err != nil {
		return err
	}
	return b.tree.Insert(iv)
}

// FinishedBuilding closes the history at endTime. Queries keep working.
func (b *Backend) FinishedBuilding(endTime int64) error {
	if err := b.tree.FinishAt(endTime); err != nil {
		return err
	}
	b.mu.Lock()
	b.building = false
	b.mu.Unlock()
	return nil
}

func (b *Backend) checkTime(t int64) error {
	if t < b.StartTime() || t > b.EndTime() {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrTimeRange, t, b.StartTime(), b.EndTime())
	}
	return nil
}

// QuerySingle returns the interval of quark alive at t. ok is false when
// the attribute has no state at t.
func (b *Backend) QuerySingle(ctx context.Context, t int64, quark int32) (iv interval.Interval, ok bool, err error) {
	if err := b.checkTime(t); err != nil {
		return interval.Interval{}, false, err
	}
	it := b.tree.Query(ctx, condition.Singleton(t), condition.Singleton(quark))
	for it.Next() {
		// Overlapping states of one attribute only come from out of order
		// input; the latest start wins like in QueryFull.
		if cur := it.Interval(); !ok || cur.Start > iv.Start {
			iv, ok = cur, true
		}
	}
	return iv, ok, it.Err()
}

// QueryFull returns the state of every attribute alive at t, keyed by quark.
func (b *Backend) QueryFull(ctx context.Context, t int64) (map[int32]interval.Interval, error) {
	if err := b.checkTime(t); err != nil {
		return nil, err
	}
	out := make(map[int32]interval.Interval)
	it := b.tree.Query(ctx, condition.Singleton(t), condition.AllQuarks())
	for it.Next() {
		cur := it.Interval()
		if prev, ok := out[cur.Attribute]; !ok || cur.Start > prev.Start {
			out[cur.Attribute] = cur
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Query2D iterates over the intervals of quarks intersecting times.
func (b *Backend) Query2D(ctx context.Context, quarks condition.RangeCondition[int32], times condition.RangeCondition[int64]) *historytree.Iterator {
	return b.tree.Query(ctx, times, quarks)
}

// QueryTimes runs one point query per time, concurrently. Result i holds
// the intervals alive at times[i], in tree order.
func (b *Backend) QueryTimes(ctx context.Context, times []int64, quarks condition.RangeCondition[int32]) ([][]interval.Interval, error) {
	for _, t := range times {
		if err := b.checkTime(t); err != nil {
			return nil, err
		}
	}

	out := make([][]interval.Interval, len(times))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for i, t := range times {
		g.Go(func() error {
			ivs, err := b.tree.QueryAt(ctx, t, quarks)
			if err != nil {
				return fmt.Errorf("query at %d: %w", t, err)
			}
			out[i] = ivs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) FileSize() (int64, error) { return b.tree.FileSize() }

// Close releases the history. A history that was never finished is
// incomplete and its file is removed.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	building := b.building
	b.mu.Unlock()

	if !building {
		return b.tree.Close()
	}
	b.logger.Warn("history closed before it was finished, discarding", slog.String("path", b.cfg.Path))
	if err := b.tree.Discard(); err != nil {
		return err
	}
	return b.removeFile()
}

// RemoveFiles releases the history and deletes its file.
func (b *Backend) RemoveFiles() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	if err := b.tree.Discard(); err != nil {
		return err
	}
	return b.removeFile()
}

func (b *Backend) removeFile() error {
	if b.cfg.InMemory || b.cfg.Path == "" {
		return nil
	}
	if err := os.Remove(b.cfg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove history file: %w", err)
	}
	return nil
}
