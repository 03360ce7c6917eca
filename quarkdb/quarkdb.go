// Package quarkdb maps attribute paths such as "Threads/42/Status" to the
// int32 quarks stored in history intervals. The mapping lives in badger so
// a history file can be queried by path after a restart.
package quarkdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"StateHistory/types"
)

// ErrUnknownAttribute is returned by lookups of paths or quarks never registered.
var ErrUnknownAttribute = errors.New("unknown attribute")

var (
	pathPrefix  = []byte("p/")
	quarkPrefix = []byte("q/")
	nextKey     = []byte("meta/next")
)

type Config struct {
	Path     string
	InMemory bool

	// SyncWrites makes every new quark durable before Quark returns.
	SyncWrites bool

	Logger *slog.Logger
}

// Entry is one registered attribute.
type Entry struct {
	Path  string
	Quark int32
}

// Registry allocates quarks in registration order starting at 0.
type Registry struct {
	db *badger.DB
	mu sync.Mutex // serializes allocation
}

// badgerLogger routes badger's own logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func Open(cfg Config) (*Registry, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: registry path is required for a persistent registry", types.ErrConfig)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create registry directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With(slog.String("component", "quarkdb"))})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open quark registry: %w", err)
	}
	return &Registry{db: db}, nil
}

func pathKey(path string) []byte {
	return append(append([]byte(nil), pathPrefix...), path...)
}

// quarkKey is big endian so that iteration follows quark order.
func quarkKey(quark int32) []byte {
	key := append([]byte(nil), quarkPrefix...)
	return binary.BigEndian.AppendUint32(key, uint32(quark))
}

func decodeQuark(val []byte) (int32, error) {
	if len(val) != 4 {
		return 0, fmt.Errorf("%w: quark value of %d bytes", types.ErrCorruptBlock, len(val))
	}
	return int32(binary.LittleEndian.Uint32(val)), nil
}

func encodeQuark(quark int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(quark))
}

func validPath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return fmt.Errorf("%w: attribute path %q", types.ErrConfig, path)
	}
	return nil
}

// Quark returns the quark of path, allocating the next one if the path is new.
func (r *Registry) Quark(path string) (int32, error) {
	if err := validPath(path); err != nil {
		return 0, err
	}
	if q, err := r.Lookup(path); err == nil || !errors.Is(err, ErrUnknownAttribute) {
		return q, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var quark int32
	err := r.db.Update(func(txn *badger.Txn) error {
		// Registered while waiting for the lock
		if item, err := txn.Get(pathKey(path)); err == nil {
			return item.Value(func(val []byte) error {
				quark, err = decodeQuark(val)
				return err
			})
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		next, err := readNext(txn)
		if err != nil {
			return err
		}
		if next == math.MaxInt32 {
			return fmt.Errorf("%w: quark space exhausted", types.ErrCapacity)
		}
		quark = next
		if err := txn.Set(pathKey(path), encodeQuark(quark)); err != nil {
			return err
		}
		if err := txn.Set(quarkKey(quark), []byte(path)); err != nil {
			return err
		}
		return txn.Set(nextKey, encodeQuark(quark+1))
	})
	if err != nil {
		return 0, fmt.Errorf("register %q: %w", path, err)
	}
	return quark, nil
}

func readNext(txn *badger.Txn) (int32, error) {
	item, err := txn.Get(nextKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var next int32
	err = item.Value(func(val []byte) error {
		next, err = decodeQuark(val)
		return err
	})
	return next, err
}

// Lookup returns the quark of an already registered path.
func (r *Registry) Lookup(path string) (int32, error) {
	var quark int32
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pathKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownAttribute, path)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			quark, err = decodeQuark(val)
			return err
		})
	})
	return quark, err
}

// Name returns the path registered for quark.
func (r *Registry) Name(quark int32) (string, error) {
	var path string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(quarkKey(quark))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: quark %d", ErrUnknownAttribute, quark)
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		path = string(val)
		return err
	})
	return path, err
}

// Count is the number of registered attributes.
func (r *Registry) Count() (int, error) {
	var next int32
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		next, err = readNext(txn)
		return err
	})
	return int(next), err
}

// List returns the attributes whose path starts with prefix, sorted by path.
// A prefix ending in "/" selects a subtree.
func (r *Registry) List(prefix string) ([]Entry, error) {
	var out []Entry
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seek := pathKey(prefix)
		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(pathPrefix):])
			err := item.Value(func(val []byte) error {
				q, err := decodeQuark(val)
				if err != nil {
					return err
				}
				out = append(out, Entry{Path: path, Quark: q})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Quarks resolves several paths at once, allocating the new ones.
func (r *Registry) Quarks(paths ...string) ([]int32, error) {
	out := make([]int32, len(paths))
	for i, p := range paths {
		q, err := r.Quark(p)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func (r *Registry) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close quark registry: %w", err)
	}
	return nil
}
