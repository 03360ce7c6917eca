package historytree

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"StateHistory/types"
)

// OnDiskPager stores the tree in a single file.
type OnDiskPager struct {
	file      *os.File
	filePath  string
	blockSize int
	readOnly  bool
	mu        sync.RWMutex
}

// CreateOnDiskPager creates (or truncates) the history file at path.
func CreateOnDiskPager(path string, blockSize int) (*OnDiskPager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create history file %s: %w", path, err)
	}
	return &OnDiskPager{file: file, filePath: path, blockSize: blockSize}, nil
}

// OpenOnDiskPager opens an existing history file for reading.
func OpenOnDiskPager(path string, blockSize int) (*OnDiskPager, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file %s: %w", path, err)
	}
	return &OnDiskPager{file: file, filePath: path, blockSize: blockSize, readOnly: true}, nil
}

// ReadHeaderFile reads the header region of the file at path without
// opening a pager on it.
func ReadHeaderFile(path string) (Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("failed to open history file %s: %w", path, err)
	}
	defer file.Close()

	buf := make([]byte, types.TreeHeaderSize)
	if _, err := io.ReadFull(file, buf); err != nil {
		return Header{}, fmt.Errorf("%w: %s: short header: %v", types.ErrFormatMismatch, path, err)
	}
	return decodeHeader(buf)
}

func (p *OnDiskPager) ReadHeader() ([]byte, error) {
	return p.readAt(0, types.TreeHeaderSize)
}

func (p *OnDiskPager) WriteHeader(data []byte) error {
	if len(data) != types.TreeHeaderSize {
		return fmt.Errorf("header size %d does not match %d", len(data), types.TreeHeaderSize)
	}
	return p.writeAt(0, data)
}

func (p *OnDiskPager) ReadBlock(seq int32) ([]byte, error) {
	data, err := p.readAt(blockOffset(seq, p.blockSize), p.blockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w", seq, err)
	}
	return data, nil
}

func (p *OnDiskPager) WriteBlock(seq int32, data []byte) error {
	if len(data) != p.blockSize {
		return fmt.Errorf("data size %d does not match block size %d", len(data), p.blockSize)
	}
	if err := p.writeAt(blockOffset(seq, p.blockSize), data); err != nil {
		return fmt.Errorf("failed to write block %d: %w", seq, err)
	}
	return nil
}

func (p *OnDiskPager) readAt(offset int64, size int) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.file == nil {
		return nil, fmt.Errorf("pager file is closed")
	}

	buf := make([]byte, size)
	n, err := p.file.ReadAt(buf, offset)
	if err != nil {
		if n == 0 || !errors.Is(err, io.EOF) {
			return nil, err
		}
		// A partial trailing block reads as zero padded
	}
	return buf, nil
}

func (p *OnDiskPager) writeAt(offset int64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return fmt.Errorf("pager file is closed")
	}
	if p.readOnly {
		return fmt.Errorf("%w: %s is opened read-only", types.ErrClosedTree, p.filePath)
	}
	_, err := p.file.WriteAt(data, offset)
	return err
}

func (p *OnDiskPager) Size() (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.file == nil {
		return 0, fmt.Errorf("pager file is closed")
	}
	stat, err := p.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat history file: %w", err)
	}
	return stat.Size(), nil
}

// Sync flushes pending writes to disk
func (p *OnDiskPager) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return fmt.Errorf("pager file is closed")
	}
	if p.readOnly {
		return nil
	}
	return p.file.Sync()
}

func (p *OnDiskPager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return nil
	}
	if !p.readOnly {
		if err := p.file.Sync(); err != nil {
			p.file.Close()
			p.file = nil
			return fmt.Errorf("failed to sync before close: %w", err)
		}
	}
	err := p.file.Close()
	p.file = nil
	return err
}
