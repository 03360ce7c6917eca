//go:build unix

package historytree

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"StateHistory/types"
)

// MmapPager serves a finished history file from a read-only mapping.
type MmapPager struct {
	file      *os.File
	data      []byte
	blockSize int
	mu        sync.RWMutex
}

// OpenMmapPager maps the whole file at path.
func OpenMmapPager(path string, blockSize int) (Pager, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat history file: %w", err)
	}
	if info.Size() < types.TreeHeaderSize {
		file.Close()
		return nil, fmt.Errorf("%w: %s is shorter than its header", types.ErrFormatMismatch, path)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap: %w", err)
	}
	return &MmapPager{file: file, data: data, blockSize: blockSize}, nil
}

func (m *MmapPager) slice(offset int64, length int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, fmt.Errorf("mmap is closed")
	}
	if offset < 0 || offset+int64(length) > int64(len(m.data)) {
		return nil, fmt.Errorf("range [%d, %d) outside mapping of %d bytes", offset, offset+int64(length), len(m.data))
	}
	// Copy out: the mapping goes away on Close
	out := make([]byte, length)
	copy(out, m.data[offset:])
	return out, nil
}

func (m *MmapPager) ReadHeader() ([]byte, error) {
	return m.slice(0, types.TreeHeaderSize)
}

func (m *MmapPager) ReadBlock(seq int32) ([]byte, error) {
	data, err := m.slice(blockOffset(seq, m.blockSize), m.blockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w", seq, err)
	}
	return data, nil
}

func (m *MmapPager) WriteHeader([]byte) error {
	return fmt.Errorf("%w: mapped files are read-only", types.ErrClosedTree)
}

func (m *MmapPager) WriteBlock(int32, []byte) error {
	return fmt.Errorf("%w: mapped files are read-only", types.ErrClosedTree)
}

func (m *MmapPager) Size() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data)), nil
}

func (m *MmapPager) Sync() error { return nil }

// Close unmaps and closes the file.
func (m *MmapPager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("failed to munmap: %w", err)
		}
		m.data = nil
	}
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}
		m.file = nil
	}
	return nil
}
