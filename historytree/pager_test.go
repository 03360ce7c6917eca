package historytree

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StateHistory/types"
)

func testBlock(size int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, size)
}

func TestInMemoryPager(t *testing.T) {
	p := NewInMemoryPager(128)

	_, err := p.ReadHeader()
	assert.Error(t, err)
	_, err = p.ReadBlock(0)
	assert.Error(t, err)

	require.NoError(t, p.WriteBlock(2, testBlock(128, 7)))
	assert.Error(t, p.WriteBlock(3, testBlock(64, 7)))
	assert.Error(t, p.WriteHeader(make([]byte, 10)))
	require.NoError(t, p.WriteHeader(make([]byte, types.TreeHeaderSize)))

	got, err := p.ReadBlock(2)
	require.NoError(t, err)
	assert.Equal(t, testBlock(128, 7), got)

	// Reads are copies
	got[0] = 1
	again, err := p.ReadBlock(2)
	require.NoError(t, err)
	assert.Equal(t, byte(7), again[0])

	size, err := p.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(types.TreeHeaderSize+3*128), size)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, err = p.ReadBlock(2)
	assert.Error(t, err)
	assert.Error(t, p.Sync())
}

func TestOnDiskPagerPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.ht")
	p, err := CreateOnDiskPager(path, 256)
	require.NoError(t, err)

	header := make([]byte, types.TreeHeaderSize)
	copy(header, "header")
	require.NoError(t, p.WriteHeader(header))
	require.NoError(t, p.WriteBlock(0, testBlock(256, 1)))
	require.NoError(t, p.WriteBlock(4, testBlock(256, 5)))
	assert.Error(t, p.WriteBlock(5, testBlock(10, 5)))
	require.NoError(t, p.Sync())

	size, err := p.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(types.TreeHeaderSize+5*256), size)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	r, err := OpenOnDiskPager(path, 256)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, header, got)

	got, err = r.ReadBlock(4)
	require.NoError(t, err)
	assert.Equal(t, testBlock(256, 5), got)

	// The gap between written blocks reads as zeros
	got, err = r.ReadBlock(2)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 256), got)

	_, err = r.ReadBlock(9)
	assert.Error(t, err)
	assert.ErrorIs(t, r.WriteBlock(0, testBlock(256, 2)), types.ErrClosedTree)
}

func TestMmapPagerReadsBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapped.ht")
	p, err := CreateOnDiskPager(path, 256)
	require.NoError(t, err)
	require.NoError(t, p.WriteHeader(make([]byte, types.TreeHeaderSize)))
	require.NoError(t, p.WriteBlock(1, testBlock(256, 9)))
	require.NoError(t, p.Close())

	m, err := OpenMmapPager(path, 256)
	require.NoError(t, err)

	got, err := m.ReadBlock(1)
	require.NoError(t, err)
	assert.Equal(t, testBlock(256, 9), got)
	_, err = m.ReadBlock(2)
	assert.Error(t, err)
	assert.Error(t, m.WriteBlock(1, testBlock(256, 0)))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestReadHeaderFileShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.ht")
	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0644))

	_, err := ReadHeaderFile(path)
	assert.ErrorIs(t, err, types.ErrFormatMismatch)
	assert.True(t, IsFormatError(err))

	_, err = ReadHeaderFile(filepath.Join(t.TempDir(), "missing.ht"))
	assert.Error(t, err)
	assert.False(t, IsFormatError(err))
}
