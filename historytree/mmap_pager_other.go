//go:build !unix

package historytree

// OpenMmapPager falls back to plain file reads where mmap is unavailable.
func OpenMmapPager(path string, blockSize int) (Pager, error) {
	return OpenOnDiskPager(path, blockSize)
}
