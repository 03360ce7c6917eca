package historytree

import (
	"fmt"
	"log/slog"
)

// Finish closes the latest branch at the largest end time inserted.
func (t *Tree) Finish() error {
	return t.FinishAt(t.EndTime())
}

// FinishAt closes every node of the latest branch with an end of at least
// end, writes them and the header, and syncs. The tree stays readable.
// Finishing twice is a no-op.
func (t *Tree) FinishAt(end int64) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.Finished() {
		return nil
	}
	end = max(end, t.EndTime())
	if err := t.closeBranch(0, end); err != nil {
		return err
	}
	if err := t.writeHeader(); err != nil {
		return err
	}
	if err := t.pager.Sync(); err != nil {
		return fmt.Errorf("failed to sync history: %w", err)
	}

	t.mu.Lock()
	t.finished = true
	t.end = max(end, t.latestBranch[0].End())
	t.mu.Unlock()

	t.logger.Info("history tree finished",
		slog.String("path", t.path),
		slog.Int("nodes", t.NodeCount()),
		slog.Int("depth", t.Depth()),
		slog.Int64("end", t.EndTime()))
	return nil
}

// Close finishes the tree if needed and releases the pager and the cache.
func (t *Tree) Close() error {
	if err := t.Finish(); err != nil {
		return err
	}
	return t.release()
}

// Discard releases the tree without finishing it. The file is left
// incomplete and cannot be reopened.
func (t *Tree) Discard() error {
	t.writeMu.Lock()
	t.mu.Lock()
	t.finished = true
	t.mu.Unlock()
	t.writeMu.Unlock()
	return t.release()
}

func (t *Tree) release() error {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return nil
	}
	t.released = true
	t.mu.Unlock()

	t.cache.Close()
	if err := t.pager.Close(); err != nil {
		return fmt.Errorf("failed to close pager: %w", err)
	}
	return nil
}

func (t *Tree) isReleased() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.released
}
