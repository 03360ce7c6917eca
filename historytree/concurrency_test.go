package historytree

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"StateHistory/condition"
)

// Readers run while the writer splits branches; every match they see must
// satisfy the query and nothing may fail.
func TestConcurrentReadersDuringInsert(t *testing.T) {
	tr, err := NewInMemory(Config{BlockSize: 512, MaxChildren: 3}, Options{CacheBytes: 1 << 20})
	require.NoError(t, err)

	ivs := stateHistory(21, 10, 4000)
	var written atomic.Bool

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer written.Store(true)
		for _, iv := range ivs {
			if err := tr.Insert(iv); err != nil {
				return err
			}
		}
		return nil
	})

	for r := 0; r < 4; r++ {
		quarks := condition.MustDiscrete[int32](int32(r), int32(r+5))
		g.Go(func() error {
			times := condition.MustContinuous[int64](500, 1500)
			for !written.Load() {
				it := tr.Query(ctx, times, quarks)
				for it.Next() {
					iv := it.Interval()
					if !quarks.Contains(iv.Attribute) || !times.Intersects(iv.Start, iv.End) {
						t.Errorf("query returned %s", iv)
					}
				}
				if err := it.Err(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, tr.Finish())
	require.NoError(t, tr.Verify(context.Background()))
	got, err := tr.Collect(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, sorted(ivs), sorted(got))
}
