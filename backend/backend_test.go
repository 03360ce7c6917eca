package backend

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StateHistory/condition"
	"StateHistory/config"
	"StateHistory/interval"
	"StateHistory/types"
)

func fileConfig(t *testing.T) config.Backend {
	t.Helper()
	return config.Backend{
		Path:        filepath.Join(t.TempDir(), "state.ht"),
		BlockSize:   1024,
		MaxChildren: 4,
		Extension:   "quark",
		CacheBytes:  1 << 20,
	}
}

// fill writes back to back states for three quarks over [0, 999], in end
// time order.
func fill(t *testing.T, b *Backend) {
	t.Helper()
	var ivs []interval.Interval
	for q, step := range []int64{10, 20, 25} {
		for s := int64(0); s < 1000; s += step {
			ivs = append(ivs, interval.Interval{Start: s, End: s + step - 1, Attribute: int32(q), Value: interval.LongValue(s)})
		}
	}
	slices.SortFunc(ivs, interval.Compare)
	for _, iv := range ivs {
		require.NoError(t, b.InsertPastState(iv.Start, iv.End, iv.Attribute, iv.Value))
	}
}

func TestBuildAndQueryFile(t *testing.T) {
	cfg := fileConfig(t)
	b, err := Open(cfg, Options{})
	require.NoError(t, err)
	assert.True(t, b.Building())

	fill(t, b)
	require.NoError(t, b.FinishedBuilding(1000))
	assert.False(t, b.Building())
	assert.Equal(t, int64(0), b.StartTime())
	assert.Equal(t, int64(1000), b.EndTime())
	require.NoError(t, b.Close())

	b, err = Open(cfg, Options{})
	require.NoError(t, err)
	defer b.Close()
	assert.False(t, b.Building())

	ctx := context.Background()
	iv, ok, err := b.QuerySingle(ctx, 125, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(120), iv.Start)
	assert.Equal(t, int64(139), iv.End)

	_, ok, err = b.QuerySingle(ctx, 125, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	full, err := b.QueryFull(ctx, 555)
	require.NoError(t, err)
	require.Len(t, full, 3)
	assert.Equal(t, int64(550), full[0].Start)
	assert.Equal(t, int64(540), full[1].Start)
	assert.Equal(t, int64(550), full[2].Start)

	size, err := b.FileSize()
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestQueryOutsideRange(t *testing.T) {
	b, err := Open(config.Backend{InMemory: true, BlockSize: 1024, MaxChildren: 4}, Options{})
	require.NoError(t, err)
	defer b.Close()
	fill(t, b)

	_, _, err = b.QuerySingle(context.Background(), 5000, 0)
	assert.ErrorIs(t, err, ErrTimeRange)
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = b.QueryFull(context.Background(), -1)
	assert.ErrorIs(t, err, ErrTimeRange)

	_, err = b.QueryTimes(context.Background(), []int64{10, 5000}, condition.AllQuarks())
	assert.ErrorIs(t, err, ErrTimeRange)
}

func TestQuery2DAndQueryTimes(t *testing.T) {
	b, err := Open(config.Backend{InMemory: true, BlockSize: 1024, MaxChildren: 4}, Options{Parallelism: 2})
	require.NoError(t, err)
	defer b.Close()
	fill(t, b)
	require.NoError(t, b.FinishedBuilding(999))

	ctx := context.Background()
	it := b.Query2D(ctx, condition.Singleton[int32](0), condition.MustContinuous[int64](100, 149))
	var starts []int64
	for it.Next() {
		starts = append(starts, it.Interval().Start)
	}
	require.NoError(t, it.Err())
	assert.ElementsMatch(t, []int64{100, 110, 120, 130, 140}, starts)

	times := []int64{0, 250, 500, 999}
	res, err := b.QueryTimes(ctx, times, condition.MustDiscrete[int32](0, 2))
	require.NoError(t, err)
	require.Len(t, res, len(times))
	for i, at := range times {
		require.Len(t, res[i], 2, "time %d", at)
		for _, iv := range res[i] {
			assert.True(t, iv.Intersects(at))
			assert.NotEqual(t, int32(1), iv.Attribute)
		}
	}
}

func TestRebuildOnMismatch(t *testing.T) {
	cfg := fileConfig(t)
	cfg.ProviderVersion = 1
	b, err := Open(cfg, Options{})
	require.NoError(t, err)
	fill(t, b)
	require.NoError(t, b.FinishedBuilding(1000))
	require.NoError(t, b.Close())

	cfg.ProviderVersion = 2
	_, err = Open(cfg, Options{})
	assert.ErrorIs(t, err, types.ErrVersionMismatch)

	cfg.RebuildOnMismatch = true
	b, err = Open(cfg, Options{})
	require.NoError(t, err)
	assert.True(t, b.Building())
	assert.Equal(t, int64(0), b.EndTime())
	require.NoError(t, b.FinishedBuilding(10))
	require.NoError(t, b.Close())
	assert.FileExists(t, cfg.Path)
}

func TestCloseWhileBuildingRemovesFile(t *testing.T) {
	cfg := fileConfig(t)
	b, err := Open(cfg, Options{})
	require.NoError(t, err)
	require.NoError(t, b.InsertPastState(0, 10, 0, interval.IntValue(1)))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err = os.Stat(cfg.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoveFiles(t *testing.T) {
	cfg := fileConfig(t)
	b, err := Open(cfg, Options{})
	require.NoError(t, err)
	fill(t, b)
	require.NoError(t, b.FinishedBuilding(1000))
	require.NoError(t, b.RemoveFiles())
	assert.NoFileExists(t, cfg.Path)
}

func TestUnknownExtension(t *testing.T) {
	_, err := Open(config.Backend{InMemory: true, Extension: "bogus"}, Options{})
	assert.ErrorIs(t, err, types.ErrConfig)
}
