package condition

import (
	"math"
	"math/rand"
	"testing"

	"StateHistory/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuousContains(t *testing.T) {
	for low := int64(-3); low <= 3; low++ {
		for high := low; high <= 3; high++ {
			c, err := NewContinuous(low, high)
			require.NoError(t, err)
			for x := int64(-5); x <= 5; x++ {
				assert.Equal(t, low <= x && x <= high, c.Contains(x), "[%d,%d] contains %d", low, high, x)
			}
		}
	}
}

func TestContinuousIntersects(t *testing.T) {
	c := MustContinuous[int64](10, 20)
	assert.True(t, c.Intersects(0, 10))
	assert.True(t, c.Intersects(20, 30))
	assert.True(t, c.Intersects(12, 13))
	assert.True(t, c.Intersects(0, 100))
	assert.False(t, c.Intersects(0, 9))
	assert.False(t, c.Intersects(21, 30))
	// an empty node summary has min > max
	assert.False(t, AllQuarks().Intersects(math.MaxInt32, 0))
}

func TestInvalidConstruction(t *testing.T) {
	_, err := NewContinuous[int64](5, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = NewDiscrete[int32](nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = NewDiscrete([]int32{})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestContinuousSubCondition(t *testing.T) {
	c := MustContinuous[int64](10, 20)

	sub, err := c.SubCondition(15, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(15), sub.Min())
	assert.Equal(t, int64(20), sub.Max())

	sub, err = c.SubCondition(0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(10), sub.Min())
	assert.Equal(t, int64(20), sub.Max())

	_, err = c.SubCondition(25, 30)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDiscreteSortsAndDeduplicates(t *testing.T) {
	d := MustDiscrete[int32](9, 1, 5, 1, 9)
	assert.Equal(t, []int32{1, 5, 9}, d.Values())
	assert.Equal(t, int32(1), d.Min())
	assert.Equal(t, int32(9), d.Max())
	assert.True(t, d.Contains(5))
	assert.False(t, d.Contains(4))
}

// A floor/ceiling comparison must not report a match for a range that falls
// entirely inside a gap of the set.
func TestDiscreteIntersectsSingleGap(t *testing.T) {
	d := MustDiscrete[int32](1, 10)
	assert.False(t, d.Intersects(2, 9))
	assert.False(t, d.Intersects(5, 5))
	assert.True(t, d.Intersects(1, 1))
	assert.True(t, d.Intersects(9, 10))
	assert.True(t, d.Intersects(0, 1))
	assert.False(t, d.Intersects(11, 20))
	assert.False(t, d.Intersects(-5, 0))
	assert.False(t, d.Intersects(9, 2))

	gaps := MustDiscrete[int32](1, 3, 5, 7)
	assert.False(t, gaps.Intersects(2, 2))
	assert.False(t, gaps.Intersects(6, 6))
	assert.True(t, gaps.Intersects(2, 3))
}

func TestDiscreteIntersectsMatchesMembership(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(8)
		values := make([]int32, n)
		for i := range values {
			values[i] = int32(rng.Intn(40))
		}
		d := MustDiscrete(values...)

		for i := 0; i < 20; i++ {
			low := int32(rng.Intn(45)) - 2
			high := low + int32(rng.Intn(10))
			expected := false
			for _, v := range values {
				if low <= v && v <= high {
					expected = true
					break
				}
			}
			assert.Equal(t, expected, d.Intersects(low, high), "%v intersects [%d,%d]", values, low, high)
		}
	}
}

func TestDiscreteSubCondition(t *testing.T) {
	d := MustDiscrete[int32](1, 3, 5, 7, 9)

	sub, err := d.SubCondition(3, 7)
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 5, 7}, sub.(Discrete[int32]).Values())

	sub, err = d.SubCondition(2, 6)
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 5}, sub.(Discrete[int32]).Values())

	_, err = d.SubCondition(7, 3)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = d.SubCondition(10, 20)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestHelpers(t *testing.T) {
	s := Singleton[int64](42)
	assert.True(t, s.Contains(42))
	assert.False(t, s.Contains(41))
	assert.True(t, AllTimes().Contains(-1))
	assert.True(t, AllQuarks().Intersects(7, 7))
	assert.Contains(t, MustDiscrete[int32](2, 1).String(), "[1 2]")
}
