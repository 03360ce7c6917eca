package historytree

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"StateHistory/condition"
	"StateHistory/interval"
)

// tinyConfig gives leaves room for exactly two one-letter string intervals
// and core nodes room for none.
func tinyConfig() Config {
	return Config{BlockSize: 96, MaxChildren: 2, TreeStart: 0, Extension: QuarkExtension}
}

func str(start, end int64, quark int32, s string) interval.Interval {
	return interval.Interval{Start: start, End: end, Attribute: quark, Value: interval.StringValue(s)}
}

// stateHistory generates back to back intervals for every quark, returned
// in end time order the way a state system produces them.
func stateHistory(seed uint64, quarks int32, horizon int64) []interval.Interval {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	var out []interval.Interval
	for q := int32(0); q < quarks; q++ {
		for cur := int64(0); cur < horizon; {
			end := cur + rng.Int64N(40)
			var v interval.Value
			switch rng.IntN(4) {
			case 0:
				v = interval.NullValue()
			case 1:
				v = interval.IntValue(rng.Int32())
			case 2:
				v = interval.LongValue(rng.Int64())
			default:
				v = interval.StringValue(fmt.Sprintf("state-%d", rng.IntN(100)))
			}
			out = append(out, interval.Interval{Start: cur, End: end, Attribute: q, Value: v})
			cur = end + 1
		}
	}
	slices.SortFunc(out, interval.Compare)
	return out
}

func insertAll(t *testing.T, tr *Tree, ivs []interval.Interval) {
	t.Helper()
	for _, iv := range ivs {
		require.NoError(t, tr.Insert(iv))
	}
}

// bruteForce filters ivs like a query would.
func bruteForce(ivs []interval.Interval, times condition.RangeCondition[int64], quarks condition.RangeCondition[int32]) []interval.Interval {
	var out []interval.Interval
	for _, iv := range ivs {
		if quarks.Contains(iv.Attribute) && times.Intersects(iv.Start, iv.End) {
			out = append(out, iv)
		}
	}
	slices.SortFunc(out, interval.Compare)
	return out
}

func sorted(ivs []interval.Interval) []interval.Interval {
	out := slices.Clone(ivs)
	slices.SortFunc(out, interval.Compare)
	return out
}
