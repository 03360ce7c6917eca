// Package condition provides range predicates over ordered domains. They are
// used to prune the history tree descent on the time axis (int64 timestamps)
// and on the attribute axis (int32 quarks).
package condition

import (
	"cmp"
	"fmt"
	"math"

	"StateHistory/types"
)

// ErrInvalidRange is returned when building an inverted or empty condition.
var ErrInvalidRange = fmt.Errorf("%w: invalid range", types.ErrConfig)

// RangeCondition is a predicate over an ordered domain.
type RangeCondition[E cmp.Ordered] interface {
	// Min is the lowest element accepted by the condition.
	Min() E
	// Max is the highest element accepted by the condition.
	Max() E
	// Contains reports whether the element is accepted.
	Contains(element E) bool
	// Intersects reports whether at least one accepted element lies in [low, high].
	Intersects(low, high E) bool
	// SubCondition restricts the condition to [from, to], inclusive.
	SubCondition(from, to E) (RangeCondition[E], error)
	String() string
}

// Singleton returns a condition accepting a single element.
func Singleton[E cmp.Ordered](element E) RangeCondition[E] {
	return Continuous[E]{min: element, max: element}
}

// AllTimes accepts every timestamp.
func AllTimes() RangeCondition[int64] {
	return Continuous[int64]{min: math.MinInt64, max: math.MaxInt64}
}

// AllQuarks accepts every attribute quark.
func AllQuarks() RangeCondition[int32] {
	return Continuous[int32]{min: 0, max: math.MaxInt32}
}
