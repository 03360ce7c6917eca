package condition

import (
	"cmp"
	"fmt"
	"slices"
)

// Discrete accepts an explicit set of elements.
type Discrete[E cmp.Ordered] struct {
	set []E // sorted, de-duplicated, never empty
}

// NewDiscrete builds a condition from a non-empty collection of elements.
func NewDiscrete[E cmp.Ordered](elements []E) (Discrete[E], error) {
	if len(elements) == 0 {
		return Discrete[E]{}, fmt.Errorf("%w: discrete condition requires a non-empty collection", ErrInvalidRange)
	}
	set := slices.Clone(elements)
	slices.Sort(set)
	return Discrete[E]{set: slices.Compact(set)}, nil
}

// MustDiscrete is like NewDiscrete but panics on an empty collection.
func MustDiscrete[E cmp.Ordered](elements ...E) Discrete[E] {
	d, err := NewDiscrete(elements)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Discrete[E]) Min() E { return d.set[0] }

func (d Discrete[E]) Max() E { return d.set[len(d.set)-1] }

// Values returns a copy of the accepted elements in ascending order.
func (d Discrete[E]) Values() []E { return slices.Clone(d.set) }

func (d Discrete[E]) Contains(element E) bool {
	_, found := slices.BinarySearch(d.set, element)
	return found
}

// Intersects reports whether a member of the set lies in [low, high]: the
// first member >= low must also be <= high.
func (d Discrete[E]) Intersects(low, high E) bool {
	if low > high {
		return false
	}
	i, _ := slices.BinarySearch(d.set, low)
	return i < len(d.set) && d.set[i] <= high
}

// SubCondition returns the members within [from, to].
func (d Discrete[E]) SubCondition(from, to E) (RangeCondition[E], error) {
	if from > to {
		return nil, fmt.Errorf("%w: %v is greater than %v", ErrInvalidRange, from, to)
	}
	lo, _ := slices.BinarySearch(d.set, from)
	hi, found := slices.BinarySearch(d.set, to)
	if found {
		hi++
	}
	sub, err := NewDiscrete(d.set[lo:hi])
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (d Discrete[E]) String() string {
	return fmt.Sprintf("Discrete condition: %v", d.set)
}
