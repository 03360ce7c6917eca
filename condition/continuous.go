package condition

import (
	"cmp"
	"fmt"
)

// Continuous accepts every element of [min, max].
type Continuous[E cmp.Ordered] struct {
	min E
	max E
}

// NewContinuous builds the condition [low, high].
func NewContinuous[E cmp.Ordered](low, high E) (Continuous[E], error) {
	if low > high {
		return Continuous[E]{}, fmt.Errorf("%w: %v is greater than %v", ErrInvalidRange, low, high)
	}
	return Continuous[E]{min: low, max: high}, nil
}

// MustContinuous is like NewContinuous but panics on an inverted range.
func MustContinuous[E cmp.Ordered](low, high E) Continuous[E] {
	c, err := NewContinuous(low, high)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Continuous[E]) Min() E { return c.min }

func (c Continuous[E]) Max() E { return c.max }

func (c Continuous[E]) Contains(element E) bool {
	return c.min <= element && element <= c.max
}

func (c Continuous[E]) Intersects(low, high E) bool {
	return low <= high && c.min <= high && c.max >= low
}

// SubCondition clamps the condition to [from, to].
func (c Continuous[E]) SubCondition(from, to E) (RangeCondition[E], error) {
	sub, err := NewContinuous(max(c.min, from), min(c.max, to))
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c Continuous[E]) String() string {
	return fmt.Sprintf("Continuous condition: %v-%v", c.min, c.max)
}
