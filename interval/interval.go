// Package interval holds the fact stored by the history tree: a state value
// of one attribute (quark) over a closed time range.
package interval

import (
	"cmp"
	"fmt"

	"StateHistory/types"
)

// ErrInvalidInterval is returned for intervals that cannot be stored.
var ErrInvalidInterval = fmt.Errorf("%w: invalid interval", types.ErrConfig)

// Interval is an immutable (start, end, attribute, value) fact. Both bounds
// are inclusive.
type Interval struct {
	Start     int64
	End       int64
	Attribute int32
	Value     Value
}

// New builds an interval and checks its invariants.
func New(start, end int64, attribute int32, value Value) (Interval, error) {
	iv := Interval{Start: start, End: end, Attribute: attribute, Value: value}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate checks start <= end, a non-negative attribute and a string
// payload short enough for its length prefix.
func (iv Interval) Validate() error {
	if iv.Start > iv.End {
		return fmt.Errorf("%w: start %d is after end %d", ErrInvalidInterval, iv.Start, iv.End)
	}
	if iv.Attribute < 0 {
		return fmt.Errorf("%w: negative attribute %d", ErrInvalidInterval, iv.Attribute)
	}
	if s, ok := iv.Value.Str(); ok && len(s) > MaxStringLen {
		return fmt.Errorf("%w: string value of %d bytes (max: %d)", ErrInvalidInterval, len(s), MaxStringLen)
	}
	return nil
}

// Intersects reports whether t lies within [Start, End].
func (iv Interval) Intersects(t int64) bool {
	return iv.Start <= t && t <= iv.End
}

// SizeOnDisk is the number of bytes Encode writes for this interval.
func (iv Interval) SizeOnDisk() int {
	return FixedHeaderSize + iv.Value.payloadSize()
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d, %d], attribute = %d, value = %s", iv.Start, iv.End, iv.Attribute, iv.Value)
}

// Compare orders intervals by end time, then start time, then attribute.
// Nodes keep their intervals sorted with this key.
func Compare(a, b Interval) int {
	if c := cmp.Compare(a.End, b.End); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.Attribute, b.Attribute)
}
