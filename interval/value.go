package interval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType is the tag of a state Value, stored as one byte on disk.
type ValueType uint8

const (
	TypeNull ValueType = iota
	TypeInt
	TypeLong
	TypeDouble
	TypeString
)

func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is the state carried by an interval. The zero Value is null.
type Value struct {
	kind ValueType
	num  int64 // int, long, and double bits
	str  string
}

func NullValue() Value            { return Value{} }
func IntValue(v int32) Value      { return Value{kind: TypeInt, num: int64(v)} }
func LongValue(v int64) Value     { return Value{kind: TypeLong, num: v} }
func StringValue(v string) Value  { return Value{kind: TypeString, str: v} }
func DoubleValue(v float64) Value { return Value{kind: TypeDouble, num: int64(math.Float64bits(v))} }

func (v Value) Type() ValueType { return v.kind }
func (v Value) IsNull() bool    { return v.kind == TypeNull }

// Int returns the value of an int state, or false for any other type.
func (v Value) Int() (int32, bool) {
	return int32(v.num), v.kind == TypeInt
}

// Long returns the value of an int or long state.
func (v Value) Long() (int64, bool) {
	return v.num, v.kind == TypeLong || v.kind == TypeInt
}

func (v Value) Double() (float64, bool) {
	return math.Float64frombits(uint64(v.num)), v.kind == TypeDouble
}

func (v Value) Str() (string, bool) {
	return v.str, v.kind == TypeString
}

// payloadSize is the number of bytes the value occupies after its type tag.
func (v Value) payloadSize() int {
	switch v.kind {
	case TypeInt:
		return 4
	case TypeLong, TypeDouble:
		return 8
	case TypeString:
		return 2 + len(v.str)
	default:
		return 0
	}
}

func (v Value) String() string {
	switch v.kind {
	case TypeNull:
		return "nullValue"
	case TypeInt, TypeLong:
		return strconv.FormatInt(v.num, 10)
	case TypeDouble:
		d, _ := v.Double()
		return strconv.FormatFloat(d, 'g', -1, 64)
	case TypeString:
		return v.str
	default:
		return fmt.Sprintf("<unknown value type %d>", v.kind)
	}
}

// ParseValue reads a state value written as "type:payload", for example
// "int:3", "long:-1", "double:0.5", "string:RUN" or "null". A bare string
// without a known type prefix is a string value.
func ParseValue(s string) (Value, error) {
	if s == "" || s == "null" {
		return NullValue(), nil
	}
	kind, payload, ok := strings.Cut(s, ":")
	if !ok {
		return StringValue(s), nil
	}
	switch kind {
	case "int":
		n, err := strconv.ParseInt(payload, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("parse int value %q: %w", payload, err)
		}
		return IntValue(int32(n)), nil
	case "long":
		n, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse long value %q: %w", payload, err)
		}
		return LongValue(n), nil
	case "double":
		d, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse double value %q: %w", payload, err)
		}
		return DoubleValue(d), nil
	case "string":
		return StringValue(payload), nil
	default:
		return StringValue(s), nil
	}
}
