package interval

import (
	"encoding/binary"
	"fmt"
	"math"

	"StateHistory/types"
)

// Encoding of one interval, little-endian:
//   - start(8), end(8), attribute(4), valueType(1)
//   - payload: none (null), int32(4), int64(8), float64 bits(8) or
//     length(2) + bytes (string)
const (
	FixedHeaderSize = 8 + 8 + 4 + 1
	MaxStringLen    = math.MaxUint16
)

// Encode writes the interval at the beginning of buf and returns the number
// of bytes written. buf must hold at least SizeOnDisk bytes.
func (iv Interval) Encode(buf []byte) (int, error) {
	size := iv.SizeOnDisk()
	if len(buf) < size {
		return 0, fmt.Errorf("buffer of %d bytes too small for interval of %d bytes", len(buf), size)
	}
	offset := 0

	binary.LittleEndian.PutUint64(buf[offset:], uint64(iv.Start))
	offset += 8
	binary.LittleEndian.PutUint64(buf[offset:], uint64(iv.End))
	offset += 8
	binary.LittleEndian.PutUint32(buf[offset:], uint32(iv.Attribute))
	offset += 4
	buf[offset] = byte(iv.Value.kind)
	offset += 1

	switch iv.Value.kind {
	case TypeNull:
	case TypeInt:
		binary.LittleEndian.PutUint32(buf[offset:], uint32(int32(iv.Value.num)))
		offset += 4
	case TypeLong, TypeDouble:
		binary.LittleEndian.PutUint64(buf[offset:], uint64(iv.Value.num))
		offset += 8
	case TypeString:
		if len(iv.Value.str) > MaxStringLen {
			return 0, fmt.Errorf("%w: string value too long: %d bytes (max: %d)", ErrInvalidInterval, len(iv.Value.str), MaxStringLen)
		}
		binary.LittleEndian.PutUint16(buf[offset:], uint16(len(iv.Value.str)))
		offset += 2
		offset += copy(buf[offset:], iv.Value.str)
	default:
		return 0, fmt.Errorf("%w: unknown value type %d", ErrInvalidInterval, iv.Value.kind)
	}

	return offset, nil
}

// Decode reads one interval from the beginning of buf and returns it with
// the number of bytes consumed.
func Decode(buf []byte) (Interval, int, error) {
	if len(buf) < FixedHeaderSize {
		return Interval{}, 0, fmt.Errorf("%w: interval header overflow", types.ErrCorruptBlock)
	}
	var iv Interval
	offset := 0

	iv.Start = int64(binary.LittleEndian.Uint64(buf[offset:]))
	offset += 8
	iv.End = int64(binary.LittleEndian.Uint64(buf[offset:]))
	offset += 8
	iv.Attribute = int32(binary.LittleEndian.Uint32(buf[offset:]))
	offset += 4
	kind := ValueType(buf[offset])
	offset += 1

	switch kind {
	case TypeNull:
		iv.Value = NullValue()
	case TypeInt:
		if offset+4 > len(buf) {
			return Interval{}, 0, fmt.Errorf("%w: int value overflow", types.ErrCorruptBlock)
		}
		iv.Value = IntValue(int32(binary.LittleEndian.Uint32(buf[offset:])))
		offset += 4
	case TypeLong, TypeDouble:
		if offset+8 > len(buf) {
			return Interval{}, 0, fmt.Errorf("%w: %s value overflow", types.ErrCorruptBlock, kind)
		}
		iv.Value = Value{kind: kind, num: int64(binary.LittleEndian.Uint64(buf[offset:]))}
		offset += 8
	case TypeString:
		if offset+2 > len(buf) {
			return Interval{}, 0, fmt.Errorf("%w: string length overflow", types.ErrCorruptBlock)
		}
		strLen := int(binary.LittleEndian.Uint16(buf[offset:]))
		offset += 2
		if offset+strLen > len(buf) {
			return Interval{}, 0, fmt.Errorf("%w: string data overflow", types.ErrCorruptBlock)
		}
		iv.Value = StringValue(string(buf[offset : offset+strLen]))
		offset += strLen
	default:
		return Interval{}, 0, fmt.Errorf("%w: unknown value type %d", types.ErrCorruptBlock, kind)
	}

	if iv.Start > iv.End {
		return Interval{}, 0, fmt.Errorf("%w: interval start %d after end %d", types.ErrCorruptBlock, iv.Start, iv.End)
	}
	return iv, offset, nil
}
