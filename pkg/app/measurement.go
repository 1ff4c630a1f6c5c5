package app

import "fmt"

// Binary is a single-bit status point (group 1/2).
type Binary struct {
	Value bool
	Flags Flags
	Time  *Time
}

// DoubleBitBinary is a two-bit status point (group 3/4).
type DoubleBitBinary struct {
	Value DoubleBit
	Flags Flags
	Time  *Time
}

// BinaryOutputStatus reports the last commanded state of a control
// relay output (group 10).
type BinaryOutputStatus struct {
	Value bool
	Flags Flags
	Time  *Time
}

// Counter is a monotonically increasing event tally (group 20).
type Counter struct {
	Value uint32
	Flags Flags
	Time  *Time
}

// FrozenCounter is a Counter snapshot taken at a freeze request
// (group 21).
type FrozenCounter struct {
	Value uint32
	Flags Flags
	Time  *Time
}

// Analog is a floating point process measurement (group 30).
type Analog struct {
	Value float64
	Flags Flags
	Time  *Time
}

// AnalogOutputStatus reports the last commanded value of an analog
// output (group 40).
type AnalogOutputStatus struct {
	Value float64
	Flags Flags
	Time  *Time
}

func saturate(value float64, min, max float64) (float64, bool) {
	switch {
	case value > max:
		return max, true
	case value < min:
		return min, true
	default:
		return value, false
	}
}

// ToI16 converts value to the range of a 16-bit signed integer,
// saturating and setting OVER_RANGE on overflow, exactly as the teacher's
// gocanopen PDO mapping layer saturates on narrowing numeric conversions.
func ToI16(value float64, flags Flags) (int16, Flags) {
	clamped, saturated := saturate(value, -32768, 32767)
	if saturated {
		flags = flags.WithBitsSet(OVER_RANGE.Value)
	}
	return int16(clamped), flags
}

// ToI32 converts value to the range of a 32-bit signed integer,
// saturating and setting OVER_RANGE on overflow.
func ToI32(value float64, flags Flags) (int32, Flags) {
	clamped, saturated := saturate(value, -2147483648, 2147483647)
	if saturated {
		flags = flags.WithBitsSet(OVER_RANGE.Value)
	}
	return int32(clamped), flags
}

// ToF32 converts value to a 32-bit float, saturating to the finite
// float32 range and setting OVER_RANGE on overflow.
func ToF32(value float64, flags Flags) (float32, Flags) {
	const maxF32 = 3.4028234663852886e+38
	clamped, saturated := saturate(value, -maxF32, maxF32)
	if saturated {
		flags = flags.WithBitsSet(OVER_RANGE.Value)
	}
	return float32(clamped), flags
}

// ToI16 narrows an Analog to a signed 16-bit output representation,
// returning flags with OVER_RANGE set if saturation occurred.
func (a Analog) ToI16() (int16, Flags) { return ToI16(a.Value, a.Flags) }

// ToI32 narrows an Analog to a signed 32-bit output representation.
func (a Analog) ToI32() (int32, Flags) { return ToI32(a.Value, a.Flags) }

// ToF32 narrows an Analog to a 32-bit float output representation.
func (a Analog) ToF32() (float32, Flags) { return ToF32(a.Value, a.Flags) }

const (
	// OctetStringMaxSize is the largest octet string group 110/111 supports.
	OctetStringMaxSize = 255
)

// ErrZeroLengthOctetString is returned by NewOctetString for an empty value.
var ErrZeroLengthOctetString = fmt.Errorf("octet string must contain at least one byte")

// ErrOctetStringTooLarge is returned by NewOctetString for a value longer
// than OctetStringMaxSize bytes.
var ErrOctetStringTooLarge = fmt.Errorf("octet string exceeds %d bytes", OctetStringMaxSize)

// OctetString is an immutable, length-validated byte string (group 110).
// DNP3 forbids zero-length octet strings and caps them at 255 bytes since
// the object's count field is a single byte.
type OctetString struct {
	value []byte
}

// NewOctetString validates and wraps value. The returned OctetString
// copies value, so later mutation of the caller's slice is invisible.
func NewOctetString(value []byte) (OctetString, error) {
	switch {
	case len(value) == 0:
		return OctetString{}, ErrZeroLengthOctetString
	case len(value) > OctetStringMaxSize:
		return OctetString{}, ErrOctetStringTooLarge
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return OctetString{value: cp}, nil
}

// Value returns the wrapped bytes. The returned slice must not be
// mutated by the caller.
func (o OctetString) Value() []byte {
	return o.value
}

// Len returns the number of bytes in the octet string.
func (o OctetString) Len() int {
	return len(o.value)
}
