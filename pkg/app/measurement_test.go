package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOctetStringZeroLength(t *testing.T) {
	_, err := NewOctetString(nil)
	assert.ErrorIs(t, err, ErrZeroLengthOctetString)
}

func TestNewOctetStringTooLarge(t *testing.T) {
	_, err := NewOctetString(make([]byte, OctetStringMaxSize+1))
	assert.ErrorIs(t, err, ErrOctetStringTooLarge)
}

func TestNewOctetStringBoundaries(t *testing.T) {
	one, err := NewOctetString([]byte{0xAB})
	require.NoError(t, err)
	assert.Equal(t, 1, one.Len())

	max, err := NewOctetString(make([]byte, OctetStringMaxSize))
	require.NoError(t, err)
	assert.Equal(t, OctetStringMaxSize, max.Len())
}

func TestOctetStringCopiesInput(t *testing.T) {
	src := []byte{1, 2, 3}
	os, err := NewOctetString(src)
	require.NoError(t, err)
	src[0] = 0xFF
	assert.Equal(t, byte(1), os.Value()[0])
}

func TestToI16Saturates(t *testing.T) {
	v, flags := ToI16(1_000_000, Flags{})
	assert.Equal(t, int16(32767), v)
	assert.True(t, flags.IsSet(OVER_RANGE))

	v, flags = ToI16(-1_000_000, Flags{})
	assert.Equal(t, int16(-32768), v)
	assert.True(t, flags.IsSet(OVER_RANGE))
}

func TestToI16NoOverflow(t *testing.T) {
	v, flags := ToI16(42, Flags{})
	assert.Equal(t, int16(42), v)
	assert.False(t, flags.IsSet(OVER_RANGE))
}

func TestToI32Saturates(t *testing.T) {
	v, flags := ToI32(1e20, Flags{})
	assert.Equal(t, int32(2147483647), v)
	assert.True(t, flags.IsSet(OVER_RANGE))
}

func TestAnalogToF32PreservesInRangeValue(t *testing.T) {
	a := Analog{Value: 3.5, Flags: ONLINE}
	v, flags := a.ToF32()
	assert.InDelta(t, 3.5, v, 0.0001)
	assert.True(t, flags.IsSet(ONLINE))
	assert.False(t, flags.IsSet(OVER_RANGE))
}
