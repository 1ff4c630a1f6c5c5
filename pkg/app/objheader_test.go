package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartStop1Byte(t *testing.T) {
	buf := []byte{12, 1, QualifierStartStop1Byte, 2, 5}
	h, n, err := ParseObjectHeaderPrefix(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 2, h.RangeStart)
	assert.Equal(t, 5, h.RangeStop)
	assert.Equal(t, 4, h.Count())
}

func TestParseStartStopRejectsInverted(t *testing.T) {
	buf := []byte{12, 1, QualifierStartStop1Byte, 5, 2}
	_, _, err := ParseObjectHeaderPrefix(buf)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestParseCount1ByteIndexed(t *testing.T) {
	buf := []byte{12, 1, QualifierCount1ByteIndexed, 2, 3, 7}
	h, n, err := ParseObjectHeaderPrefix(buf)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []int{3, 7}, h.Indices)
}

func TestParseAllObjects(t *testing.T) {
	buf := []byte{1, 2, QualifierAllObjects}
	h, n, err := ParseObjectHeaderPrefix(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, -1, h.Count())
}

func TestParseRejectsUnknownQualifier(t *testing.T) {
	buf := []byte{1, 2, 0xFE}
	_, _, err := ParseObjectHeaderPrefix(buf)
	assert.ErrorIs(t, err, ErrUnknownQualifier)
}

func TestParseRejectsShortBuffer(t *testing.T) {
	_, _, err := ParseObjectHeaderPrefix([]byte{1, 2})
	assert.ErrorIs(t, err, ErrInsufficientBytes)
}

func TestForEachIndexRange(t *testing.T) {
	h := ObjectHeader{RangeStart: 3, RangeStop: 5}
	var got []int
	h.ForEachIndex(func(i int) { got = append(got, i) })
	assert.Equal(t, []int{3, 4, 5}, got)
}
