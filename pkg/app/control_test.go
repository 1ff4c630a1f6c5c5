package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIncrementWraps(t *testing.T) {
	var s Sequence = 15
	assert.Equal(t, Sequence(0), s.Increment())
}

func TestControlFieldRoundTrip(t *testing.T) {
	c := ControlField{Fir: true, Fin: false, Con: true, Uns: false, Seq: 7}
	decoded := ParseControlField(c.Byte())
	assert.Equal(t, c, decoded)
}

func TestUnsolicitedResponseControlField(t *testing.T) {
	c := UnsolicitedResponseControlField(3)
	assert.True(t, c.Fir)
	assert.True(t, c.Fin)
	assert.True(t, c.Con)
	assert.True(t, c.Uns)
	assert.Equal(t, Sequence(3), c.Seq)
}

func TestResponseHeaderWriteRejectsShortBuffer(t *testing.T) {
	h := ResponseHeader{Control: RequestControlField(0), Function: FuncResponse}
	err := h.Write(make([]byte, 2))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestResponseHeaderWrite(t *testing.T) {
	h := ResponseHeader{
		Control:  SingleResponseControlField(5),
		Function: FuncResponse,
		Iin:      Iin{Iin1: Iin1DeviceRestart, Iin2: Iin2ParameterError},
	}
	buf := make([]byte, ResponseHeaderLength)
	assert.NoError(t, h.Write(buf))
	assert.Equal(t, byte(FuncResponse), buf[1])
	assert.Equal(t, byte(Iin1DeviceRestart), buf[2])
	assert.Equal(t, byte(Iin2ParameterError), buf[3])
}
