package link

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader drips src out a few bytes at a time, to exercise the
// Reader's partial-read reassembly path.
type chunkedReader struct {
	data      []byte
	chunkSize int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.chunkSize
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copied := copy(p, c.data[:n])
	c.data = c.data[copied:]
	return copied, nil
}

func buildFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	header := Header{Control: Control{Prm: true, Func: FuncConfirmedUserData}, Dest: 1, Src: 2}
	dst := make([]byte, FramedLength(len(payload)))
	EncodeFrame(header, payload, dst)
	return dst
}

func TestReaderReassemblesSingleFrame(t *testing.T) {
	payload := []byte{1, 2, 3}
	wire := buildFrame(t, payload)

	r := NewReader()
	frame, err := r.Read(context.Background(), bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Payload)
}

func TestReaderReassemblesAcrossPartialReads(t *testing.T) {
	payload := []byte{10, 20, 30, 40, 50}
	wire := buildFrame(t, payload)

	r := NewReader()
	frame, err := r.Read(context.Background(), &chunkedReader{data: wire, chunkSize: 3})
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Payload)
}

func TestReaderSkipsLeadingNoise(t *testing.T) {
	payload := []byte{7, 8, 9}
	wire := append([]byte{0x00, 0xAA, 0xBB}, buildFrame(t, payload)...)

	r := NewReader()
	frame, err := r.Read(context.Background(), bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Payload)
}

func TestReaderReadsSecondFrameAfterFirst(t *testing.T) {
	first := buildFrame(t, []byte{1})
	second := buildFrame(t, []byte{2, 3})
	wire := append(append([]byte{}, first...), second...)

	r := NewReader()
	src := bytes.NewReader(wire)

	f1, err := r.Read(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, f1.Payload)

	f2, err := r.Read(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, f2.Payload)
}
