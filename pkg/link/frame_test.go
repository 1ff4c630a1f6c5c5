package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Control: Control{Dir: true, Prm: true, Fcv: true, Func: FuncConfirmedUserData},
		Dest:    1024,
		Src:     1,
	}
	h.Length = 5
	buf := make([]byte, HeaderLength)
	WriteHeader(h, buf)

	decoded, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h.Control, decoded.Control)
	assert.Equal(t, h.Dest, decoded.Dest)
	assert.Equal(t, h.Src, decoded.Src)
}

func TestParseHeaderRejectsBadSync(t *testing.T) {
	buf := make([]byte, HeaderLength)
	WriteHeader(Header{Length: 5, Dest: 1, Src: 1}, buf)
	buf[0] = 0xFF
	_, err := ParseHeader(buf)
	assert.ErrorIs(t, err, ErrBadStartBytes)
}

func TestParseHeaderRejectsBadCRC(t *testing.T) {
	buf := make([]byte, HeaderLength)
	WriteHeader(Header{Length: 5, Dest: 1, Src: 1}, buf)
	buf[9] ^= 0xFF
	_, err := ParseHeader(buf)
	assert.ErrorIs(t, err, ErrHeaderCRC)
}

func TestEncodeDecodeFrameSingleBlock(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	header := Header{Control: Control{Prm: true, Func: FuncConfirmedUserData}, Dest: 10, Src: 20}

	dst := make([]byte, FramedLength(len(payload)))
	n := EncodeFrame(header, payload, dst)
	assert.Equal(t, len(dst), n)

	decodedHeader, err := ParseHeader(dst)
	require.NoError(t, err)
	assert.Equal(t, len(payload), decodedHeader.UserDataLength())

	got, err := DecodeBlocks(decodedHeader, dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestEncodeDecodeFrameMultiBlock(t *testing.T) {
	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i)
	}
	header := Header{Control: Control{Prm: true, Func: FuncConfirmedUserData}, Dest: 10, Src: 20}

	dst := make([]byte, FramedLength(len(payload)))
	EncodeFrame(header, payload, dst)

	decodedHeader, err := ParseHeader(dst)
	require.NoError(t, err)

	got, err := DecodeBlocks(decodedHeader, dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecodeBlocksRejectsCorruption(t *testing.T) {
	payload := []byte{9, 9, 9}
	header := Header{Control: Control{Prm: true, Func: FuncConfirmedUserData}, Dest: 1, Src: 2}
	dst := make([]byte, FramedLength(len(payload)))
	EncodeFrame(header, payload, dst)
	dst[HeaderLength] ^= 0xFF

	decodedHeader, err := ParseHeader(dst)
	require.NoError(t, err)
	_, err = DecodeBlocks(decodedHeader, dst)
	assert.ErrorIs(t, err, ErrBlockCRC)
}

func TestMaxLinkFrameLengthMatchesSpecBound(t *testing.T) {
	assert.Equal(t, 292, MaxLinkFrameLength)
}
