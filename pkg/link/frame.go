package link

import (
	"encoding/binary"

	"github.com/dnp3go/dnp3/internal/crc"
)

// Frame is a fully decoded link-layer frame: its header plus the
// reassembled (CRC-verified, block markers stripped) user data payload.
type Frame struct {
	Header  Header
	Payload []byte
}

// EncodeFrame serializes header and payload into dst, laying out the
// payload in MaxBlockPayload-byte blocks each followed by its own
// CRC-16. dst must be at least FramedLength(len(payload)) bytes.
func EncodeFrame(header Header, payload []byte, dst []byte) int {
	header.Length = uint8(len(payload) + 5)
	WriteHeader(header, dst)
	pos := HeaderLength
	for off := 0; off < len(payload); off += MaxBlockPayload {
		end := off + MaxBlockPayload
		if end > len(payload) {
			end = len(payload)
		}
		block := payload[off:end]
		n := copy(dst[pos:], block)
		pos += n
		value := crc.Compute(block)
		binary.LittleEndian.PutUint16(dst[pos:pos+2], value)
		pos += 2
	}
	return pos
}

// DecodeBlocks extracts and CRC-validates the user data blocks that
// follow a header, given the header's declared UserDataLength. buf must
// contain exactly FramedLength(n) bytes starting at the frame's first
// byte (the two sync bytes).
func DecodeBlocks(header Header, buf []byte) ([]byte, error) {
	n := header.UserDataLength()
	payload := make([]byte, 0, n)
	pos := HeaderLength
	remaining := n
	for remaining > 0 {
		blockLen := remaining
		if blockLen > MaxBlockPayload {
			blockLen = MaxBlockPayload
		}
		block := buf[pos : pos+blockLen]
		want := binary.LittleEndian.Uint16(buf[pos+blockLen : pos+blockLen+2])
		if crc.Compute(block) != want {
			return nil, ErrBlockCRC
		}
		payload = append(payload, block...)
		pos += blockLen + 2
		remaining -= blockLen
	}
	return payload, nil
}
