// Package link implements the DNP3 data link layer: frame header
// encode/decode, per-block CRC-16 validation, and the buffered Reader
// that reassembles frames off a stream transport (IEEE 1815 Chapter 9).
package link

import (
	"encoding/binary"
	"fmt"

	"github.com/dnp3go/dnp3/internal/crc"
)

const (
	// StartByte1 and StartByte2 are the fixed link-frame synchronization
	// bytes that precede every header.
	StartByte1 = 0x05
	StartByte2 = 0x64

	// HeaderLength is the size in bytes of the fixed link header,
	// start bytes through header CRC inclusive.
	HeaderLength = 10

	// MaxBlockPayload is the largest number of user-data bytes carried
	// by one CRC-protected block.
	MaxBlockPayload = 16

	// MaxUserDataLength is the largest amount of user data a single
	// link length byte can describe (255 - 5 bytes of control/address).
	MaxUserDataLength = 250

	// MaxLinkFrameLength is the largest possible on-wire frame: header
	// plus 250 bytes of user data split into 16 blocks (15 full 16-byte
	// blocks and one 10-byte block), each carrying a trailing 2-byte CRC.
	MaxLinkFrameLength = HeaderLength + MaxUserDataLength + 2*((MaxUserDataLength+MaxBlockPayload-1)/MaxBlockPayload)
)

// Link-layer function codes, primary-station side.
const (
	FuncResetLinkStates    = 0x00
	FuncTestLinkStates     = 0x02
	FuncConfirmedUserData  = 0x03
	FuncUnconfirmedUserData = 0x04
	FuncRequestLinkStatus  = 0x09
)

// Link-layer function codes, secondary-station side.
const (
	FuncAck          = 0x00
	FuncNack         = 0x01
	FuncLinkStatus   = 0x0B
	FuncNotSupported = 0x0F
)

// Control is the single link-layer control byte.
type Control struct {
	Dir      bool // DIR: frame sent from the data-link-layer perspective of a master
	Prm      bool // PRM: frame originated at a primary station
	FcbOrDfc bool // FCB (primary) / DFC (secondary)
	Fcv      bool // FCV: FCB is meaningful
	Func     uint8
}

func (c Control) Byte() byte {
	var b byte = c.Func & 0x0F
	if c.Dir {
		b |= 1 << 7
	}
	if c.Prm {
		b |= 1 << 6
	}
	if c.FcbOrDfc {
		b |= 1 << 5
	}
	if c.Fcv {
		b |= 1 << 4
	}
	return b
}

func parseControl(b byte) Control {
	return Control{
		Dir:      b&(1<<7) != 0,
		Prm:      b&(1<<6) != 0,
		FcbOrDfc: b&(1<<5) != 0,
		Fcv:      b&(1<<4) != 0,
		Func:     b & 0x0F,
	}
}

// Header is a fully decoded link-layer frame header.
type Header struct {
	Length  uint8
	Control Control
	Dest    uint16
	Src     uint16
}

// UserDataLength returns the number of application-layer bytes this
// header's Length field implies follow in the frame body.
func (h Header) UserDataLength() int {
	if h.Length < 5 {
		return 0
	}
	return int(h.Length) - 5
}

// ErrBadStartBytes indicates the two leading sync bytes did not match.
var ErrBadStartBytes = fmt.Errorf("link: bad start bytes")

// ErrHeaderCRC indicates the header's CRC field did not match its
// computed value.
var ErrHeaderCRC = fmt.Errorf("link: header CRC mismatch")

// ErrBlockCRC indicates a user-data block's trailing CRC did not match.
var ErrBlockCRC = fmt.Errorf("link: data block CRC mismatch")

// ParseHeader decodes the first HeaderLength bytes of buf. The caller
// must ensure len(buf) >= HeaderLength.
func ParseHeader(buf []byte) (Header, error) {
	if buf[0] != StartByte1 || buf[1] != StartByte2 {
		return Header{}, ErrBadStartBytes
	}
	body := buf[2:8]
	want := binary.LittleEndian.Uint16(buf[8:10])
	got := crc.Compute(body)
	if got != want {
		return Header{}, ErrHeaderCRC
	}
	return Header{
		Length:  buf[2],
		Control: parseControl(buf[3]),
		Dest:    binary.LittleEndian.Uint16(buf[4:6]),
		Src:     binary.LittleEndian.Uint16(buf[6:8]),
	}, nil
}

// WriteHeader serializes h, including its CRC, into the first
// HeaderLength bytes of dst.
func WriteHeader(h Header, dst []byte) {
	dst[0] = StartByte1
	dst[1] = StartByte2
	dst[2] = h.Length
	dst[3] = h.Control.Byte()
	binary.LittleEndian.PutUint16(dst[4:6], h.Dest)
	binary.LittleEndian.PutUint16(dst[6:8], h.Src)
	value := crc.Compute(dst[2:8])
	binary.LittleEndian.PutUint16(dst[8:10], value)
}

// BlockCount returns the number of CRC-protected blocks needed to carry
// n bytes of user data.
func BlockCount(n int) int {
	if n == 0 {
		return 0
	}
	return (n + MaxBlockPayload - 1) / MaxBlockPayload
}

// FramedLength returns the total wire size of a frame carrying n bytes
// of user data.
func FramedLength(n int) int {
	return HeaderLength + n + 2*BlockCount(n)
}
