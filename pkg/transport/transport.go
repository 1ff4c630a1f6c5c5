// Package transport implements the DNP3 transport function: segmenting
// an application fragment into link-sized pieces on the way out, and
// reassembling link payloads carrying a FIR/FIN/sequence header back
// into a complete fragment on the way in (IEEE 1815 Chapter 8).
package transport

import (
	"fmt"

	"github.com/dnp3go/dnp3/pkg/link"
)

// HeaderLength is the size of the one-byte transport header that
// prefixes every link-layer payload.
const HeaderLength = 1

// MaxFragmentSize is the largest application fragment this stack will
// assemble or send, matching the buffer sizing the session configuration
// exposes (spec solicited/unsolicited buffer sizes).
const MaxFragmentSize = 2048

// segmentPayloadSize is the largest number of fragment bytes one
// transport segment can carry: a link frame's user data budget minus
// the one-byte transport header this package prepends.
const segmentPayloadSize = link.MaxUserDataLength - HeaderLength

// Header is the transport-layer FIR/FIN/sequence byte.
type Header struct {
	Fir bool
	Fin bool
	Seq uint8 // 6 bits, 0-63
}

func (h Header) Byte() byte {
	b := h.Seq & 0x3F
	if h.Fir {
		b |= 1 << 6
	}
	if h.Fin {
		b |= 1 << 7
	}
	return b
}

// ParseHeader decodes a transport header byte.
func ParseHeader(b byte) Header {
	return Header{
		Fir: b&(1<<6) != 0,
		Fin: b&(1<<7) != 0,
		Seq: b & 0x3F,
	}
}

// BroadcastConfirmMode describes how a broadcast request asks to be
// acknowledged, if at all.
type BroadcastConfirmMode int

const (
	// BroadcastNone means this fragment was not broadcast.
	BroadcastNone BroadcastConfirmMode = iota
	// BroadcastMandatory means a sticky IIN1.0 bit must be asserted on
	// the next solicited response so the master learns this outstation
	// received the broadcast.
	BroadcastMandatory
	// BroadcastOptional means no acknowledgement is required.
	BroadcastOptional
)

// FragmentInfo annotates a reassembled fragment with metadata the
// session layer needs but that isn't part of the application payload
// itself.
type FragmentInfo struct {
	// ID is a monotonically increasing counter, one per fragment
	// successfully reassembled by this Reader instance. It exists so
	// the session can distinguish "the same bytes arrived twice" at the
	// duplicate-detection layer from "this is a brand new request".
	ID uint64
	// Broadcast is BroadcastNone unless the link layer tagged this
	// fragment's destination address as the broadcast address.
	Broadcast BroadcastConfirmMode
}

// TransportRequestError classifies a reassembly failure.
type TransportRequestError int

const (
	// ErrBadSequence means a continuation segment's sequence number did
	// not immediately follow the previous segment's.
	ErrBadSequence TransportRequestError = iota
	// ErrNewFirMidFragment means a FIR segment arrived before the
	// previous fragment's FIN, implicitly discarding the partial
	// fragment in progress.
	ErrNewFirMidFragment
	// ErrFragmentTooLarge means reassembly would exceed MaxFragmentSize.
	ErrFragmentTooLarge
	// ErrMissingFir means the first segment observed lacked FIR.
	ErrMissingFir
)

func (e TransportRequestError) Error() string {
	switch e {
	case ErrBadSequence:
		return "transport: out-of-sequence segment"
	case ErrNewFirMidFragment:
		return "transport: new FIR segment discarded an in-progress fragment"
	case ErrFragmentTooLarge:
		return "transport: reassembled fragment exceeds maximum size"
	case ErrMissingFir:
		return "transport: first segment missing FIR"
	default:
		return fmt.Sprintf("transport: error %d", int(e))
	}
}
