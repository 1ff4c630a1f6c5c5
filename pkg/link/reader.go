package link

import (
	"context"
	"io"
)

// Reader reassembles link frames off a stream, following the
// begin/end sliding-window approach of the original Rust
// implementation's link::reader::Reader: bytes already consumed are
// dropped lazily (only compacted when the buffer fills), so a steady
// stream of well-formed frames touches the network exactly once per
// frame with no extra copies in the common case.
type Reader struct {
	buffer []byte
	begin  int
	end    int
}

// NewReader allocates a Reader sized for the largest possible link frame.
func NewReader() *Reader {
	return &Reader{buffer: make([]byte, MaxLinkFrameLength)}
}

// Read blocks until one full frame has been read from src, reassembling
// it from possibly many partial network reads. It resynchronizes past a
// single bad leading byte on CRC or start-byte failure rather than
// surfacing the error to the caller, matching how a link layer silently
// discards noise instead of tearing down the session.
func (r *Reader) Read(ctx context.Context, src io.Reader) (Frame, error) {
	for {
		if r.begin >= r.end {
			r.begin, r.end = 0, 0
		}

		if frame, consumed, ok := r.tryParse(); ok {
			r.begin += consumed
			return frame, nil
		} else if consumed > 0 {
			// Resynchronization: drop one byte of noise and retry
			// without going back to the network.
			r.begin += consumed
			continue
		}

		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		if r.end == len(r.buffer) {
			copy(r.buffer, r.buffer[r.begin:r.end])
			r.end -= r.begin
			r.begin = 0
		}

		n, err := src.Read(r.buffer[r.end:])
		if err != nil {
			return Frame{}, err
		}
		if n == 0 {
			return Frame{}, io.ErrUnexpectedEOF
		}
		r.end += n
	}
}

// tryParse attempts to decode one frame from the buffered window. It
// returns consumed > 0 and ok == false when it discarded exactly one
// byte of noise while hunting for start bytes, consumed == 0 and
// ok == false when more network bytes are needed, and ok == true with
// the full frame's byte count in consumed on success.
func (r *Reader) tryParse() (Frame, int, bool) {
	window := r.buffer[r.begin:r.end]
	if len(window) == 0 {
		return Frame{}, 0, false
	}
	if window[0] != StartByte1 {
		return Frame{}, 1, false
	}
	if len(window) < HeaderLength {
		return Frame{}, 0, false
	}
	if window[1] != StartByte2 {
		return Frame{}, 1, false
	}

	header, err := ParseHeader(window)
	if err != nil {
		return Frame{}, 1, false
	}

	total := FramedLength(header.UserDataLength())
	if len(window) < total {
		return Frame{}, 0, false
	}

	payload, err := DecodeBlocks(header, window[:total])
	if err != nil {
		return Frame{}, 1, false
	}

	return Frame{Header: header, Payload: payload}, total, true
}
