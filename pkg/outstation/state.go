package outstation

import (
	"bytes"
	"time"

	"github.com/dnp3go/dnp3/internal/fifo"
	"github.com/dnp3go/dnp3/pkg/app"
)

// RetryCounter tracks a bounded or unbounded number of remaining
// retries, mirroring the Option<usize> counter the original session
// state machine uses for unsolicited response retransmission: nil means
// retry forever, a non-negative count is consumed one at a time.
type RetryCounter struct {
	infinite  bool
	remaining int
}

// NewRetryCounter builds a counter from an optional limit. A nil limit
// means unlimited retries.
func NewRetryCounter(limit *int) RetryCounter {
	if limit == nil {
		return RetryCounter{infinite: true}
	}
	return RetryCounter{remaining: *limit}
}

// Decrement consumes one retry attempt and reports whether another
// attempt is still permitted.
func (r *RetryCounter) Decrement() bool {
	if r.infinite {
		return true
	}
	if r.remaining == 0 {
		return false
	}
	r.remaining--
	return true
}

// UnsolicitedState tracks whether the mandatory startup NULL
// unsolicited response still needs to be sent, and if not, when the
// next unsolicited retry is permitted.
type UnsolicitedState struct {
	NullRequired  bool
	RetryDeadline *time.Time
}

// NewUnsolicitedState returns the state of a freshly started session:
// NULL unsolicited required, no retry deadline pending.
func NewUnsolicitedState() UnsolicitedState {
	return UnsolicitedState{NullRequired: true}
}

// SelectState records the object headers, sequence number, and
// reassembled frame id of a prior SELECT, so a following OPERATE can be
// checked for a full match within the configured select timeout.
type SelectState struct {
	headers  []byte
	seq      app.Sequence
	frameID  uint64
	deadline time.Time
}

// NewSelectState captures a SELECT's raw object-header bytes together
// with the fragment identity (sequence number and transport-assigned
// frame id) that produced it.
func NewSelectState(headers []byte, seq app.Sequence, frameID uint64, deadline time.Time) SelectState {
	cp := make([]byte, len(headers))
	copy(cp, headers)
	return SelectState{headers: cp, seq: seq, frameID: frameID, deadline: deadline}
}

// Matches reports whether an OPERATE arriving at now, with the given
// object headers, sequence number, and frame id, constitutes a valid
// match against this SELECT: identical object headers, within the
// select timeout, and carried by a later fragment than the SELECT
// itself -- seq and frameID must both have advanced, so neither a
// replayed SELECT nor a stale, out-of-order OPERATE can bind to it.
func (s *SelectState) Matches(headers []byte, seq app.Sequence, frameID uint64, now time.Time) bool {
	if s == nil {
		return false
	}
	if now.After(s.deadline) {
		return false
	}
	if seq == s.seq || frameID <= s.frameID {
		return false
	}
	return bytes.Equal(s.headers, headers)
}

// LastValidRequest remembers the most recently accepted request fragment
// and the exact response bytes sent for it, so a byte-identical repeat
// (duplicate) can be answered by replaying the stored response instead
// of re-executing side effects.
type LastValidRequest struct {
	set          bool
	seq          app.Sequence
	fragmentHash uint64
	response     []byte
}

// Set stores a freshly produced response against the fragment that
// produced it.
func (l *LastValidRequest) Set(seq app.Sequence, fragmentHash uint64, response []byte) {
	l.set = true
	l.seq = seq
	l.fragmentHash = fragmentHash
	l.response = append(l.response[:0], response...)
}

// Matches reports whether seq/hash identify the same request this
// LastValidRequest was last set from.
func (l *LastValidRequest) Matches(seq app.Sequence, fragmentHash uint64) bool {
	return l.set && l.seq == seq && l.fragmentHash == fragmentHash
}

// Response returns the stored response bytes for a matched duplicate.
func (l *LastValidRequest) Response() []byte {
	return l.response
}

// BroadcastType records the link-layer confirm mode of the broadcast,
// if any, this session most recently processed, for the sticky IIN1.0
// bit on the next solicited response.
type BroadcastType int

const (
	BroadcastTypeNone BroadcastType = iota
	BroadcastTypeOptional
	BroadcastTypeMandatory
)

// BroadcastAction reports what the session did with a broadcast
// fragment, the reason surfaced through OutstationInformation's
// BroadcastReceived callback.
type BroadcastAction int

const (
	// BroadcastActionProcessed means the function was recognized and
	// applied.
	BroadcastActionProcessed BroadcastAction = iota
	// BroadcastActionUnsupportedFunction means the function code is not
	// one of the handful allowed as a broadcast.
	BroadcastActionUnsupportedFunction
	// BroadcastActionIgnoredByConfiguration means broadcast processing
	// is disabled for this session entirely.
	BroadcastActionIgnoredByConfiguration
)

// SessionState is the complete mutable state of one outstation session,
// owned exclusively by the session's run loop (spec's single-owner
// concurrency model: no field here is touched from any other goroutine).
type SessionState struct {
	RestartIinAsserted     bool
	EnabledUnsolicitedClasses EventClasses
	LastValidRequest       LastValidRequest
	Select                 *SelectState
	Unsolicited            UnsolicitedState
	UnsolicitedSeq         app.Sequence
	DeferredRead           *fifo.Snapshot
	LastRecordedTime       *time.Time
	LastBroadcastType      BroadcastType
}

// DeferredReadCapacity bounds how large a READ's raw fragment may be
// while waiting for an in-flight unsolicited series to finish; it
// matches the largest solicited response buffer this stack allows.
const DeferredReadCapacity = 2048

// NewSessionState returns the state of a just-started session: IIN1.7
// (device restart) asserted, NULL unsolicited still required.
func NewSessionState() SessionState {
	return SessionState{
		RestartIinAsserted: true,
		Unsolicited:        NewUnsolicitedState(),
		DeferredRead:       fifo.New(DeferredReadCapacity),
	}
}

// HasDeferredRead reports whether a READ is currently parked awaiting
// the end of an unsolicited response series.
func (s *SessionState) HasDeferredRead() bool {
	return s.DeferredRead.IsSet()
}
