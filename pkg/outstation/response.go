package outstation

import "github.com/dnp3go/dnp3/pkg/app"

// EventSummary reports which event classes currently hold buffered,
// unconfirmed events, and whether the event buffer has overflowed.
type EventSummary struct {
	Class1, Class2, Class3 bool
	BufferOverflow         bool
}

// AssembleIin builds the IIN bits owed on the next response, combining
// session bookkeeping (restart latch, sticky broadcast acknowledgement)
// with the database's current event state. Consuming the sticky
// broadcast bit is this call's only side effect on state.
func AssembleIin(state *SessionState, events EventSummary) app.Iin {
	var iin app.Iin

	if state.RestartIinAsserted {
		iin.Iin1 |= app.Iin1DeviceRestart
	}
	if events.Class1 {
		iin.Iin1 |= app.Iin1Class1Events
	}
	if events.Class2 {
		iin.Iin1 |= app.Iin1Class2Events
	}
	if events.Class3 {
		iin.Iin1 |= app.Iin1Class3Events
	}
	if events.BufferOverflow {
		iin.Iin2 |= app.Iin2EventBufferOverflow
	}

	if state.LastBroadcastType != BroadcastTypeNone {
		iin.Iin1 |= app.Iin1Broadcast
		if state.LastBroadcastType != BroadcastTypeMandatory {
			state.LastBroadcastType = BroadcastTypeNone
		}
	}

	return iin
}

// ResponseSeries tracks progress through a possibly multi-fragment
// response: it hands out the fragments in order and reports whether
// more remain after the current one (clearing FIN). It does not track
// confirms.
type ResponseSeries struct {
	Fragments [][]byte
	nextIndex int
}

// Next returns the next fragment to send and advances the cursor, or
// ok=false once the series is exhausted.
func (r *ResponseSeries) Next() (fragment []byte, isLast bool, ok bool) {
	if r.nextIndex >= len(r.Fragments) {
		return nil, false, false
	}
	fragment = r.Fragments[r.nextIndex]
	isLast = r.nextIndex == len(r.Fragments)-1
	r.nextIndex++
	return fragment, isLast, true
}

// Done reports whether every fragment in the series has been handed out.
func (r *ResponseSeries) Done() bool {
	return r.nextIndex >= len(r.Fragments)
}
