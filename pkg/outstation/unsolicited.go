package outstation

import (
	"context"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
)

// runUnsolicitedSeries sends one unsolicited response -- a NULL
// response if this is the mandatory startup announcement, otherwise a
// response carrying whatever events are currently buffered -- and waits
// for the matching UNSOLICITED CONFIRM, retrying on timeout up to the
// configured retry budget.
func (s *Session) runUnsolicitedSeries(ctx context.Context) error {
	isNull := s.state.Unsolicited.NullRequired

	var objects []byte
	if !isNull {
		writer := &bufWriter{max: s.config.UnsolicitedBufferSize - app.ResponseHeaderLength}
		s.db.Transaction(func(d Database) {
			d.ClassRead(s.state.EnabledUnsolicitedClasses, writer)
		})
		objects = writer.buf
	}

	limit := s.config.MaxUnsolicitedRetries
	if isNull {
		limit = ptr(0)
	}
	retries := NewRetryCounter(limit)

	for {
		seq := s.state.UnsolicitedSeq.Increment()
		control := app.UnsolicitedResponseControlField(seq)

		events := s.currentEventSummary()
		iin := AssembleIin(&s.state, events)
		response := s.buildResponse(control, app.FuncUnsolicitedResponse, iin, objects)

		if err := s.sendFragment(ctx, response); err != nil {
			return err
		}

		outcome, err := s.waitForUnsolicitedConfirm(ctx, seq)
		if err != nil {
			return err
		}

		if outcome.confirmed {
			s.state.Unsolicited.NullRequired = false
			s.state.Unsolicited.RetryDeadline = nil
			if !isNull {
				s.db.Transaction(func(d Database) { d.ClearWrittenEvents() })
			}
			return nil
		}

		if outcome.forceIdle || s.state.HasDeferredRead() {
			// Either a DISABLE_UNSOLICITED ended the series outright,
			// or a deferred READ arrived: either way the retry budget
			// is exhausted immediately rather than retransmitted, so
			// the idle loop can service the deferred read (or simply
			// return) without delay.
			s.db.Transaction(func(d Database) { d.Reset() })
			s.state.Unsolicited.RetryDeadline = nil
			return nil
		}

		if !retries.Decrement() {
			s.db.Transaction(func(d Database) { d.Reset() })
			deadline := s.clock.Now().Add(s.config.UnsolicitedRetryDelay)
			s.state.Unsolicited.RetryDeadline = &deadline
			return nil
		}
	}
}

// unsolConfirmOutcome reports how waitForUnsolicitedConfirm's window
// ended: confirmed (the series is done), forceIdle (a DISABLE_UNSOLICITED
// arrived mid-wait and must end the series immediately, bypassing the
// normal retry budget), or neither (a plain timeout, subject to retry).
type unsolConfirmOutcome struct {
	confirmed bool
	forceIdle bool
}

func (s *Session) waitForUnsolicitedConfirm(ctx context.Context, seq app.Sequence) (unsolConfirmOutcome, error) {
	deadline := time.NewTimer(s.config.ConfirmTimeout)
	defer deadline.Stop()
	s.info.EnterUnsolicitedConfirmWait(seq)

	for {
		select {
		case <-ctx.Done():
			return unsolConfirmOutcome{}, ctx.Err()
		case <-deadline.C:
			s.info.UnsolicitedConfirmTimeout(seq, true)
			return unsolConfirmOutcome{}, nil
		case frag := <-s.incoming:
			expect := seq
			classified := Classify(frag.Raw, frag.Broadcast, frag.FrameID, &s.state, nil, &expect)
			switch classified.Kind {
			case KindUnsolicitedConfirm:
				s.info.UnsolicitedConfirmReceived(seq)
				s.state.LastBroadcastType = BroadcastTypeNone
				return unsolConfirmOutcome{confirmed: true}, nil
			case KindNewRead:
				s.state.DeferredRead.Set(frag.Raw)
			case KindRepeatNonRead:
				// A repeat is answered with the stored response, without
				// re-running its side effects.
				if err := s.replayLastResponse(ctx, classified); err != nil {
					return unsolConfirmOutcome{}, err
				}
			case KindNewNonRead:
				// Processed and answered without disturbing the
				// unsolicited wait, except DISABLE_UNSOLICITED, which
				// ends the series outright once its response is sent.
				endsSeries := classified.Function == app.FuncDisableUnsolicited
				if err := s.processNewNonRead(ctx, classified, frag.Raw); err != nil {
					return unsolConfirmOutcome{}, err
				}
				if endsSeries {
					return unsolConfirmOutcome{forceIdle: true}, nil
				}
			case KindBroadcast:
				if err := s.processBroadcast(classified); err != nil {
					return unsolConfirmOutcome{}, err
				}
			default:
				// Malformed requests and stray confirms are ignored
				// while waiting: they don't extend the series.
			}
		}
	}
}
