// Package outstation implements the DNP3 outstation session: the state
// machine that turns reassembled application fragments into responses,
// owning everything from duplicate detection through unsolicited
// response delivery (IEEE 1815 outstation behavior model).
package outstation

import (
	"context"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/sirupsen/logrus"
)

// IncomingFragment is one reassembled application fragment delivered to
// the session, tagged with whether its link address was the broadcast
// address.
type IncomingFragment struct {
	Raw       []byte
	Broadcast BroadcastType
	FrameID   uint64
}

// Session is the single-owner actor that runs one outstation's
// application-layer state machine. Every exported method that mutates
// state is only ever called from the goroutine running Run; fragments
// and database-change notifications cross into that goroutine purely
// over channels, the same ownership discipline gocanopen's SDOServer
// uses for its rx channel.
type Session struct {
	config   SessionConfig
	state    SessionState
	db       DatabaseHandle
	app      OutstationApplication
	controls ControlHandler
	info     OutstationInformation
	clock    Clock
	log      *logrus.Entry

	incoming  chan IncomingFragment
	dbChanged chan struct{}
	send      func([]byte) error

	transportSeq uint8
}

// NewSession constructs a Session ready to Run. send is called once per
// outgoing application fragment; the caller is responsible for handing
// that fragment to the transport writer and link layer.
func NewSession(config SessionConfig, db DatabaseHandle, appl OutstationApplication, controls ControlHandler, info OutstationInformation, clock Clock, log *logrus.Entry, send func([]byte) error) *Session {
	if info == nil {
		info = NopOutstationInformation{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		config:    config,
		state:     NewSessionState(),
		db:        db,
		app:       appl,
		controls:  controls,
		info:      info,
		clock:     clock,
		log:       log,
		incoming:  make(chan IncomingFragment),
		dbChanged: make(chan struct{}, 1),
		send:      send,
	}
}

// PushFragment hands one reassembled application fragment to the
// session. It blocks until the session's run loop is ready to accept
// it, preserving arrival order.
func (s *Session) PushFragment(ctx context.Context, raw []byte, broadcast BroadcastType, frameID uint64) error {
	select {
	case s.incoming <- IncomingFragment{Raw: raw, Broadcast: broadcast, FrameID: frameID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyDatabaseChanged wakes the idle loop to re-evaluate whether an
// unsolicited response series should begin. Non-blocking: a pending
// notification already queued is sufficient.
func (s *Session) NotifyDatabaseChanged() {
	select {
	case s.dbChanged <- struct{}{}:
	default:
	}
}

// Run drives the outstation session until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := s.runIdle(ctx); err != nil {
			return err
		}
	}
}

// runIdle implements the session's idle state: service a deferred read
// if one is parked, otherwise consider starting an unsolicited series,
// otherwise block until a request arrives, the database signals a
// change, or the keep-alive timer fires, and service the request if
// that is what arrived.
func (s *Session) runIdle(ctx context.Context) error {
	if s.state.HasDeferredRead() {
		return s.handleDeferredRead(ctx)
	}

	if s.shouldStartUnsolicited() {
		return s.runUnsolicitedSeries(ctx)
	}

	var keepAlive <-chan time.Time
	if s.config.KeepAliveTimeout > 0 {
		timer := time.NewTimer(s.config.KeepAliveTimeout)
		defer timer.Stop()
		keepAlive = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case frag := <-s.incoming:
		return s.handleOneRequestFromIdle(ctx, frag)
	case <-s.dbChanged:
		return nil
	case <-keepAlive:
		return nil
	}
}

func (s *Session) shouldStartUnsolicited() bool {
	if !s.state.EnabledUnsolicitedClasses.Any() {
		return s.state.Unsolicited.NullRequired
	}
	if s.state.Unsolicited.NullRequired {
		return true
	}
	if s.state.Unsolicited.RetryDeadline != nil && s.clock.Now().Before(*s.state.Unsolicited.RetryDeadline) {
		return false
	}
	hasEvents := false
	s.db.Transaction(func(d Database) {
		hasEvents = d.HasEvents(s.state.EnabledUnsolicitedClasses)
	})
	return hasEvents
}

func (s *Session) handleOneRequestFromIdle(ctx context.Context, frag IncomingFragment) error {
	var expectNone *app.Sequence
	classified := Classify(frag.Raw, frag.Broadcast, frag.FrameID, &s.state, expectNone, expectNone)

	switch classified.Kind {
	case KindNewRead, KindRepeatRead:
		// A repeated READ arriving from Idle is deliberately NOT
		// answered by replaying the prior response: doing so could
		// resurrect a stale multi-fragment series. It is built fresh
		// instead, per the documented deviation from a literal
		// reading of the duplicate-detection rule (see SPEC_FULL.md's
		// open-question decisions); only a repeat observed during an
		// active confirm wait replays verbatim.
		return s.processNewRead(ctx, classified, frag.Raw)
	case KindNewNonRead:
		return s.processNewNonRead(ctx, classified, frag.Raw)
	case KindRepeatNonRead:
		return s.replayLastResponse(ctx, classified)
	case KindBroadcast:
		return s.processBroadcast(classified)
	case KindMalformedRequest:
		if len(frag.Raw) >= 2 && classified.Function == app.FuncConfirm {
			// A stray CONFIRM observed outside a confirm-wait state: the
			// session simply has nothing to do with it.
			return nil
		}
		return s.processMalformed(ctx, classified, frag.Raw)
	default:
		return nil
	}
}

// recordAccepted stores the fragment this response answers, so a
// byte-identical retransmission from the master can be answered by
// replaying response instead of re-running any side effects. A
// malformed request is recorded too, replacing the previous entry; its
// hash is not computed, so a repeat of it is classified and rejected
// afresh, which produces the same error response bytes.
func (s *Session) recordAccepted(classified ClassifiedFragment, response []byte) {
	s.state.LastValidRequest.Set(classified.Control.Seq, classified.FragmentHash, response)
}

func (s *Session) replayLastResponse(ctx context.Context, classified ClassifiedFragment) error {
	return s.sendFragment(ctx, s.state.LastValidRequest.Response())
}

func (s *Session) processMalformed(ctx context.Context, classified ClassifiedFragment, raw []byte) error {
	header := app.ResponseHeader{
		Control:  app.SingleResponseControlField(classified.Control.Seq),
		Function: app.FuncResponse,
		Iin:      app.Iin{Iin2: classified.MalformedIin},
	}
	buf := make([]byte, app.ResponseHeaderLength)
	_ = header.Write(buf)
	s.recordAccepted(classified, buf)
	return s.sendFragment(ctx, buf)
}

// processBroadcast applies a broadcast fragment's side effects, if any,
// and always reports the outcome via the broadcast_received callback.
// The sticky IIN1.0 bit this broadcast owes on the next response is
// taken from the link layer's own mode classification (Mandatory or
// Optional), never re-derived from which function happened to run --
// an unsupported or config-disabled broadcast still owes the bit.
func (s *Session) processBroadcast(classified ClassifiedFragment) error {
	s.state.LastBroadcastType = classified.Broadcast

	if !s.config.BroadcastEnabled {
		s.info.BroadcastReceived(classified.Function, BroadcastActionIgnoredByConfiguration)
		return nil
	}
	if !classified.Function.IsAllowedAsBroadcast() {
		s.info.BroadcastReceived(classified.Function, BroadcastActionUnsupportedFunction)
		return nil
	}

	switch classified.Function {
	case app.FuncWrite:
		s.handleWrite(classified.ObjectHeaders)
	case app.FuncDirectOperateNoResponse:
		requests, _, err := DecodeControls(classified.ObjectHeaders)
		if err == nil {
			RunControlTransaction(s.controls, requests, s.config.MaxControlsPerRequest, true)
		}
	case app.FuncImmediateFreezeNoResponse:
		s.handleFreeze(classified.ObjectHeaders, false)
	case app.FuncFreezeClearNoResponse:
		s.handleFreeze(classified.ObjectHeaders, true)
	case app.FuncRecordCurrentTime:
		now := s.clock.Now()
		s.state.LastRecordedTime = &now
	case app.FuncEnableUnsolicited, app.FuncDisableUnsolicited:
		s.handleEnableOrDisableUnsolicited(classified.Function, classified.ObjectHeaders)
	}
	s.info.BroadcastReceived(classified.Function, BroadcastActionProcessed)
	return nil
}

func (s *Session) sendFragment(ctx context.Context, fragment []byte) error {
	if s.send == nil {
		return nil
	}
	return s.send(fragment)
}

// handleDeferredRead services a READ that arrived while an unsolicited
// series occupied the session, now that the session is idle again.
func (s *Session) handleDeferredRead(ctx context.Context) error {
	raw := make([]byte, len(s.state.DeferredRead.Bytes()))
	copy(raw, s.state.DeferredRead.Bytes())
	s.state.DeferredRead.Clear()

	classified := Classify(raw, BroadcastTypeNone, 0, &s.state, nil, nil)
	return s.processNewRead(ctx, classified, raw)
}
