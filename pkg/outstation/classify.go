package outstation

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dnp3go/dnp3/pkg/app"
)

// FragmentKind discriminates how a freshly reassembled fragment must be
// dispatched by the session's idle/confirm-wait loops.
type FragmentKind int

const (
	KindNewRead FragmentKind = iota
	KindRepeatRead
	KindNewNonRead
	KindRepeatNonRead
	KindSolicitedConfirm
	KindUnsolicitedConfirm
	KindBroadcast
	KindMalformedRequest
)

func (k FragmentKind) String() string {
	switch k {
	case KindNewRead:
		return "NewRead"
	case KindRepeatRead:
		return "RepeatRead"
	case KindNewNonRead:
		return "NewNonRead"
	case KindRepeatNonRead:
		return "RepeatNonRead"
	case KindSolicitedConfirm:
		return "SolicitedConfirm"
	case KindUnsolicitedConfirm:
		return "UnsolicitedConfirm"
	case KindBroadcast:
		return "Broadcast"
	case KindMalformedRequest:
		return "MalformedRequest"
	default:
		return "Unknown"
	}
}

// ClassifiedFragment is the result of classifying one reassembled
// application fragment against the session's current state.
type ClassifiedFragment struct {
	Kind         FragmentKind
	Control      app.ControlField
	Function     app.FunctionCode
	ObjectHeaders []byte
	FragmentHash uint64
	MalformedIin app.Iin2
	// FrameID is the transport reassembler's monotonic id for this
	// fragment, threaded through so SELECT/OPERATE matching can tell a
	// later fragment from a replayed one.
	FrameID uint64
	// Broadcast is the link-layer-detected broadcast mode this fragment
	// carried; BroadcastTypeNone for a non-broadcast fragment.
	Broadcast BroadcastType
}

// FragmentHash computes the non-cryptographic hash used to detect a
// byte-identical repeat of the previous request. The original
// implementation uses xxh64 seeded at zero for exactly this purpose;
// github.com/cespare/xxhash/v2 is its Go counterpart.
func FragmentHash(raw []byte) uint64 {
	return xxhash.Sum64(raw)
}

// Classify inspects one reassembled fragment against the session's
// outstanding confirm expectations and its record of the last accepted
// request, deciding how the idle or confirm-wait loop must act on it.
func Classify(raw []byte, broadcast BroadcastType, frameID uint64, state *SessionState, expectSolConfirm *app.Sequence, expectUnsolConfirm *app.Sequence) ClassifiedFragment {
	if len(raw) < 2 {
		return ClassifiedFragment{Kind: KindMalformedRequest, MalformedIin: app.Iin2ParameterError}
	}

	control := app.ParseControlField(raw[0])
	function := app.FunctionCode(raw[1])
	objectHeaders := raw[2:]

	if function == app.FuncConfirm {
		switch {
		case expectUnsolConfirm != nil && control.Seq == *expectUnsolConfirm && control.Uns:
			return ClassifiedFragment{Kind: KindUnsolicitedConfirm, Control: control, Function: function}
		case expectSolConfirm != nil && control.Seq == *expectSolConfirm && !control.Uns:
			return ClassifiedFragment{Kind: KindSolicitedConfirm, Control: control, Function: function}
		default:
			// A CONFIRM that matches nothing we're waiting for is
			// simply stale; classify it as malformed (the session
			// never answers it) rather than tearing down the session.
			return ClassifiedFragment{Kind: KindMalformedRequest, Control: control, Function: function, MalformedIin: app.Iin2ParameterError}
		}
	}

	if !function.ObjectsAllowed() && len(objectHeaders) != 0 {
		return ClassifiedFragment{Kind: KindMalformedRequest, Control: control, Function: function, MalformedIin: app.Iin2ParameterError}
	}

	hash := FragmentHash(raw)
	isRepeat := state.LastValidRequest.Matches(control.Seq, hash)

	if broadcast != BroadcastTypeNone {
		return ClassifiedFragment{Kind: KindBroadcast, Control: control, Function: function, ObjectHeaders: objectHeaders, FragmentHash: hash, FrameID: frameID, Broadcast: broadcast}
	}

	isRead := function == app.FuncRead
	switch {
	case isRepeat && isRead:
		return ClassifiedFragment{Kind: KindRepeatRead, Control: control, Function: function, ObjectHeaders: objectHeaders, FragmentHash: hash, FrameID: frameID}
	case isRepeat && !isRead:
		return ClassifiedFragment{Kind: KindRepeatNonRead, Control: control, Function: function, ObjectHeaders: objectHeaders, FragmentHash: hash, FrameID: frameID}
	case isRead:
		return ClassifiedFragment{Kind: KindNewRead, Control: control, Function: function, ObjectHeaders: objectHeaders, FragmentHash: hash, FrameID: frameID}
	default:
		return ClassifiedFragment{Kind: KindNewNonRead, Control: control, Function: function, ObjectHeaders: objectHeaders, FragmentHash: hash, FrameID: frameID}
	}
}
