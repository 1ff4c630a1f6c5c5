package outstation

import (
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
)

// RestartDelay is the device-reported recovery time returned from a
// restart request, tagged with the unit (seconds or milliseconds) the
// response must encode it as.
type RestartDelay struct {
	Seconds      *uint16
	Milliseconds *uint16
}

// OutstationApplication is the set of behaviors a concrete device must
// supply beyond raw point storage: things with side effects on the
// physical device itself.
type OutstationApplication interface {
	// ColdRestart begins a full device restart and returns the delay
	// until service resumes, or nil if the function is not supported.
	ColdRestart() *RestartDelay
	// WarmRestart begins a partial device restart.
	WarmRestart() *RestartDelay
	// WriteAbsoluteTime applies Group50Var1 (an absolute time set).
	WriteAbsoluteTime(value app.Time) app.Iin2
}

// OutstationInformation receives read-only notifications about session
// activity, useful for metrics and diagnostics; no method here may
// affect protocol behavior.
type OutstationInformation interface {
	BroadcastReceived(function app.FunctionCode, action BroadcastAction)
	EnterSolicitedConfirmWait(seq app.Sequence)
	SolicitedConfirmTimeout(seq app.Sequence)
	SolicitedConfirmReceived(seq app.Sequence)
	EnterUnsolicitedConfirmWait(seq app.Sequence)
	UnsolicitedConfirmTimeout(seq app.Sequence, retry bool)
	UnsolicitedConfirmReceived(seq app.Sequence)
}

// ControlHandler mediates SELECT/OPERATE/DIRECT_OPERATE requests,
// bracketing each control transaction with BeginControls/EndControls so
// an application can batch side effects (e.g. one hardware write burst)
// across however many control objects one request carries.
type ControlHandler interface {
	BeginControls()
	EndControls()
	Select(group, index int, rawControl []byte) CommandStatus
	Operate(group, index int, rawControl []byte) CommandStatus
}

// NopOutstationInformation is a no-op OutstationInformation for
// applications that don't need activity notifications.
type NopOutstationInformation struct{}

func (NopOutstationInformation) BroadcastReceived(app.FunctionCode, BroadcastAction)  {}
func (NopOutstationInformation) EnterSolicitedConfirmWait(app.Sequence)               {}
func (NopOutstationInformation) SolicitedConfirmTimeout(app.Sequence)                 {}
func (NopOutstationInformation) SolicitedConfirmReceived(app.Sequence)                {}
func (NopOutstationInformation) EnterUnsolicitedConfirmWait(app.Sequence)             {}
func (NopOutstationInformation) UnsolicitedConfirmTimeout(app.Sequence, bool)         {}
func (NopOutstationInformation) UnsolicitedConfirmReceived(app.Sequence)              {}

var _ OutstationInformation = NopOutstationInformation{}

// Clock abstracts time.Now so tests can control deadlines
// deterministically, following the same seam the teacher's heartbeat
// consumer uses for its timeout checks.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
