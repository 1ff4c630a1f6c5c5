package outstation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	events         EventSummary
	resetCalls     int
	clearCalls     int
	writtenTime    *app.Time
}

func (f *fakeDB) Transaction(fn func(Database)) { fn(f) }

func (f *fakeDB) SelectPoint(group, index int) app.Iin2 { return 0 }
func (f *fakeDB) OperatePoint(group, index int, raw []byte) CommandStatus {
	return CommandStatusSuccess
}
func (f *fakeDB) StaticRead(group, variation int, writer ResponseWriter) bool { return true }
func (f *fakeDB) ClassRead(classes EventClasses, writer ResponseWriter) bool { return true }
func (f *fakeDB) HasEvents(classes EventClasses) bool {
	return (classes.Class1 && f.events.Class1) || (classes.Class2 && f.events.Class2) || (classes.Class3 && f.events.Class3)
}
func (f *fakeDB) ClearWrittenEvents()             { f.clearCalls++ }
func (f *fakeDB) Reset()                          { f.resetCalls++ }
func (f *fakeDB) Freeze(group, index int, clear bool) app.Iin2 { return 0 }
func (f *fakeDB) WriteTime(value app.Time) app.Iin2 {
	f.writtenTime = &value
	return 0
}

type fakeApp struct {
	coldCalls int
}

func (f *fakeApp) ColdRestart() *RestartDelay {
	f.coldCalls++
	seconds := uint16(5)
	return &RestartDelay{Seconds: &seconds}
}
func (f *fakeApp) WarmRestart() *RestartDelay { return nil }
func (f *fakeApp) WriteAbsoluteTime(value app.Time) app.Iin2 { return 0 }

type fakeControls struct {
	operateCalls int
	selectCalls  int
}

func (f *fakeControls) BeginControls() {}
func (f *fakeControls) EndControls()   {}
func (f *fakeControls) Select(group, index int, raw []byte) CommandStatus {
	f.selectCalls++
	return CommandStatusSuccess
}
func (f *fakeControls) Operate(group, index int, raw []byte) CommandStatus {
	f.operateCalls++
	return CommandStatusSuccess
}

func newTestSession(t *testing.T) (*Session, *fakeDB, chan []byte) {
	t.Helper()
	db := &fakeDB{}
	sent := make(chan []byte, 16)
	cfg := DefaultSessionConfig()
	cfg.ConfirmTimeout = 50 * time.Millisecond
	cfg.UnsolicitedRetryDelay = 50 * time.Millisecond
	s := NewSession(cfg, db, &fakeApp{}, &fakeControls{}, nil, nil, nil, func(frag []byte) error {
		sent <- frag
		return nil
	})
	return s, db, sent
}

func runSession(t *testing.T, s *Session) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	return cancel
}

func drainNullUnsolicited(t *testing.T, s *Session, sent chan []byte) {
	t.Helper()
	select {
	case frag := <-sent:
		control := app.ParseControlField(frag[0])
		require.True(t, control.Uns)
		confirm := []byte{app.ControlField{Fir: true, Fin: true, Seq: control.Seq, Uns: true}.Byte(), byte(app.FuncConfirm)}
		require.NoError(t, s.PushFragment(context.Background(), confirm, BroadcastTypeNone, 0))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for NULL unsolicited response")
	}
}

func TestColdRestartRoundTrip(t *testing.T) {
	s, _, sent := newTestSession(t)
	cancel := runSession(t, s)
	defer cancel()

	drainNullUnsolicited(t, s, sent)

	req := []byte{app.RequestControlField(1).Byte(), byte(app.FuncColdRestart)}
	require.NoError(t, s.PushFragment(context.Background(), req, BroadcastTypeNone, 1))

	select {
	case resp := <-sent:
		header, err := parseResponseForTest(resp)
		require.NoError(t, err)
		assert.Equal(t, app.FuncResponse, header.Function)
		assert.Equal(t, []byte{52, 1, app.QualifierCount1ByteIndexed, 1, 0, 5, 0}, resp[app.ResponseHeaderLength:])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cold restart response")
	}
}

func TestDuplicateNonReadReplaysStoredResponse(t *testing.T) {
	s, _, sent := newTestSession(t)
	cancel := runSession(t, s)
	defer cancel()

	drainNullUnsolicited(t, s, sent)

	req := []byte{app.RequestControlField(2).Byte(), byte(app.FuncColdRestart)}
	require.NoError(t, s.PushFragment(context.Background(), req, BroadcastTypeNone, 1))
	first := <-sent

	require.NoError(t, s.PushFragment(context.Background(), req, BroadcastTypeNone, 2))
	second := <-sent

	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.app.(*fakeApp).coldCalls)
}

func TestSelectOperateMismatchReturnsNoSelect(t *testing.T) {
	s, _, sent := newTestSession(t)
	cancel := runSession(t, s)
	defer cancel()

	drainNullUnsolicited(t, s, sent)

	selectHeaders := buildCrobRequest(1)
	selectReq := append([]byte{app.RequestControlField(3).Byte(), byte(app.FuncSelect)}, selectHeaders...)
	require.NoError(t, s.PushFragment(context.Background(), selectReq, BroadcastTypeNone, 1))
	<-sent

	differentHeaders := buildCrobRequest(2)
	operateReq := append([]byte{app.RequestControlField(4).Byte(), byte(app.FuncOperate)}, differentHeaders...)
	require.NoError(t, s.PushFragment(context.Background(), operateReq, BroadcastTypeNone, 2))
	resp := <-sent

	objects := resp[app.ResponseHeaderLength:]
	require.Len(t, objects, 4)
	assert.Equal(t, byte(CommandStatusNoSelect), objects[3])
}

func TestBroadcastWriteSetsStickyIinOnNextResponse(t *testing.T) {
	s, _, sent := newTestSession(t)
	cancel := runSession(t, s)
	defer cancel()

	drainNullUnsolicited(t, s, sent)

	writeHeaders := []byte{80, 1, app.QualifierCount1ByteIndexed, 1, 7, 0}
	writeReq := append([]byte{app.ControlField{Fir: true, Fin: true, Seq: 1}.Byte(), byte(app.FuncWrite)}, writeHeaders...)
	require.NoError(t, s.PushFragment(context.Background(), writeReq, BroadcastTypeOptional, 1))

	req := []byte{app.RequestControlField(5).Byte(), byte(app.FuncColdRestart)}
	require.NoError(t, s.PushFragment(context.Background(), req, BroadcastTypeNone, 2))

	resp := <-sent
	header, err := parseResponseForTest(resp)
	require.NoError(t, err)
	assert.True(t, header.Iin.IsSet(app.Iin1Broadcast))
}

func parseResponseForTest(resp []byte) (app.ResponseHeader, error) {
	if len(resp) < app.ResponseHeaderLength {
		return app.ResponseHeader{}, fmt.Errorf("response too short")
	}
	return app.ResponseHeader{
		Control:  app.ParseControlField(resp[0]),
		Function: app.FunctionCode(resp[1]),
		Iin:      app.Iin{Iin1: app.Iin1(resp[2]), Iin2: app.Iin2(resp[3])},
	}, nil
}
