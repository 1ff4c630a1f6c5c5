// Package master implements the DNP3 master-side task layer: request
// construction and response interpretation for the small set of
// non-read operations this stack issues against an outstation.
package master

import (
	"context"
	"fmt"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
)

// RestartType selects between the two restart requests IEEE 1815
// defines; they differ only in function code and in how strongly they
// reset the outstation's internal state.
type RestartType int

const (
	ColdRestart RestartType = iota
	WarmRestart
)

// Function returns the application function code this restart type
// requests.
func (t RestartType) Function() app.FunctionCode {
	if t == WarmRestart {
		return app.FuncWarmRestart
	}
	return app.FuncColdRestart
}

// TaskError classifies why a master task failed to complete.
type TaskError int

const (
	ErrResponseTimeout TaskError = iota
	ErrUnexpectedResponseHeaders
	ErrMalformedResponse
	ErrTaskCancelled
)

func (e TaskError) Error() string {
	switch e {
	case ErrResponseTimeout:
		return "master: response timeout"
	case ErrUnexpectedResponseHeaders:
		return "master: response did not contain the expected object headers"
	case ErrMalformedResponse:
		return "master: malformed response"
	case ErrTaskCancelled:
		return "master: task cancelled"
	default:
		return fmt.Sprintf("master: task error %d", int(e))
	}
}

// RestartTask issues a cold or warm restart request and parses the
// outstation's reported recovery delay from its Group52 response.
type RestartTask struct {
	Type RestartType
	seq  app.Sequence
}

// BuildRequest encodes the restart request fragment: a bare application
// header with no object headers, matching FunctionCode.ObjectsAllowed
// being false for both restart functions.
func (t *RestartTask) BuildRequest() []byte {
	control := app.RequestControlField(t.seq)
	t.seq.Increment()
	return []byte{control.Byte(), byte(t.Type.Function())}
}

// HandleResponse parses a restart response fragment (application
// header already stripped by the caller, leaving only object data) and
// returns the outstation's reported recovery delay.
func (t *RestartTask) HandleResponse(objectData []byte) (time.Duration, error) {
	header, _, err := app.ParseObjectHeaderPrefix(objectData)
	if err != nil {
		return 0, ErrMalformedResponse
	}
	if header.Group != 52 || header.Count() != 1 {
		return 0, ErrUnexpectedResponseHeaders
	}

	pos := header.HeaderLength
	if len(objectData) < pos+2 {
		return 0, ErrMalformedResponse
	}
	raw := uint16(objectData[pos]) | uint16(objectData[pos+1])<<8

	switch header.Variation {
	case 1:
		return time.Duration(raw) * time.Second, nil
	case 2:
		return time.Duration(raw) * time.Millisecond, nil
	default:
		return 0, ErrUnexpectedResponseHeaders
	}
}

// Run sends a restart request via send and blocks for the matching
// response via recv, returning the outstation's reported recovery
// delay. Both send and recv are supplied by the transport/session glue
// code the demo master binary wires together.
func (t *RestartTask) Run(ctx context.Context, send func([]byte) error, recv func(context.Context) ([]byte, error)) (time.Duration, error) {
	if err := send(t.BuildRequest()); err != nil {
		return 0, err
	}
	response, err := recv(ctx)
	if err != nil {
		return 0, err
	}
	if len(response) < app.ResponseHeaderLength {
		return 0, ErrMalformedResponse
	}
	return t.HandleResponse(response[app.ResponseHeaderLength:])
}
