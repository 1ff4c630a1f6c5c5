package master

import (
	"context"

	"github.com/dnp3go/dnp3/pkg/app"
)

// NonReadTask is a generic single-request/single-response master task
// for any function code that carries at most one response fragment:
// WRITE, the freeze functions, and the direct-operate/select/operate
// control family. It follows the same blocking request/response
// exchange pattern as the teacher's SDO client, minus the transfer
// segmentation SDO needs and this protocol does not.
type NonReadTask struct {
	Function app.FunctionCode
	Objects  []byte
	seq      app.Sequence
	sentSeq  app.Sequence
}

// BuildRequest encodes this task's request fragment.
func (t *NonReadTask) BuildRequest() []byte {
	control := app.RequestControlField(t.seq)
	t.sentSeq = t.seq
	t.seq.Increment()
	out := make([]byte, 2+len(t.Objects))
	out[0] = control.Byte()
	out[1] = byte(t.Function)
	copy(out[2:], t.Objects)
	return out
}

// TaskResult is the parsed outcome of a NonReadTask's response.
type TaskResult struct {
	Iin     app.Iin
	Objects []byte
}

// HandleResponse splits a raw response fragment into its IIN bits and
// trailing object data.
func (t *NonReadTask) HandleResponse(response []byte) (TaskResult, error) {
	if len(response) < app.ResponseHeaderLength {
		return TaskResult{}, ErrMalformedResponse
	}
	control := app.ParseControlField(response[0])
	if control.Seq != t.sentSeq {
		return TaskResult{}, ErrUnexpectedResponseHeaders
	}
	return TaskResult{
		Iin:     app.Iin{Iin1: app.Iin1(response[2]), Iin2: app.Iin2(response[3])},
		Objects: response[app.ResponseHeaderLength:],
	}, nil
}

// Run sends the task's request and blocks for its response.
func (t *NonReadTask) Run(ctx context.Context, send func([]byte) error, recv func(context.Context) ([]byte, error)) (TaskResult, error) {
	if err := send(t.BuildRequest()); err != nil {
		return TaskResult{}, err
	}
	response, err := recv(ctx)
	if err != nil {
		return TaskResult{}, err
	}
	return t.HandleResponse(response)
}
