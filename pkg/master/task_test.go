package master

import (
	"testing"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonReadTaskRoundTrip(t *testing.T) {
	task := &NonReadTask{Function: app.FuncWrite, Objects: []byte{80, 1, app.QualifierCount1ByteIndexed, 1, 7}}
	req := task.BuildRequest()
	assert.Equal(t, byte(app.FuncWrite), req[1])

	header := app.ResponseHeader{Control: app.SingleResponseControlField(app.ParseControlField(req[0]).Seq), Function: app.FuncResponse}
	buf := make([]byte, app.ResponseHeaderLength)
	require.NoError(t, header.Write(buf))

	result, err := task.HandleResponse(buf)
	require.NoError(t, err)
	assert.Equal(t, app.Iin{}, result.Iin)
}

func TestNonReadTaskRejectsMismatchedSequence(t *testing.T) {
	task := &NonReadTask{Function: app.FuncWrite}
	task.BuildRequest()

	header := app.ResponseHeader{Control: app.SingleResponseControlField(app.Sequence(9)), Function: app.FuncResponse}
	buf := make([]byte, app.ResponseHeaderLength)
	require.NoError(t, header.Write(buf))

	_, err := task.HandleResponse(buf)
	assert.ErrorIs(t, err, ErrUnexpectedResponseHeaders)
}
