package master

import (
	"testing"
	"time"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRestartResponse(variation uint8, raw uint16) []byte {
	header := app.ResponseHeader{
		Control:  app.SingleResponseControlField(0),
		Function: app.FuncResponse,
	}
	buf := make([]byte, app.ResponseHeaderLength)
	_ = header.Write(buf)
	objects := []byte{52, variation, app.QualifierCount1ByteIndexed, 1, 0, byte(raw), byte(raw >> 8)}
	return append(buf, objects...)
}

func TestColdRestartBuildsRequestWithoutObjects(t *testing.T) {
	task := &RestartTask{Type: ColdRestart}
	req := task.BuildRequest()
	require.Len(t, req, 2)
	assert.Equal(t, byte(app.FuncColdRestart), req[1])
}

func TestWarmRestartParsesSecondsDelay(t *testing.T) {
	task := &RestartTask{Type: WarmRestart}
	resp := buildRestartResponse(1, 30)
	delay, err := task.HandleResponse(resp[app.ResponseHeaderLength:])
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, delay)
}

func TestColdRestartParsesMillisecondsDelay(t *testing.T) {
	task := &RestartTask{Type: ColdRestart}
	resp := buildRestartResponse(2, 1500)
	delay, err := task.HandleResponse(resp[app.ResponseHeaderLength:])
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, delay)
}

func TestRestartRejectsWrongGroup(t *testing.T) {
	task := &RestartTask{Type: ColdRestart}
	header := app.ResponseHeader{Control: app.SingleResponseControlField(0), Function: app.FuncResponse}
	buf := make([]byte, app.ResponseHeaderLength)
	_ = header.Write(buf)
	objects := []byte{30, 1, app.QualifierCount1ByteIndexed, 1, 0, 1, 2, 3, 4}
	resp := append(buf, objects...)

	_, err := task.HandleResponse(resp[app.ResponseHeaderLength:])
	assert.ErrorIs(t, err, ErrUnexpectedResponseHeaders)
}
