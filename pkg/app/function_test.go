package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectsAllowed(t *testing.T) {
	assert.False(t, FuncColdRestart.ObjectsAllowed())
	assert.False(t, FuncWarmRestart.ObjectsAllowed())
	assert.False(t, FuncDelayMeasure.ObjectsAllowed())
	assert.False(t, FuncRecordCurrentTime.ObjectsAllowed())
	assert.False(t, FuncConfirm.ObjectsAllowed())
	assert.True(t, FuncRead.ObjectsAllowed())
	assert.True(t, FuncWrite.ObjectsAllowed())
	assert.True(t, FuncSelect.ObjectsAllowed())
}

func TestIsAllowedAsBroadcast(t *testing.T) {
	assert.True(t, FuncWrite.IsAllowedAsBroadcast())
	assert.True(t, FuncDirectOperateNoResponse.IsAllowedAsBroadcast())
	assert.False(t, FuncRead.IsAllowedAsBroadcast())
	assert.False(t, FuncSelect.IsAllowedAsBroadcast())
}

func TestFunctionCodeString(t *testing.T) {
	assert.Equal(t, "COLD_RESTART", FuncColdRestart.String())
	assert.Contains(t, FunctionCode(99).String(), "UNKNOWN")
}
