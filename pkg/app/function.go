package app

import "fmt"

// FunctionCode identifies the operation requested or answered by an
// application fragment.
type FunctionCode uint8

const (
	FuncConfirm                 FunctionCode = 0
	FuncRead                    FunctionCode = 1
	FuncWrite                   FunctionCode = 2
	FuncSelect                  FunctionCode = 3
	FuncOperate                 FunctionCode = 4
	FuncDirectOperate           FunctionCode = 5
	FuncDirectOperateNoResponse FunctionCode = 6
	FuncImmediateFreeze         FunctionCode = 7
	FuncImmediateFreezeNoResponse FunctionCode = 8
	FuncFreezeClear             FunctionCode = 9
	FuncFreezeClearNoResponse   FunctionCode = 10
	FuncColdRestart             FunctionCode = 13
	FuncWarmRestart             FunctionCode = 14
	FuncEnableUnsolicited       FunctionCode = 20
	FuncDisableUnsolicited      FunctionCode = 21
	FuncDelayMeasure            FunctionCode = 23
	FuncRecordCurrentTime       FunctionCode = 24
	FuncResponse                FunctionCode = 129
	FuncUnsolicitedResponse     FunctionCode = 130
)

var functionNames = map[FunctionCode]string{
	FuncConfirm:                   "CONFIRM",
	FuncRead:                      "READ",
	FuncWrite:                     "WRITE",
	FuncSelect:                    "SELECT",
	FuncOperate:                   "OPERATE",
	FuncDirectOperate:             "DIRECT_OPERATE",
	FuncDirectOperateNoResponse:   "DIRECT_OPERATE_NO_RESPONSE",
	FuncImmediateFreeze:           "IMMEDIATE_FREEZE",
	FuncImmediateFreezeNoResponse: "IMMEDIATE_FREEZE_NO_RESPONSE",
	FuncFreezeClear:               "FREEZE_CLEAR",
	FuncFreezeClearNoResponse:     "FREEZE_CLEAR_NO_RESPONSE",
	FuncColdRestart:               "COLD_RESTART",
	FuncWarmRestart:               "WARM_RESTART",
	FuncEnableUnsolicited:         "ENABLE_UNSOLICITED",
	FuncDisableUnsolicited:        "DISABLE_UNSOLICITED",
	FuncDelayMeasure:              "DELAY_MEASURE",
	FuncRecordCurrentTime:         "RECORD_CURRENT_TIME",
	FuncResponse:                  "RESPONSE",
	FuncUnsolicitedResponse:       "UNSOLICITED_RESPONSE",
}

func (f FunctionCode) String() string {
	if name, ok := functionNames[f]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(f))
}

// ObjectsAllowed reports whether a request carrying this function code is
// permitted to include object headers. A handful of function codes (the
// two time-related queries, the restart pair, and CONFIRM) are always
// sent with zero objects.
func (f FunctionCode) ObjectsAllowed() bool {
	switch f {
	case FuncConfirm, FuncDelayMeasure, FuncRecordCurrentTime, FuncColdRestart, FuncWarmRestart:
		return false
	default:
		return true
	}
}

// IsAllowedAsBroadcast reports whether this function code may be
// processed when addressed to the broadcast address. Per IEEE 1815,
// only a narrow set of non-read functions are broadcastable; anything
// the outstation cannot safely no-ack is rejected.
func (f FunctionCode) IsAllowedAsBroadcast() bool {
	switch f {
	case FuncWrite, FuncDirectOperateNoResponse, FuncImmediateFreezeNoResponse,
		FuncFreezeClearNoResponse, FuncRecordCurrentTime, FuncEnableUnsolicited, FuncDisableUnsolicited:
		return true
	default:
		return false
	}
}
