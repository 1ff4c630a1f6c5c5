package main

import (
	"sync"

	"github.com/dnp3go/dnp3/pkg/app"
	"github.com/dnp3go/dnp3/pkg/outstation"
)

// demoDatabase is the bare in-memory point set this demo binary serves:
// a handful of binaries and analogs, enough to exercise a READ/Class 0
// poll and a counter freeze without pulling in a real point-database
// implementation (component E is external to this core, per spec).
type demoDatabase struct {
	mu       sync.Mutex
	binaries [4]bool
	analogs  [4]int32
	counters [2]uint32
	frozen   [2]uint32
}

// demoDatabaseHandle adapts demoDatabase to outstation.DatabaseHandle,
// serializing every transaction the same way the teacher's SDOServer
// guards its object dictionary with a single mutex per transfer.
type demoDatabaseHandle struct {
	db *demoDatabase
}

func (h demoDatabaseHandle) Transaction(fn func(outstation.Database)) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	fn(h.db)
}

func (d *demoDatabase) SelectPoint(group, index int) app.Iin2 {
	if index < 0 || index >= len(d.binaries) {
		return app.Iin2ParameterError
	}
	return 0
}

func (d *demoDatabase) OperatePoint(group, index int, rawControl []byte) outstation.CommandStatus {
	if index < 0 || index >= len(d.binaries) {
		return outstation.CommandStatusOutOfRange
	}
	d.binaries[index] = !d.binaries[index]
	return outstation.CommandStatusSuccess
}

func (d *demoDatabase) StaticRead(group, variation int, writer outstation.ResponseWriter) bool {
	switch group {
	case 1: // Binary Input
		for _, v := range d.binaries {
			flags := app.ONLINE
			if v {
				flags = flags.WithBitsSet(1 << 7)
			}
			if !writer.Write([]byte{flags.Value}) {
				return false
			}
		}
	case 30: // Analog Input
		for _, v := range d.analogs {
			if !writer.Write(encodeAnalog(v)) {
				return false
			}
		}
	case 20: // Counter
		for _, v := range d.counters {
			if !writer.Write(encodeCounter(v)) {
				return false
			}
		}
	}
	return true
}

func (d *demoDatabase) ClassRead(classes outstation.EventClasses, writer outstation.ResponseWriter) bool {
	// This demo never buffers events, so a class read always completes
	// with nothing written.
	return true
}

func (d *demoDatabase) HasEvents(classes outstation.EventClasses) bool {
	return false
}

func (d *demoDatabase) ClearWrittenEvents() {}

func (d *demoDatabase) Reset() {}

func (d *demoDatabase) Freeze(group, index int, clearAfter bool) app.Iin2 {
	if index == -1 {
		for i := range d.counters {
			d.frozen[i] = d.counters[i]
			if clearAfter {
				d.counters[i] = 0
			}
		}
		return 0
	}
	if index < 0 || index >= len(d.counters) {
		return app.Iin2ParameterError
	}
	d.frozen[index] = d.counters[index]
	if clearAfter {
		d.counters[index] = 0
	}
	return 0
}

func (d *demoDatabase) WriteTime(value app.Time) app.Iin2 {
	return 0
}

func encodeAnalog(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func encodeCounter(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// demoApplication answers restart/time-sync requests with canned,
// immediately-successful behavior; a real device would drive actual
// hardware recovery and clock discipline here.
type demoApplication struct{}

func (demoApplication) ColdRestart() *outstation.RestartDelay {
	seconds := uint16(1)
	return &outstation.RestartDelay{Seconds: &seconds}
}

func (demoApplication) WarmRestart() *outstation.RestartDelay {
	millis := uint16(200)
	return &outstation.RestartDelay{Milliseconds: &millis}
}

func (demoApplication) WriteAbsoluteTime(value app.Time) app.Iin2 {
	return 0
}

// demoControlHandler applies SELECT/OPERATE/DIRECT_OPERATE against the
// same in-memory binaries demoDatabase.StaticRead reports, bracketing
// each request with Begin/EndControls the way a real device would
// batch a burst of hardware writes.
type demoControlHandler struct {
	db *demoDatabase
}

func (h *demoControlHandler) BeginControls() {}
func (h *demoControlHandler) EndControls()   {}

func (h *demoControlHandler) Select(group, index int, rawControl []byte) outstation.CommandStatus {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	if index < 0 || index >= len(h.db.binaries) {
		return outstation.CommandStatusOutOfRange
	}
	return outstation.CommandStatusSuccess
}

func (h *demoControlHandler) Operate(group, index int, rawControl []byte) outstation.CommandStatus {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	if index < 0 || index >= len(h.db.binaries) {
		return outstation.CommandStatusOutOfRange
	}
	h.db.binaries[index] = !h.db.binaries[index]
	return outstation.CommandStatusSuccess
}
