// Package controller packages the parameter store, sensor source,
// lifecycle state machine, parser state, and error counters as fields of a
// single owning instance, per the Ownership note in spec.md §9. Nothing in
// this package is process-global: a test may construct as many
// independent Controllers as it needs.
package controller

import (
	"log"
	"sync"

	"github.com/librescoot/sensor-module/internal/dispatch"
	"github.com/librescoot/sensor-module/internal/frame"
	"github.com/librescoot/sensor-module/internal/lifecycle"
	"github.com/librescoot/sensor-module/internal/params"
	"github.com/librescoot/sensor-module/internal/sensor"
)

// Clock is the abstract monotonic millisecond source named in spec.md §6.
type Clock interface {
	NowMs() uint64
}

// ByteSink is the blocking per-byte emit side of the byte transport.
type ByteSink interface {
	WriteByte(b byte) error
}

// Snapshot is a point-in-time, read-only copy of controller state, used by
// telemetry and diagnostics tooling; the protocol core never reads it back.
type Snapshot struct {
	State          lifecycle.State
	UptimeMs       uint32
	ErrorFlags     uint32
	RxErrCount     uint32
	TxErrCount     uint32
	SensorFault    sensor.FaultMode
	SampleRate     uint16
	StatusPeriodMs uint16
	SensorEnable   bool
}

// Controller is the module instance: it owns every singleton named in
// spec.md §3 and guards them with a single mutex, satisfying the
// concurrency model in spec.md §5 — FeedByte and Tick may be called from
// different goroutines (a receive callback and a periodic ticker) without
// ever interleaving a frame's parse-dispatch-encode with another frame or
// with a tick's state transition.
type Controller struct {
	mu sync.Mutex

	params    *params.Store
	sensor    *sensor.Source
	lifecycle *lifecycle.Machine
	parser    *frame.Parser
	encoder   *frame.Encoder
	dispatch  *dispatch.Dispatcher
}

// New constructs a Controller in BOOT state, wired so that at INIT the
// lifecycle machine initializes the parameter store and sensor source and
// announces protocol readiness; the parser and encoder keep their state.
func New(clock Clock, sink ByteSink) *Controller {
	c := &Controller{
		params: params.New(),
		sensor: sensor.New(),
	}
	c.encoder = frame.NewEncoder(sink)

	c.dispatch = &dispatch.Dispatcher{
		Params:  c.params,
		Sensor:  c.sensor,
		Encoder: c.encoder,
	}
	c.dispatch.SetRxErrCounter(c.combinedRxErrCount)

	c.parser = frame.NewParser(c.dispatch.Handle)

	c.lifecycle = lifecycle.New(clock.NowMs(), lifecycle.Collaborators{
		InitParameters: c.params.Init,
		InitSensor:     c.sensor.Init,
		// Protocol init only (re)announces readiness; it must not reset
		// parser state or error counters — a reset trigger does not
		// reset the parser, per spec.md §5, and rx_err_cnt must stay
		// monotonically non-decreasing across the controller's lifetime.
		InitProtocol: func() { log.Printf("controller: protocol ready") },
	})
	c.dispatch.Lifecycle = c.lifecycle

	return c
}

// combinedRxErrCount folds the parser's frame-level counter and the
// dispatcher's protocol-level counter (unknown message type) into the
// single rx_err_cnt value STATUS_RSP reports, per spec.md §3's definition
// of rx_err_cnt as one counter incremented across §4's error taxonomy.
func (c *Controller) combinedRxErrCount() uint32 {
	return c.parser.RxErrCount + c.dispatch.RxErrCount
}

// FeedByte drives one received octet through the parser, and transitively
// through dispatch and frame encoding, under the controller's mutex.
func (c *Controller) FeedByte(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parser.FeedByte(b)
}

// Tick drives one lifecycle iteration for the given monotonic timestamp,
// under the controller's mutex, so it can run between two bytes of a frame
// but never inside one.
func (c *Controller) Tick(nowMs uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lifecycle.RunIteration(nowMs)
}

// TriggerReset forwards to the lifecycle machine under the controller's
// mutex.
func (c *Controller) TriggerReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lifecycle.TriggerReset()
}

// TriggerError forwards to the lifecycle machine under the controller's
// mutex.
func (c *Controller) TriggerError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lifecycle.TriggerError()
}

// Snapshot returns a read-only copy of the controller's current state for
// telemetry and diagnostics.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:          c.lifecycle.State(),
		UptimeMs:       c.lifecycle.UptimeMs(),
		ErrorFlags:     c.lifecycle.ErrorFlags(),
		RxErrCount:     c.combinedRxErrCount(),
		TxErrCount:     c.encoder.TxErrCount,
		SensorFault:    c.sensor.FaultActive(),
		SampleRate:     c.params.SampleRate(),
		StatusPeriodMs: c.params.StatusPeriodMs(),
		SensorEnable:   c.params.SensorEnable(),
	}
}

// InjectSensorFault is a testability-only hook forwarded to the sensor
// source, guarded by the same mutex as production traffic.
func (c *Controller) InjectSensorFault(mode sensor.FaultMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensor.InjectFault(mode)
}

