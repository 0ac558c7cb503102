// Package dispatch maps typed request frames to handlers that read or
// write the parameter store, sample the sensor, inspect lifecycle state,
// and produce response frames through the encoder.
package dispatch

import (
	"log"

	"github.com/librescoot/sensor-module/internal/frame"
	"github.com/librescoot/sensor-module/internal/lifecycle"
	"github.com/librescoot/sensor-module/internal/params"
	"github.com/librescoot/sensor-module/internal/sensor"
)

// Dispatcher wires a parameter store, a sensor source, a lifecycle machine,
// and a frame encoder together to answer requests per spec.md §4.6.
type Dispatcher struct {
	Params    *params.Store
	Sensor    *sensor.Source
	Lifecycle *lifecycle.Machine
	Encoder   *frame.Encoder

	// RxErrCount is incremented for unknown request types, mirroring the
	// parser's own counter for frame-level errors; the controller sums the
	// two into the single rx_err_cnt that STATUS_RSP reports.
	RxErrCount uint32

	// rxErrCounter, when set by the owning controller, supplies the value
	// STATUS_RSP reports for rx_err_cnt: the combined frame-level and
	// protocol-level error count, rather than RxErrCount alone.
	rxErrCounter func() uint32
}

// SetRxErrCounter installs the combined rx_err_cnt accessor the controller
// uses to fold the parser's frame-level counter into GET_STATUS replies.
func (d *Dispatcher) SetRxErrCounter(f func() uint32) {
	d.rxErrCounter = f
}

// Handle processes one dispatched frame, per spec.md §4.6.
func (d *Dispatcher) Handle(f frame.Frame) {
	switch f.Type {
	case frame.TypeGetStatus:
		d.handleGetStatus()
	case frame.TypeSetParam:
		d.handleSetParam(f.Payload)
	case frame.TypeGetParam:
		d.handleGetParam(f.Payload)
	case frame.TypeResetMod:
		d.Lifecycle.TriggerReset()
	default:
		d.RxErrCount++
		log.Printf("dispatch: unknown request type 0x%02X", f.Type)
	}
}

func (d *Dispatcher) handleGetStatus() {
	payload := make([]byte, 18)
	payload[0] = byte(d.Lifecycle.State())

	putU32(payload[1:5], d.Lifecycle.UptimeMs())
	putU32(payload[5:9], d.Lifecycle.ErrorFlags())
	putU32(payload[9:13], d.lastRxErrCount())
	putU32(payload[13:17], d.Encoder.TxErrCount)
	payload[17] = byte(d.Sensor.FaultActive())

	if err := d.Encoder.Emit(frame.TypeStatusRsp, payload); err != nil {
		log.Printf("dispatch: failed to emit STATUS_RSP: %v", err)
	}
}

// lastRxErrCount reports the combined rx error count visible to STATUS_RSP.
// The parser owns frame-level errors and the dispatcher owns protocol-level
// ones (unknown type); SetRxErrCounter lets the controller wire both into a
// single reported counter.
func (d *Dispatcher) lastRxErrCount() uint32 {
	if d.rxErrCounter != nil {
		return d.rxErrCounter()
	}
	return d.RxErrCount
}

func (d *Dispatcher) handleSetParam(payload []byte) {
	if len(payload) < 1 {
		d.replyError()
		return
	}
	id := payload[0]
	var ok bool
	switch {
	case id == params.IDSampleRate && len(payload) == 3:
		ok = d.Params.SetSampleRate(be16(payload[1:3]))
	case id == params.IDStatusPeriodMs && len(payload) == 3:
		ok = d.Params.SetStatusPeriodMs(be16(payload[1:3]))
	case id == params.IDSensorEnable && len(payload) == 2:
		ok = d.Params.SetSensorEnable(payload[1] != 0)
	default:
		ok = false
	}

	if ok {
		if err := d.Encoder.Emit(frame.TypeParamRsp, []byte{0x00}); err != nil {
			log.Printf("dispatch: failed to emit PARAM_RSP: %v", err)
		}
		return
	}
	d.replyError()
}

func (d *Dispatcher) replyError() {
	if err := d.Encoder.Emit(frame.TypeErrorRsp, []byte{0x01}); err != nil {
		log.Printf("dispatch: failed to emit ERROR_RSP: %v", err)
	}
}

// handleGetParam replies with PARAM_RSP(param_id, value) or, for an unknown
// param_id, sends nothing. spec.md §4.6/§9 leaves this choice open; see
// DESIGN.md for the rationale behind silent drop over ERROR_RSP.
func (d *Dispatcher) handleGetParam(payload []byte) {
	if len(payload) < 1 {
		return
	}
	id := payload[0]
	switch id {
	case params.IDSampleRate:
		rsp := []byte{id, 0, 0}
		putU16(rsp[1:3], d.Params.SampleRate())
		d.reply(frame.TypeParamRsp, rsp)
	case params.IDStatusPeriodMs:
		rsp := []byte{id, 0, 0}
		putU16(rsp[1:3], d.Params.StatusPeriodMs())
		d.reply(frame.TypeParamRsp, rsp)
	case params.IDSensorEnable:
		v := byte(0)
		if d.Params.SensorEnable() {
			v = 1
		}
		d.reply(frame.TypeParamRsp, []byte{id, v})
	default:
		log.Printf("dispatch: GET_PARAM for unknown param_id 0x%02X, dropping silently", id)
	}
}

func (d *Dispatcher) reply(typ uint8, payload []byte) {
	if err := d.Encoder.Emit(typ, payload); err != nil {
		log.Printf("dispatch: failed to emit reply 0x%02X: %v", typ, err)
	}
}

func putU16(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
}

func be16(src []byte) uint16 {
	return uint16(src[0])<<8 | uint16(src[1])
}

func putU32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}
