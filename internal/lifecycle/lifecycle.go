// Package lifecycle implements the tick-driven finite-state controller
// (BOOT -> INIT -> RUN, with ERROR and RECOVERY branches) that sequences
// initialization of the module's collaborators and owns error/reset
// transitions.
package lifecycle

import "log"

// State is one of the five lifecycle states.
type State int

const (
	Boot State = iota
	Init
	Run
	Error
	Recovery
)

// String renders the state the way STATUS_RSP byte 0 encodes it (BOOT=0 ..
// RECOVERY=4) for log readability.
func (s State) String() string {
	switch s {
	case Boot:
		return "BOOT"
	case Init:
		return "INIT"
	case Run:
		return "RUN"
	case Error:
		return "ERROR"
	case Recovery:
		return "RECOVERY"
	default:
		return "CORRUPT"
	}
}

// ErrorFlagGeneric is bit 0 of error_flags: the generic-error flag set by
// TriggerError.
const ErrorFlagGeneric uint32 = 0x01

// Collaborators groups the init-time hooks the machine calls when it enters
// INIT, mirroring parameters_init/sensor_sim_init/uart_protocol_init in the
// reference firmware.
type Collaborators struct {
	InitParameters func()
	InitSensor     func()
	InitProtocol   func()
}

// Machine is the lifecycle state machine. Zero value is not usable; call
// New.
type Machine struct {
	state       State
	uptimeMs    uint32
	errorFlags  uint32
	lastTickMs  uint64
	initialized bool
	collab      Collaborators
}

// New returns a Machine in BOOT with zero uptime/error flags, seeded with
// the given initial tick timestamp.
func New(nowMs uint64, collab Collaborators) *Machine {
	return &Machine{
		state:      Boot,
		lastTickMs: nowMs,
		collab:     collab,
	}
}

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.state }

// UptimeMs returns accumulated monotonic uptime across ticks.
func (m *Machine) UptimeMs() uint32 { return m.uptimeMs }

// ErrorFlags returns the current error flag bitmask.
func (m *Machine) ErrorFlags() uint32 { return m.errorFlags }

// RunIteration advances uptime by the delta since the last call and then
// dispatches on the current state, exactly as described in spec.md §4.7.
func (m *Machine) RunIteration(nowMs uint64) {
	delta := nowMs - m.lastTickMs
	m.uptimeMs += uint32(delta)
	m.lastTickMs = nowMs

	switch m.state {
	case Boot:
		m.transitionTo(Init)

	case Init:
		if m.collab.InitParameters != nil {
			m.collab.InitParameters()
		}
		if m.collab.InitSensor != nil {
			m.collab.InitSensor()
		}
		if m.collab.InitProtocol != nil {
			m.collab.InitProtocol()
		}
		m.transitionTo(Run)

	case Run:
		// No synchronous work; sampling and response happen via the
		// parser and sensor reads driven from outside the tick.

	case Error:
		// Hold; wait for TriggerReset.

	case Recovery:
		m.errorFlags = 0
		m.transitionTo(Init)

	default:
		m.transitionTo(Error)
	}
}

// TriggerError forces ERROR state and sets the generic error flag, unless
// already in ERROR.
func (m *Machine) TriggerError() {
	if m.state != Error {
		log.Printf("lifecycle: %s -> ERROR (triggered)", m.state)
		m.state = Error
		m.errorFlags |= ErrorFlagGeneric
	}
}

// TriggerReset unconditionally moves the machine to RECOVERY; the next
// RunIteration clears error_flags and proceeds to INIT then RUN.
func (m *Machine) TriggerReset() {
	log.Printf("lifecycle: %s -> RECOVERY (reset)", m.state)
	m.state = Recovery
}

func (m *Machine) transitionTo(next State) {
	log.Printf("lifecycle: %s -> %s", m.state, next)
	m.state = next
}
