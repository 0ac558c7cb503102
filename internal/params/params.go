// Package params implements the module's fixed parameter schema: a small
// validated configuration store, mutated only through range-checked
// setters. A set that fails validation leaves the field unchanged.
package params

import "log"

// Parameter IDs, as carried in SET_PARAM/GET_PARAM/PARAM_RSP payloads.
const (
	IDSampleRate      = 0x01
	IDStatusPeriodMs  = 0x02
	IDSensorEnable    = 0x03
)

const (
	sampleRateDefault     = 100
	sampleRateMin         = 1
	sampleRateMax         = 1000
	statusPeriodMsDefault = 1000
	statusPeriodMsMin     = 100
	statusPeriodMsMax     = 5000
	sensorEnableDefault   = true
)

// Store holds one module instance's set of operational parameters. It has no
// persistence across restarts; Init always restores the documented
// defaults.
type Store struct {
	sampleRate     uint16
	statusPeriodMs uint16
	sensorEnable   bool
}

// New returns a Store initialized to defaults, equivalent to calling Init on
// a zero Store.
func New() *Store {
	s := &Store{}
	s.Init()
	return s
}

// Init resets all fields to their documented defaults.
func (s *Store) Init() {
	s.sampleRate = sampleRateDefault
	s.statusPeriodMs = statusPeriodMsDefault
	s.sensorEnable = sensorEnableDefault
	log.Printf("params: initialized to defaults (sample_rate=%d status_period_ms=%d sensor_enable=%t)",
		s.sampleRate, s.statusPeriodMs, s.sensorEnable)
}

// SampleRate returns the current sample_rate field, in Hz.
func (s *Store) SampleRate() uint16 { return s.sampleRate }

// SetSampleRate validates rate against 1..=1000 and, on success, writes it
// and returns true. On failure the field is left unchanged.
func (s *Store) SetSampleRate(rate uint16) bool {
	if rate < sampleRateMin || rate > sampleRateMax {
		log.Printf("params: rejected sample_rate=%d (valid range %d..=%d)", rate, sampleRateMin, sampleRateMax)
		return false
	}
	s.sampleRate = rate
	log.Printf("params: sample_rate = %d", rate)
	return true
}

// StatusPeriodMs returns the current status_period_ms field.
func (s *Store) StatusPeriodMs() uint16 { return s.statusPeriodMs }

// SetStatusPeriodMs validates period against 100..=5000 and, on success,
// writes it and returns true. On failure the field is left unchanged.
func (s *Store) SetStatusPeriodMs(period uint16) bool {
	if period < statusPeriodMsMin || period > statusPeriodMsMax {
		log.Printf("params: rejected status_period_ms=%d (valid range %d..=%d)", period, statusPeriodMsMin, statusPeriodMsMax)
		return false
	}
	s.statusPeriodMs = period
	log.Printf("params: status_period_ms = %d", period)
	return true
}

// SensorEnable returns the current sensor_enable field.
func (s *Store) SensorEnable() bool { return s.sensorEnable }

// SetSensorEnable always succeeds; sensor_enable has no invalid value.
func (s *Store) SetSensorEnable(enable bool) bool {
	s.sensorEnable = enable
	log.Printf("params: sensor_enable = %t", enable)
	return true
}
