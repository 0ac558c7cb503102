package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootToRunSequence(t *testing.T) {
	var initCalls []string
	collab := Collaborators{
		InitParameters: func() { initCalls = append(initCalls, "params") },
		InitSensor:     func() { initCalls = append(initCalls, "sensor") },
		InitProtocol:   func() { initCalls = append(initCalls, "protocol") },
	}
	m := New(0, collab)
	require.Equal(t, Boot, m.State())

	m.RunIteration(1)
	require.Equal(t, Init, m.State())

	m.RunIteration(2)
	require.Equal(t, Run, m.State())

	assert.Equal(t, []string{"params", "sensor", "protocol"}, initCalls)
}

func TestUptimeAccumulates(t *testing.T) {
	m := New(1000, Collaborators{})
	m.RunIteration(1010)
	m.RunIteration(1025)
	assert.EqualValues(t, 25, m.UptimeMs())
}

func TestTriggerErrorSetsFlagOnce(t *testing.T) {
	m := New(0, Collaborators{})
	m.TriggerError()
	require.Equal(t, Error, m.State())
	assert.NotZero(t, m.ErrorFlags()&ErrorFlagGeneric, "generic error flag not set")

	m.TriggerError() // idempotent, no re-trigger
	assert.Equal(t, Error, m.State())
}

func TestTriggerResetReachesRunWithinTwoTicks(t *testing.T) {
	m := New(0, Collaborators{})
	m.TriggerError()
	m.TriggerReset()
	require.Equal(t, Recovery, m.State())
	assert.NotZero(t, m.ErrorFlags()&ErrorFlagGeneric, "error flags should still be set until next tick clears them")

	m.RunIteration(1)
	require.Equal(t, Init, m.State())
	assert.Zero(t, m.ErrorFlags())

	m.RunIteration(2)
	assert.Equal(t, Run, m.State())
}

func TestCorruptStateTreatedAsError(t *testing.T) {
	m := New(0, Collaborators{})
	m.state = State(99)
	m.RunIteration(1)
	assert.Equal(t, Error, m.State())
}
