package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMonotonicUnderNoFault(t *testing.T) {
	s := New()
	prev := s.Read()
	for i := 0; i < 1000; i++ {
		cur := s.Read()
		diff := int(cur) - int(prev)
		if !(diff == 1 || (prev == wrapThreshold-1 && cur == 0)) {
			t.Fatalf("non-monotonic step at i=%d: prev=%d cur=%d", i, prev, cur)
		}
		prev = cur
	}
}

func TestReadWrapsAtThreshold(t *testing.T) {
	s := New()
	s.value = wrapThreshold - 1
	require.EqualValues(t, 0, s.Read(), "Read() after wrap threshold should return 0")
}

func TestFaultNoResponseSentinel(t *testing.T) {
	s := New()
	s.InjectFault(FaultNoResponse)
	assert.EqualValues(t, 0xFFFF, s.Read())
}

func TestFaultOutOfRangeSentinel(t *testing.T) {
	s := New()
	s.InjectFault(FaultOutOfRange)
	assert.EqualValues(t, 0xFFFE, s.Read())
}

func TestFaultStuckHoldsValue(t *testing.T) {
	s := New()
	s.Read()
	s.Read()
	held := s.Read()
	s.InjectFault(FaultStuck)
	for i := 0; i < 5; i++ {
		assert.Equal(t, held, s.Read(), "Read() under FaultStuck should stay at %d", held)
	}
}

func TestInitClearsFaultAndValue(t *testing.T) {
	s := New()
	s.Read()
	s.InjectFault(FaultOutOfRange)
	s.Init()
	assert.Equal(t, FaultNone, s.FaultActive())
	assert.EqualValues(t, 1, s.Read(), "Read() right after Init should resume the counter at 1")
}
