package frame

import (
	"errors"
	"testing"

	"github.com/librescoot/sensor-module/internal/crc"
)

type bufSink struct {
	bytes []byte
	fail  bool
}

func (s *bufSink) WriteByte(b byte) error {
	if s.fail {
		return errors.New("sink failure")
	}
	s.bytes = append(s.bytes, b)
	return nil
}

func encodeFrame(t *testing.T, typ uint8, payload []byte) []byte {
	t.Helper()
	l := uint16(len(payload))
	header := []byte{Preamble0, Preamble1, Version, typ, byte(l >> 8), byte(l)}
	c := crc.CCITT(crc.Init, header[2:])
	if l > 0 {
		c = crc.CCITT(c, payload)
	}
	out := append([]byte{}, header...)
	out = append(out, payload...)
	out = append(out, byte(c>>8), byte(c))
	return out
}

func TestParserDispatchesGetStatus(t *testing.T) {
	var got []Frame
	p := NewParser(func(f Frame) { got = append(got, f) })
	wire := encodeFrame(t, TypeGetStatus, nil)
	p.Feed(wire)
	if len(got) != 1 {
		t.Fatalf("dispatched %d frames, want 1", len(got))
	}
	if got[0].Type != TypeGetStatus || len(got[0].Payload) != 0 {
		t.Fatalf("got %+v", got[0])
	}
}

func TestParserChunkingIndependence(t *testing.T) {
	wire := encodeFrame(t, TypeSetParam, []byte{0x01, 0x01, 0xF4})

	var wholeFrames, oneByteFrames []Frame
	p1 := NewParser(func(f Frame) { wholeFrames = append(wholeFrames, f) })
	p1.Feed(wire)

	p2 := NewParser(func(f Frame) { oneByteFrames = append(oneByteFrames, f) })
	for _, b := range wire {
		p2.FeedByte(b)
	}

	if len(wholeFrames) != len(oneByteFrames) || len(wholeFrames) != 1 {
		t.Fatalf("chunking mismatch: whole=%d one-byte=%d", len(wholeFrames), len(oneByteFrames))
	}
}

func TestParserCRCMismatchNoDispatch(t *testing.T) {
	var got []Frame
	p := NewParser(func(f Frame) { got = append(got, f) })
	wire := []byte{0xAA, 0x55, 0x01, 0x03, 0x00, 0x03, 0x01, 0x01, 0xF4, 0xFF, 0xFF}
	p.Feed(wire)
	if len(got) != 0 {
		t.Fatalf("dispatched %d frames on bad CRC, want 0", len(got))
	}
	if p.RxErrCount != 1 {
		t.Fatalf("RxErrCount = %d, want 1", p.RxErrCount)
	}
}

func TestParserLengthOverflowResyncs(t *testing.T) {
	var got []Frame
	p := NewParser(func(f Frame) { got = append(got, f) })

	// AA 55 01 03 FF FF: length 0xFFFF > 64, resyncs to SYNC0.
	p.Feed([]byte{0xAA, 0x55, 0x01, 0x03, 0xFF, 0xFF})
	if p.RxErrCount != 1 {
		t.Fatalf("RxErrCount = %d, want 1", p.RxErrCount)
	}

	// A subsequent valid frame is dispatched normally.
	wire := encodeFrame(t, TypeGetStatus, nil)
	p.Feed(wire)
	if len(got) != 1 {
		t.Fatalf("dispatched %d frames after resync, want 1", len(got))
	}
}

func TestParserResyncsAfterBadCRCFrame(t *testing.T) {
	var got []Frame
	p := NewParser(func(f Frame) { got = append(got, f) })
	good := encodeFrame(t, TypeGetStatus, nil)
	// Feed a zero-length SET_PARAM frame with CRC 0x0000 (bad), then a good
	// frame; the parser drops the first and syncs on the second's preamble.
	p.Feed([]byte{0xAA, 0x55, 0x01, 0x03, 0x00, 0x00, 0x00, 0x00})
	p.Feed(good)
	if len(got) != 1 {
		t.Fatalf("dispatched %d frames, want 1", len(got))
	}
}

func TestParserRxErrCountMonotonic(t *testing.T) {
	p := NewParser(nil)
	before := p.RxErrCount
	p.Feed([]byte{0xAA, 0x55, 0x01, 0x03, 0xFF, 0xFF})
	p.Feed([]byte{0xAA, 0x55, 0x01, 0x03, 0xFF, 0xFF})
	if p.RxErrCount < before+2 {
		t.Fatalf("RxErrCount = %d, want >= %d", p.RxErrCount, before+2)
	}
}

func TestEncoderRoundTripsThroughParser(t *testing.T) {
	sink := &bufSink{}
	enc := NewEncoder(sink)
	payload := make([]byte, 18)
	payload[0] = 2
	if err := enc.Emit(TypeStatusRsp, payload); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(sink.bytes) != 2+4+18+2 {
		t.Fatalf("emitted %d bytes, want %d", len(sink.bytes), 26)
	}

	var got []Frame
	p := NewParser(func(f Frame) { got = append(got, f) })
	p.Feed(sink.bytes)
	if len(got) != 1 || got[0].Type != TypeStatusRsp || len(got[0].Payload) != 18 {
		t.Fatalf("round trip failed: %+v", got)
	}
}

func TestEncoderTxErrCountOnSinkFailure(t *testing.T) {
	sink := &bufSink{fail: true}
	enc := NewEncoder(sink)
	if err := enc.Emit(TypeGetStatus, nil); err == nil {
		t.Fatal("Emit() with failing sink returned nil error")
	}
	if enc.TxErrCount != 1 {
		t.Fatalf("TxErrCount = %d, want 1", enc.TxErrCount)
	}
}

func TestEncoderRejectsOversizedPayload(t *testing.T) {
	sink := &bufSink{}
	enc := NewEncoder(sink)
	if err := enc.Emit(TypeStatusRsp, make([]byte, MaxPayloadLen+1)); err == nil {
		t.Fatal("Emit() with oversized payload returned nil error")
	}
}
