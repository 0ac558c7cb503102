package crc

import "testing"

func TestCCITTEmpty(t *testing.T) {
	if got := CCITT(Init, nil); got != 0xFFFF {
		t.Fatalf("CCITT(empty) = 0x%04X, want 0xFFFF", got)
	}
}

func TestCCITTSingleByte(t *testing.T) {
	if got := CCITT(Init, []byte{0x01}); got != 0xF1D1 {
		t.Fatalf("CCITT([0x01]) = 0x%04X, want 0xF1D1", got)
	}
}

func TestCCITTIncremental(t *testing.T) {
	data := []byte{0x01, 0x01, 0x00, 0x00}
	whole := CCITT(Init, data)
	split := CCITT(CCITT(Init, data[:2]), data[2:])
	if whole != split {
		t.Fatalf("incremental CRC mismatch: whole=0x%04X split=0x%04X", whole, split)
	}
}

func TestCCITTGetStatusHeader(t *testing.T) {
	// AA 55 01 01 00 00 header CRC per spec.md boundary scenario 2.
	if got := CCITT(Init, []byte{0x01, 0x01, 0x00, 0x00}); got != 0x4FEA {
		t.Fatalf("CCITT(GET_STATUS header) = 0x%04X, want 0x4FEA", got)
	}
}
