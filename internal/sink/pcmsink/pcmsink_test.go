package pcmsink

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWrite_EncodesS16LESamples(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	if err := s.Write([]float32{0, 1, -1, 0.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if buf.Len() != 8 {
		t.Fatalf("expected 8 bytes for 4 samples, got %d", buf.Len())
	}
	got := make([]int16, 4)
	for i := range got {
		got[i] = int16(binary.LittleEndian.Uint16(buf.Bytes()[2*i:]))
	}
	if got[0] != 0 {
		t.Fatalf("expected silence sample to encode to 0, got %d", got[0])
	}
	if got[1] != 32767 {
		t.Fatalf("expected full-scale positive sample, got %d", got[1])
	}
	if got[2] != -32767 {
		t.Fatalf("expected full-scale negative sample, got %d", got[2])
	}
}

func TestWrite_ClampsOutOfRangeSamples(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	if err := s.Write([]float32{2.5, -3.0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Close()

	v0 := int16(binary.LittleEndian.Uint16(buf.Bytes()[0:]))
	v1 := int16(binary.LittleEndian.Uint16(buf.Bytes()[2:]))
	if v0 != 32767 {
		t.Fatalf("expected clamp to +full-scale, got %d", v0)
	}
	if v1 != -32767 {
		t.Fatalf("expected clamp to -full-scale, got %d", v1)
	}
}

func TestWrite_ReusesBufferAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	if err := s.Write([]float32{0, 0, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Write([]float32{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Close()

	if buf.Len() != 8 {
		t.Fatalf("expected 3+1 samples worth of bytes (8), got %d", buf.Len())
	}
}
