package opussink

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestNew_RejectsUnsupportedChannelCount(t *testing.T) {
	var buf bytes.Buffer
	if _, err := New(&buf, 48000, 3); err == nil {
		t.Fatal("expected error for 3-channel audio")
	}
}

func TestWrite_FlushesCompleteFramesAsLengthPrefixedRecords(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(&buf, 48000, 1)
	if err != nil {
		t.Fatalf("unexpected error building sink: %v", err)
	}

	samples := make([]float32, s.samplesPerFrame*2+10)
	for i := range samples {
		samples[i] = 0.01 * float32(i%7)
	}
	if err := s.Write(samples); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	if buf.Len() == 0 {
		t.Fatal("expected at least one frame to be flushed")
	}
	header := buf.Bytes()[:4]
	frameLen := binary.LittleEndian.Uint32(header)
	if frameLen == 0 || int(frameLen) > buf.Len()-4 {
		t.Fatalf("frame length header %d inconsistent with buffer size %d", frameLen, buf.Len())
	}
	if s.inPos != 0 {
		t.Fatalf("expected compact() to reset inPos, got %d", s.inPos)
	}
}

func TestClose_PadsAndFlushesPartialFrame(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(&buf, 48000, 2)
	if err != nil {
		t.Fatalf("unexpected error building sink: %v", err)
	}

	if err := s.Write([]float32{0.1, 0.1, 0.2, 0.2}); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("expected no frame flushed before a full frame accumulates")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected Close to flush the padded partial frame")
	}
}
