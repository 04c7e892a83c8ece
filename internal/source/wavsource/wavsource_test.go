package wavsource

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/oss-sdr/fmreceiver/internal/dsp/queue"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

func writeTestWAV(t *testing.T, path string, sampleRate int, frames int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test WAV file: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	data := make([]int, frames*2)
	for i := range data {
		data[i] = 100 * (i%5 - 2)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:   data,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write test WAV samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalize test WAV file: %v", err)
	}
}

func TestConfigure_OverridesPathAndFrequency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")
	writeTestWAV(t, path, 250000, 1024)

	w := New("default.wav")
	if err := w.Configure("path=" + path + ",frequency=99500000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.path != path {
		t.Fatalf("expected path override, got %q", w.path)
	}
	if w.Frequency() != 99500000 {
		t.Fatalf("expected frequency override, got %d", w.Frequency())
	}
	if w.SampleRate() != 250000 {
		t.Fatalf("expected sample rate populated eagerly from the header, got %d", w.SampleRate())
	}
}

func TestConfigure_MalformedParamsErrors(t *testing.T) {
	w := New("default.wav")
	if err := w.Configure("path"); err == nil {
		t.Fatal("expected error for malformed key=value string")
	}
}

func TestConfigure_EmptyPathSkipsEagerOpen(t *testing.T) {
	w := New("")
	if err := w.Configure("frequency=99500000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.SampleRate() != 0 {
		t.Fatalf("expected sample rate to remain 0 without a path, got %d", w.SampleRate())
	}
}

func TestStart_MissingFileReturnsError(t *testing.T) {
	w := New("/nonexistent/capture.wav")
	q := queue.New[types.IQBlock]()
	var stop atomic.Bool

	err := w.Start(q, &stop)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if w.Err() == nil {
		t.Fatal("expected Err() to report the same failure")
	}
	if !q.EndReached() {
		t.Fatal("expected end marker pushed even on open failure")
	}
}

func TestStart_StreamsSamplesFromAnAlreadyConfiguredSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")
	writeTestWAV(t, path, 48000, 8192)

	w := New(path)
	if err := w.Configure(""); err != nil {
		t.Fatalf("unexpected configure error: %v", err)
	}
	if w.SampleRate() != 48000 {
		t.Fatalf("expected sample rate 48000, got %d", w.SampleRate())
	}

	q := queue.New[types.IQBlock]()
	var stop atomic.Bool
	if err := w.Start(q, &stop); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	streamed := 0
	for {
		block := q.Pull()
		if len(block) == 0 {
			break
		}
		streamed += len(block)
	}
	if streamed != 8192 {
		t.Fatalf("expected 8192 IQ samples streamed, got %d", streamed)
	}
	if !q.EndReached() {
		t.Fatal("expected end marker pushed after the file is exhausted")
	}
}
