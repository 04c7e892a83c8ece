// Package wavsource reads a stereo WAV file, treating channel 0 as I
// and channel 1 as Q, as an offline stand-in for a live SDR front end.
package wavsource

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/oss-sdr/fmreceiver/internal/config"
	"github.com/oss-sdr/fmreceiver/internal/dsp/queue"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

const defaultChunkFrames = 4096

// WAVSource reads IQ samples from a 2-channel WAV file, 16-bit or
// 24-bit PCM, or float32 LE. Like SoftFM's WaveFileSource, it opens
// the file and validates its header eagerly (in Configure) so
// SampleRate is available to callers before Start begins streaming.
type WAVSource struct {
	path        string
	chunkFrames int

	file    *os.File
	decoder *wav.Decoder

	sampleRate uint32
	frequency  uint32
	configFreq float64

	mu      sync.Mutex
	lastErr error
}

// New builds a WAV source that will open path on Configure.
func New(path string) *WAVSource {
	return &WAVSource{path: path, chunkFrames: defaultChunkFrames}
}

// Configure applies key=value parameters (path overrides the
// constructor path, frequency is a Hz hint reported via Frequency())
// and, if a path is known, eagerly opens the file and reads its
// header so SampleRate is valid immediately.
func (w *WAVSource) Configure(kv string) error {
	params, err := config.ParseParams(kv)
	if err != nil {
		return fmt.Errorf("wavsource: %w", err)
	}
	if p, ok := params["path"]; ok {
		w.path = p
	}
	freq, err := config.ParamInt(params, "frequency", int(w.frequency))
	if err != nil {
		return fmt.Errorf("wavsource: %w", err)
	}
	w.frequency = uint32(freq)
	w.configFreq = float64(freq)

	if w.path == "" {
		return nil
	}
	return w.openHeader()
}

func (w *WAVSource) openHeader() error {
	f, err := os.Open(w.path)
	if err != nil {
		err = fmt.Errorf("wavsource: opening %s: %w", w.path, err)
		w.setErr(err)
		return err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		err := fmt.Errorf("wavsource: %s is not a valid WAV file", w.path)
		w.setErr(err)
		return err
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		err = fmt.Errorf("wavsource: seeking to PCM data: %w", err)
		w.setErr(err)
		return err
	}
	if dec.NumChans != 2 {
		f.Close()
		err := fmt.Errorf("wavsource: expected 2 channels (I/Q), got %d", dec.NumChans)
		w.setErr(err)
		return err
	}
	if dec.SampleRate == 0 {
		f.Close()
		err := fmt.Errorf("wavsource: WAV header reports sample rate 0")
		w.setErr(err)
		return err
	}

	w.file = f
	w.decoder = dec
	w.sampleRate = dec.SampleRate
	return nil
}

// SampleRate returns the WAV file's sample rate, valid once Configure
// has successfully opened a file.
func (w *WAVSource) SampleRate() uint32 { return w.sampleRate }

// Frequency returns the configured center frequency hint.
func (w *WAVSource) Frequency() uint32 { return w.frequency }

// ConfiguredFrequency returns the frequency requested via Configure.
func (w *WAVSource) ConfiguredFrequency() float64 { return w.configFreq }

func (w *WAVSource) setErr(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

// Err returns the last error encountered while reading, or nil.
func (w *WAVSource) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Start streams IQ blocks from the already-opened WAV file onto q
// until the file is exhausted or stop is set. If Configure has not
// yet opened a file, it opens one from the current path first.
func (w *WAVSource) Start(q *queue.Queue[types.IQBlock], stop *atomic.Bool) error {
	defer q.PushEnd()

	if w.decoder == nil {
		if err := w.openHeader(); err != nil {
			return err
		}
	}
	defer w.file.Close()
	dec := w.decoder

	buf := &audio.IntBuffer{
		Format: dec.Format(),
		Data:   make([]int, w.chunkFrames*2),
	}

	for {
		if stop.Load() {
			return nil
		}
		n, err := dec.PCMBuffer(buf)
		if err == io.EOF || n == 0 {
			return nil
		}
		if err != nil {
			err = fmt.Errorf("wavsource: reading PCM: %w", err)
			w.setErr(err)
			return err
		}

		frames := n / 2
		block := make(types.IQBlock, frames)
		peak := float64(int(1) << (dec.BitDepth - 1))
		for i := 0; i < frames; i++ {
			iVal := float32(float64(buf.Data[2*i]) / peak)
			qVal := float32(float64(buf.Data[2*i+1]) / peak)
			block[i] = complex(iVal, qVal)
		}
		q.Push(block)
	}
}

// Stop is a no-op: WAVSource checks the shared stop flag on every read
// iteration and unwinds on its own within one chunk's read latency.
func (w *WAVSource) Stop() error { return nil }
