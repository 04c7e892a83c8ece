// Package hackrfsource drives a HackRF One as a live IQ front end,
// converting its signed 8-bit interleaved IQ stream into IQBlocks.
package hackrfsource

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samuel/go-hackrf/hackrf"

	"github.com/oss-sdr/fmreceiver/internal/config"
	"github.com/oss-sdr/fmreceiver/internal/dsp/queue"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

const (
	defaultSampleRate = 2000000
	defaultLNAGain    = 39
	cs8Peak           = 128.0
	stopPollInterval  = 50 * time.Millisecond
)

// HackRFSource streams IQ blocks from a HackRF One via libhackrf's
// asynchronous RX callback.
type HackRFSource struct {
	device *hackrf.Device

	centerFreq int
	sampleRate uint32
	lnaGain    int

	mu      sync.Mutex
	lastErr error
}

// New builds a HackRF source; the device itself is opened in Start.
func New() *HackRFSource {
	return &HackRFSource{sampleRate: defaultSampleRate, lnaGain: defaultLNAGain}
}

// Configure applies key=value parameters: frequency (Hz), sample_rate
// (Hz), lna_gain (dB, 0-40 in 8dB steps per libhackrf).
func (h *HackRFSource) Configure(kv string) error {
	params, err := config.ParseParams(kv)
	if err != nil {
		return fmt.Errorf("hackrfsource: %w", err)
	}
	freq, err := config.ParamInt(params, "frequency", h.centerFreq)
	if err != nil {
		return fmt.Errorf("hackrfsource: %w", err)
	}
	h.centerFreq = freq

	rate, err := config.ParamInt(params, "sample_rate", int(h.sampleRate))
	if err != nil {
		return fmt.Errorf("hackrfsource: %w", err)
	}
	h.sampleRate = uint32(rate)

	gain, err := config.ParamInt(params, "lna_gain", h.lnaGain)
	if err != nil {
		return fmt.Errorf("hackrfsource: %w", err)
	}
	h.lnaGain = gain
	return nil
}

func (h *HackRFSource) SampleRate() uint32 { return h.sampleRate }
func (h *HackRFSource) Frequency() uint32  { return uint32(h.centerFreq) }

// ConfiguredFrequency returns the frequency requested via Configure.
func (h *HackRFSource) ConfiguredFrequency() float64 { return float64(h.centerFreq) }

func (h *HackRFSource) setErr(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
}

// Err returns the last error observed on the RX callback path, or nil.
func (h *HackRFSource) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Start opens the device, tunes it, and runs the asynchronous RX
// stream until stop is set, polling the flag every stopPollInterval.
func (h *HackRFSource) Start(q *queue.Queue[types.IQBlock], stop *atomic.Bool) error {
	defer q.PushEnd()

	device, err := hackrf.Open()
	if err != nil {
		err = fmt.Errorf("hackrfsource: opening device: %w", err)
		h.setErr(err)
		return err
	}
	h.device = device
	defer device.Close()

	if err := device.SetFreq(uint64(h.centerFreq)); err != nil {
		err = fmt.Errorf("hackrfsource: set frequency: %w", err)
		h.setErr(err)
		return err
	}
	if err := device.SetSampleRateManual(int(h.sampleRate)*2, 2); err != nil {
		err = fmt.Errorf("hackrfsource: set sample rate: %w", err)
		h.setErr(err)
		return err
	}
	if err := device.SetLNAGain(h.lnaGain); err != nil {
		err = fmt.Errorf("hackrfsource: set LNA gain: %w", err)
		h.setErr(err)
		return err
	}
	if err := device.SetBasebandFilterBandwidth(int(h.sampleRate)); err != nil {
		err = fmt.Errorf("hackrfsource: set baseband filter bandwidth: %w", err)
		h.setErr(err)
		return err
	}
	if err := device.SetAmpEnable(true); err != nil {
		err = fmt.Errorf("hackrfsource: enable amp: %w", err)
		h.setErr(err)
		return err
	}

	callback := func(buf []byte) error {
		q.Push(cs8ToComplex64(buf))
		return nil
	}

	if err := device.StartRX(callback); err != nil {
		err = fmt.Errorf("hackrfsource: starting RX: %w", err)
		h.setErr(err)
		return err
	}

	for !stop.Load() {
		time.Sleep(stopPollInterval)
	}
	return device.StopRX()
}

// Stop stops the device's RX stream if Start has opened the device.
// Start itself returns once the shared stop flag is set, within one
// stopPollInterval.
func (h *HackRFSource) Stop() error {
	if h.device == nil {
		return nil
	}
	return h.device.StopRX()
}

func cs8ToComplex64(buf []byte) types.IQBlock {
	block := make(types.IQBlock, len(buf)/2)
	for i := range block {
		iVal := float32(int8(buf[2*i])) / cs8Peak
		qVal := float32(int8(buf[2*i+1])) / cs8Peak
		block[i] = complex(iVal, qVal)
	}
	return block
}
