// Package rtlsdrsource drives an RTL2832U-based dongle as a live IQ
// front end, converting its unsigned 8-bit offset-binary IQ stream
// into IQBlocks.
package rtlsdrsource

import (
	"fmt"
	"sync"
	"sync/atomic"

	gsdr "github.com/jpoirier/gortlsdr"

	"github.com/oss-sdr/fmreceiver/internal/config"
	"github.com/oss-sdr/fmreceiver/internal/dsp/queue"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

const (
	defaultSampleRate = 1200000
	cu8Midpoint       = 127.5
	readBufLen        = 16 * 16384
)

// RTLSDRSource streams IQ blocks from an RTL-SDR dongle via
// librtlsdr's asynchronous read callback.
type RTLSDRSource struct {
	deviceIdx  int
	device     *gsdr.Context
	centerFreq int
	sampleRate uint32

	wg sync.WaitGroup

	mu      sync.Mutex
	lastErr error
}

// New builds an RTL-SDR source for the given device index; the device
// itself is opened in Start.
func New(deviceIdx int) *RTLSDRSource {
	return &RTLSDRSource{deviceIdx: deviceIdx, sampleRate: defaultSampleRate}
}

// Configure applies key=value parameters: frequency (Hz), sample_rate
// (Hz), device_index.
func (r *RTLSDRSource) Configure(kv string) error {
	params, err := config.ParseParams(kv)
	if err != nil {
		return fmt.Errorf("rtlsdrsource: %w", err)
	}
	freq, err := config.ParamInt(params, "frequency", r.centerFreq)
	if err != nil {
		return fmt.Errorf("rtlsdrsource: %w", err)
	}
	r.centerFreq = freq

	rate, err := config.ParamInt(params, "sample_rate", int(r.sampleRate))
	if err != nil {
		return fmt.Errorf("rtlsdrsource: %w", err)
	}
	r.sampleRate = uint32(rate)

	idx, err := config.ParamInt(params, "device_index", r.deviceIdx)
	if err != nil {
		return fmt.Errorf("rtlsdrsource: %w", err)
	}
	r.deviceIdx = idx
	return nil
}

func (r *RTLSDRSource) SampleRate() uint32 { return r.sampleRate }
func (r *RTLSDRSource) Frequency() uint32  { return uint32(r.centerFreq) }

// ConfiguredFrequency returns the frequency requested via Configure.
func (r *RTLSDRSource) ConfiguredFrequency() float64 { return float64(r.centerFreq) }

func (r *RTLSDRSource) setErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// Err returns the last error observed on the read callback path, or nil.
func (r *RTLSDRSource) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Start opens the device, tunes it, and runs the asynchronous read
// loop until stop is set.
func (r *RTLSDRSource) Start(q *queue.Queue[types.IQBlock], stop *atomic.Bool) error {
	defer q.PushEnd()

	device, err := gsdr.Open(r.deviceIdx)
	if err != nil {
		err = fmt.Errorf("rtlsdrsource: opening device %d: %w", r.deviceIdx, err)
		r.setErr(err)
		return err
	}
	r.device = device

	if err := device.SetCenterFreq(r.centerFreq); err != nil {
		err = fmt.Errorf("rtlsdrsource: set center frequency: %w", err)
		r.setErr(err)
		device.Close()
		return err
	}
	if err := device.SetSampleRate(int(r.sampleRate)); err != nil {
		err = fmt.Errorf("rtlsdrsource: set sample rate: %w", err)
		r.setErr(err)
		device.Close()
		return err
	}
	if err := device.ResetBuffer(); err != nil {
		err = fmt.Errorf("rtlsdrsource: reset buffer: %w", err)
		r.setErr(err)
		device.Close()
		return err
	}

	callback := func(buf []byte) {
		if stop.Load() {
			return
		}
		q.Push(cu8ToComplex64(buf))
	}

	r.wg.Add(1)
	defer r.wg.Done()

	if err := device.ReadAsync(callback, nil, 0, readBufLen); err != nil {
		err = fmt.Errorf("rtlsdrsource: read loop: %w", err)
		r.setErr(err)
		return err
	}
	return nil
}

// Stop cancels the asynchronous read loop and waits for the in-flight
// callback, if any, to return before closing the device.
func (r *RTLSDRSource) Stop() error {
	if r.device == nil {
		return nil
	}
	err := r.device.CancelAsync()
	r.wg.Wait()
	if closeErr := r.device.Close(); err == nil {
		err = closeErr
	}
	return err
}

func cu8ToComplex64(buf []byte) types.IQBlock {
	block := make(types.IQBlock, len(buf)/2)
	for i := range block {
		iVal := (float32(buf[2*i]) - cu8Midpoint) / cu8Midpoint
		qVal := (float32(buf[2*i+1]) - cu8Midpoint) / cu8Midpoint
		block[i] = complex(iVal, qVal)
	}
	return block
}
