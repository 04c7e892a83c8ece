// Package fmradio wires the DSP stages into the FM broadcast decoder
// (C10): fine tuning, channel filtering, FM discrimination, pilot
// tracking, stereo matrixing, de-emphasis, and final decimation to PCM.
package fmradio

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/oss-sdr/fmreceiver/internal/dsp/deemph"
	"github.com/oss-sdr/fmreceiver/internal/dsp/discriminator"
	"github.com/oss-sdr/fmreceiver/internal/dsp/downsample"
	"github.com/oss-sdr/fmreceiver/internal/dsp/firiq"
	"github.com/oss-sdr/fmreceiver/internal/dsp/pilot"
	"github.com/oss-sdr/fmreceiver/internal/dsp/stats"
	"github.com/oss-sdr/fmreceiver/internal/dsp/stereo"
	"github.com/oss-sdr/fmreceiver/internal/dsp/tuner"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

// defaultExcessBW widens the IF filter's cutoff beyond the nominal
// half-bandwidth to give the pilot and RDS subcarriers transition-band
// headroom (SoftFM: 215kHz over twice the 100kHz nominal half-bandwidth
// is 1.075, a 0.075 excess fraction). Used when Params.ExcessBWFraction
// is left at its zero value.
const defaultExcessBW = 0.075

// Params configures an FmDecoder instance. Fields mirror spec.md §4.8's
// FmDecoder construction parameters.
type Params struct {
	FsIF             float64 // IF sample rate, Hz
	TuningOffsetHz   float64 // Delta-f applied by the fine tuner, Hz
	FsPCM            float64 // output PCM sample rate, Hz
	StereoEnabled    bool
	TauDeemph        float64 // de-emphasis time constant, seconds
	BandwidthIFHz    float64 // IF half-bandwidth, Hz
	FreqDevHz        float64 // peak deviation, Hz
	BandwidthPCMHz   float64 // audio low-pass cutoff, Hz
	DecimationIF     int     // D_if
	FreqScale        float64 // discriminator gain multiplier
	ExcessBWFraction float64 // channel filter transition-band headroom, 0 selects defaultExcessBW
	StereoScale      float32 // subcarrier compensation multiplier
	EnableHistogram  bool
	PreciseAtan2     bool
}

// FmDecoder demodulates a stream of IQ blocks into a stream of PCM
// audio blocks, exclusively owning every inner DSP stage.
type FmDecoder struct {
	params    Params
	fsIFDecim float64 // fs_if / D_if

	tune  *tuner.FineTuner
	chan_ *firiq.Filter
	disc  *discriminator.Discriminator
	pll   *pilot.PLL
	ster  *stereo.Decoder

	deemphMono *deemph.Filter
	deemphL    *deemph.Filter
	deemphR    *deemph.Filter

	downMono *downsample.Downsampler
	downL    *downsample.Downsampler
	downR    *downsample.Downsampler

	hist *stats.Histogram

	logger    zerolog.Logger
	lastState pilot.LockState
}

// Option configures optional FmDecoder behavior at construction time.
type Option func(*FmDecoder)

// WithLogger attaches a structured logger used to report pilot
// lock-state transitions.
func WithLogger(logger zerolog.Logger) Option {
	return func(fd *FmDecoder) { fd.logger = logger }
}

// New builds an FmDecoder for the given parameters, validating that
// fs_if/D_if is an integer multiple of fs_pcm.
func New(p Params, opts ...Option) (*FmDecoder, error) {
	if p.DecimationIF <= 0 {
		return nil, fmt.Errorf("fmradio: decimation factor must be positive, got %d", p.DecimationIF)
	}
	fsIFDecim := p.FsIF / float64(p.DecimationIF)

	ratio := fsIFDecim / p.FsPCM
	if math.Abs(ratio-math.Round(ratio)) > 1e-6 {
		return nil, fmt.Errorf("fmradio: fs_if/D_if=%v is not an integer multiple of fs_pcm=%v", fsIFDecim, p.FsPCM)
	}
	dPCM := int(math.Round(ratio))

	tableSize := int(p.FsIF)
	if tableSize <= 0 {
		tableSize = 1 << 20
	}
	freqShift := int(math.Round(-p.TuningOffsetHz / p.FsIF * float64(tableSize)))
	tune := tuner.New(tableSize, freqShift)

	excessBW := p.ExcessBWFraction
	if excessBW == 0 {
		excessBW = defaultExcessBW
	}
	fc := p.BandwidthIFHz * (1 + excessBW) / p.FsIF
	if fc <= 0 || fc >= 0.5 {
		return nil, fmt.Errorf("fmradio: invalid IF filter cutoff %v (must be in (0,0.5) normalized)", fc)
	}
	taps := firiq.DesignLowPass(fc)
	chanFilter := firiq.New(taps, p.DecimationIF)

	freqDevNorm := p.FreqDevHz / fsIFDecim * p.FreqScale
	disc := discriminator.New(freqDevNorm, p.PreciseAtan2)

	pll := pilot.New(fsIFDecim, 19000, 100, 0.01)

	bwPCM := p.BandwidthPCMHz
	if maxBW := 0.45 * fsIFDecim; bwPCM > maxBW {
		bwPCM = maxBW
	}
	ster := stereo.New(fsIFDecim, bwPCM, p.StereoScale)

	fd := &FmDecoder{
		params:    p,
		fsIFDecim: fsIFDecim,
		tune:      tune,
		chan_:     chanFilter,
		disc:      disc,
		pll:       pll,
		ster:      ster,
	}

	if p.StereoEnabled {
		fd.deemphL = deemph.New(fsIFDecim, p.TauDeemph)
		fd.deemphR = deemph.New(fsIFDecim, p.TauDeemph)
		fd.downL = downsample.New(dPCM)
		fd.downR = downsample.New(dPCM)
	} else {
		fd.deemphMono = deemph.New(fsIFDecim, p.TauDeemph)
		fd.downMono = downsample.New(dPCM)
	}

	if p.EnableHistogram {
		fd.hist = stats.NewHistogram()
	}

	fd.lastState = pilot.Unlocked
	fd.logger = zerolog.Nop()
	for _, opt := range opts {
		opt(fd)
	}

	return fd, nil
}

// Process demodulates one block of IQ input into interleaved (stereo)
// or mono PCM output, updating and returning per-block metrics.
func (fd *FmDecoder) Process(in types.IQBlock) (types.SampleBlock, types.BlockMetrics) {
	var metrics types.BlockMetrics
	metrics.IFLevel = rmsComplex(in)

	tuned := fd.tune.Process(in, nil)
	baseband := fd.chan_.Process(tuned)
	demod := fd.disc.Process(baseband)
	metrics.BasebandLevel = rmsReal(demod)

	if fd.hist != nil {
		devScale := fd.params.FreqDevHz / 1000.0
		for _, v := range demod {
			fd.hist.Add(float64(v) * devScale)
		}
	}

	ref38, ppsEvents := fd.pll.Process(demod)
	metrics.PPSEvents = ppsEvents
	metrics.PilotLevel = fd.pll.PilotLevel()
	metrics.StereoDetected = fd.pll.State() == pilot.Locked
	metrics.TuningOffsetHz = fd.pll.TuningOffsetHz()

	if state := fd.pll.State(); state != fd.lastState {
		fd.logger.Info().
			Str("from", fd.lastState.String()).
			Str("to", state.String()).
			Float64("pilot_level", metrics.PilotLevel).
			Msg("pilot lock state changed")
		fd.lastState = state
	}

	var audio []float32
	if fd.params.StereoEnabled {
		stereoOut := fd.ster.Process(demod, ref38, metrics.StereoDetected)
		l := make([]float32, len(demod))
		r := make([]float32, len(demod))
		for i := range demod {
			l[i] = stereoOut[2*i]
			r[i] = stereoOut[2*i+1]
		}
		l = fd.deemphL.Process(l)
		r = fd.deemphR.Process(r)
		l = fd.downL.Process(l)
		r = fd.downR.Process(r)
		audio = interleave(l, r)
	} else {
		mono := fd.deemphMono.Process(demod)
		audio = fd.downMono.Process(mono)
	}

	return audio, metrics
}

// Histogram returns the decoder's optional deviation histogram, or nil
// if histogram collection was not enabled.
func (fd *FmDecoder) Histogram() *stats.Histogram { return fd.hist }

func interleave(l, r []float32) []float32 {
	n := len(l)
	if len(r) < n {
		n = len(r)
	}
	out := make([]float32, 2*n)
	for i := 0; i < n; i++ {
		out[2*i] = l[i]
		out[2*i+1] = r[i]
	}
	return out
}

func rmsComplex(in []complex64) float64 {
	if len(in) == 0 {
		return 0
	}
	var sum float64
	for _, v := range in {
		re, im := float64(real(v)), float64(imag(v))
		sum += re*re + im*im
	}
	return math.Sqrt(sum / float64(len(in)))
}

func rmsReal(in []float32) float64 {
	if len(in) == 0 {
		return 0
	}
	var sum float64
	for _, v := range in {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(in)))
}
