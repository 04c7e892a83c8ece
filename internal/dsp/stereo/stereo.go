// Package stereo implements FM stereo L/R matrix reconstruction (C6)
// from an MPX signal and a 38kHz subcarrier reference.
package stereo

import "github.com/oss-sdr/fmreceiver/internal/dsp/iir"

// Decoder reconstructs left/right audio from a composite MPX signal and
// the demodulated 38kHz subcarrier reference produced by the pilot PLL.
type Decoder struct {
	lpfSum  *iir.Filter // L+R
	lpfDiff *iir.Filter // L-R
	scale   float32
}

// New builds a stereo decoder with two internal 15kHz-class low-pass
// filters at the given audio sample rate and cutoff, and a subcarrier
// compensation multiplier (spec default 1.17).
func New(fs, cutoffHz float64, stereoScale float32) *Decoder {
	return &Decoder{
		lpfSum:  iir.New(fs, cutoffHz),
		lpfDiff: iir.New(fs, cutoffHz),
		scale:   stereoScale,
	}
}

// Process demodulates one block of MPX samples into interleaved stereo
// (or, when locked is false, dual-mono) audio: even indices left, odd
// indices right.
func (d *Decoder) Process(mpx []float32, ref38 []float32, locked bool) []float32 {
	n := len(mpx)
	sumIn := make([]float32, n)
	diffIn := make([]float32, n)
	for i := range mpx {
		sumIn[i] = mpx[i]
		diffIn[i] = 2 * mpx[i] * ref38[i] * d.scale
	}

	sum := d.lpfSum.Process(sumIn)
	diff := d.lpfDiff.Process(diffIn)

	out := make([]float32, 2*n)
	for i := 0; i < n; i++ {
		if !locked {
			out[2*i] = sum[i]
			out[2*i+1] = sum[i]
			continue
		}
		l := 0.5 * (sum[i] + diff[i])
		r := 0.5 * (sum[i] - diff[i])
		out[2*i] = l
		out[2*i+1] = r
	}
	return out
}
