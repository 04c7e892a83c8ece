// Package discriminator implements the FM phase discriminator (C4): a
// successive-conjugate-product polar discriminator.
package discriminator

import (
	"math"

	"github.com/racerxdl/segdsp/dsp"
)

// Discriminator demodulates FM by taking the angle of each sample times
// the conjugate of the previous one, scaled by the normalized peak
// deviation. State is the single previous input sample.
type Discriminator struct {
	gain    float32 // 1 / (2*pi*freqDevNorm)
	precise bool
	prev    complex64
}

// New creates a discriminator for the given normalized peak deviation
// (freqDevNorm = freqDev/sampleRate). precise selects exact atan2 over
// the faster polynomial approximation.
func New(freqDevNorm float64, precise bool) *Discriminator {
	return &Discriminator{
		gain:    float32(1.0 / (2 * math.Pi * freqDevNorm)),
		precise: precise,
		prev:    1 + 0i,
	}
}

// Process demodulates a block of IQ samples, returning one output
// sample per input sample. Output is approximately in [-1,+1] for a
// signal at peak deviation.
func (d *Discriminator) Process(in []complex64) []float32 {
	if len(in) == 0 {
		return nil
	}
	samples := make([]complex64, 1+len(in))
	samples[0] = d.prev
	copy(samples[1:], in)

	products := dsp.MultiplyConjugate(samples[1:], samples, len(in))

	out := make([]float32, len(in))
	for i, p := range products {
		var angle float64
		re, im := float64(real(p)), float64(imag(p))
		if re == 0 && im == 0 {
			angle = 0
		} else if d.precise {
			angle = math.Atan2(im, re)
		} else {
			angle = fastAtan2(im, re)
		}
		out[i] = float32(angle) * d.gain
	}
	d.prev = samples[len(samples)-1]
	return out
}

// fastAtan2 is a minimax polynomial approximation of atan2, accurate to
// within ~0.01 rad, avoiding the transcendental atan2 call in the hot
// demodulation loop.
func fastAtan2(y, x float64) float64 {
	if x == 0 && y == 0 {
		return 0
	}
	ax, ay := math.Abs(x), math.Abs(y)
	var angle float64
	if ax >= ay {
		r := ay / ax
		angle = r * (0.97239411 - 0.19194795*r*r)
		if x < 0 {
			angle = math.Pi - angle
		}
	} else {
		r := ax / ay
		angle = math.Pi/2 - r*(0.97239411-0.19194795*r*r)
		if x < 0 {
			angle = math.Pi - angle
		}
	}
	if y < 0 {
		angle = -angle
	}
	return angle
}
