// Package firiq implements the complex FIR anti-alias / channel-select
// filter with integer decimation (C3).
package firiq

import "math"

// DesignLowPass builds a Hamming-windowed-sinc low-pass filter with
// ceil(4/fc) taps (rounded up to odd), normalized to unit DC gain, for
// a normalized cutoff fc in (0, 0.5).
func DesignLowPass(fc float64) []float64 {
	n := int(math.Ceil(4.0 / fc))
	if n%2 == 0 {
		n++
	}
	taps := make([]float64, n)
	m := float64(n - 1)
	for i := 0; i < n; i++ {
		x := float64(i) - m/2
		if x == 0 {
			taps[i] = 2 * fc
		} else {
			taps[i] = math.Sin(2*math.Pi*fc*x) / (math.Pi * x)
		}
		taps[i] *= 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/m)
	}
	var sum float64
	for _, v := range taps {
		sum += v
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

// Filter is a linear-phase complex FIR filter with integer decimation D.
// State carries the last len(taps)-1 samples, plus any input the
// decimation phase has not yet reached, across calls so block
// boundaries are acoustically invisible.
type Filter struct {
	taps  []complex64
	d     int
	state []complex64
}

// New builds a decimating complex FIR filter from real-valued taps.
func New(taps []float64, d int) *Filter {
	ctaps := make([]complex64, len(taps))
	for i, v := range taps {
		ctaps[i] = complex(float32(v), 0)
	}
	return &Filter{
		taps:  ctaps,
		d:     d,
		state: make([]complex64, len(ctaps)-1),
	}
}

// Process emits one output per D inputs, each the dot product of the
// last len(taps) inputs (state-carried across calls) with the taps.
func (f *Filter) Process(in []complex64) []complex64 {
	buf := make([]complex64, len(f.state)+len(in))
	copy(buf, f.state)
	copy(buf[len(f.state):], in)

	n := len(f.taps)
	outLen := (len(buf) - n + 1) / f.d
	if outLen < 0 {
		outLen = 0
	}
	out := make([]complex64, outLen)

	for i := 0; i < outLen; i++ {
		start := i * f.d
		var acc complex64
		for j, tap := range f.taps {
			acc += buf[start+j] * tap
		}
		out[i] = acc
	}

	f.state = append([]complex64(nil), buf[outLen*f.d:]...)
	return out
}
