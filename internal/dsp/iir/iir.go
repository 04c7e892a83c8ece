// Package iir implements a 4th-order Butterworth low-pass filter (C7)
// as a cascade of two biquad sections.
package iir

import "math"

// biquad is a single second-order IIR section in direct form I.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2 = f.x1
	f.x1 = x
	f.y2 = f.y1
	f.y1 = y
	return y
}

// lowpassBiquad derives Audio EQ Cookbook coefficients for a 2nd-order
// low-pass section with quality factor q.
func lowpassBiquad(fs, cutoffHz, q float64) biquad {
	w0 := 2 * math.Pi * cutoffHz / fs
	sinW0, cosW0 := math.Sincos(w0)
	alpha := sinW0 / (2 * q)

	b1 := 1 - cosW0
	b0 := b1 / 2
	a0 := 1 + alpha

	return biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b0 / a0,
		a1: (-2 * cosW0) / a0,
		a2: (1 - alpha) / a0,
	}
}

// Filter is a 4th-order Butterworth low-pass filter built from two
// cascaded biquad sections, each carrying two past inputs and two past
// outputs of state across calls.
type Filter struct {
	s1, s2 biquad
}

// New builds a 4th-order Butterworth low-pass filter for sample rate fs
// and cutoff cutoffHz, valid for cutoffHz in (0, 0.45*fs).
func New(fs, cutoffHz float64) *Filter {
	// The two pole pairs of a 4th-order Butterworth response have
	// Q = 1/(2cos(pi/8)) and Q = 1/(2cos(3pi/8)).
	return &Filter{
		s1: lowpassBiquad(fs, cutoffHz, 1/(2*math.Cos(math.Pi/8))),
		s2: lowpassBiquad(fs, cutoffHz, 1/(2*math.Cos(3*math.Pi/8))),
	}
}

// Process filters a block of real samples in place semantics, returning
// a newly allocated output block; filter state carries across calls.
func (f *Filter) Process(in []float32) []float32 {
	out := make([]float32, len(in))
	for i, x := range in {
		y := f.s1.process(float64(x))
		y = f.s2.process(y)
		out[i] = float32(y)
	}
	return out
}
