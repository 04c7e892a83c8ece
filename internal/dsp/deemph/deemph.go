// Package deemph implements FM de-emphasis (C8): a single-pole IIR
// low-pass that restores the pre-emphasized high-frequency rolloff
// applied at the transmitter.
package deemph

// Filter is a single-pole de-emphasis low-pass with time constant tau.
type Filter struct {
	alpha float32
	prev  float32
}

// New builds a de-emphasis filter for the given sample rate (Hz) and
// time constant tau in seconds (50e-6 for Europe, 75e-6 for the US).
func New(sampleRate float64, tau float64) *Filter {
	dt := 1.0 / sampleRate
	alpha := dt / (tau + dt)
	return &Filter{alpha: float32(alpha)}
}

// Process filters a block of samples, carrying the single past-output
// state sample across calls.
func (f *Filter) Process(in []float32) []float32 {
	out := make([]float32, len(in))
	prev := f.prev
	for i, x := range in {
		prev += f.alpha * (x - prev)
		out[i] = prev
	}
	f.prev = prev
	return out
}
