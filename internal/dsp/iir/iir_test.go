package iir

import (
	"math"
	"testing"
)

func sineInput(n int, fs, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / fs))
	}
	return out
}

func rms(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestFilter_PassesLowFrequencyNearUnity(t *testing.T) {
	const fs = 48000.0
	f := New(fs, 15000)
	in := sineInput(8000, fs, 500)
	out := f.Process(in)

	inTail := rms(in[4000:])
	outTail := rms(out[4000:])
	ratio := outTail / inTail
	if ratio < 0.9 || ratio > 1.05 {
		t.Fatalf("expected near-unity gain at 500Hz with 15kHz cutoff, got ratio %v", ratio)
	}
}

func TestFilter_AttenuatesAboveCutoff(t *testing.T) {
	const fs = 48000.0
	f := New(fs, 15000)
	in := sineInput(8000, fs, 20000)
	out := f.Process(in)

	inTail := rms(in[4000:])
	outTail := rms(out[4000:])
	ratio := outTail / inTail
	if ratio > 0.7 {
		t.Fatalf("expected significant attenuation at 20kHz with 15kHz cutoff, got ratio %v", ratio)
	}
}

func TestFilter_StateCarriesAcrossBlocks(t *testing.T) {
	const fs = 48000.0
	in := sineInput(2000, fs, 3000)

	whole := New(fs, 15000).Process(in)

	split := New(fs, 15000)
	part1 := split.Process(in[:700])
	part2 := split.Process(in[700:])
	spliced := append(append([]float32{}, part1...), part2...)

	for i := range whole {
		if math.Abs(float64(whole[i]-spliced[i])) > 1e-5 {
			t.Fatalf("index %d: whole=%v spliced=%v", i, whole[i], spliced[i])
		}
	}
}
