package stereo

import (
	"math"
	"testing"
)

func TestDecoder_MonoFallbackDuplicatesChannels(t *testing.T) {
	const fs = 192000.0
	d := New(fs, 15000, 1.17)

	mpx := make([]float32, 500)
	ref38 := make([]float32, 500)
	for i := range mpx {
		mpx[i] = float32(math.Sin(2 * math.Pi * 300 * float64(i) / fs))
	}

	out := d.Process(mpx, ref38, false)
	for i := 0; i < len(mpx); i++ {
		if out[2*i] != out[2*i+1] {
			t.Fatalf("index %d: expected mono fallback L==R, got L=%v R=%v", i, out[2*i], out[2*i+1])
		}
	}
}

func TestDecoder_LockedPathDrivesBothChannels(t *testing.T) {
	const fs = 192000.0
	d := New(fs, 15000, 1.0)

	n := 4000
	mpx := make([]float32, n)
	ref38 := make([]float32, n)
	for i := range mpx {
		phase := 2 * math.Pi * 1000 * float64(i) / fs
		lr := float32(math.Sin(phase)) // 1kHz tone; mpx carries it into both the L+R and L-R paths
		ref := float32(math.Cos(0))    // ref38 held near +2 to pass diff through cleanly
		ref38[i] = 2 * ref
		mpx[i] = lr * ref38[i] / 2
	}

	out := d.Process(mpx, ref38, true)

	var lEnergy, rEnergy float64
	for i := 2000; i < n; i++ {
		lEnergy += float64(out[2*i]) * float64(out[2*i])
		rEnergy += float64(out[2*i+1]) * float64(out[2*i+1])
	}
	if lEnergy < 1e-6 || rEnergy < 1e-6 {
		t.Fatalf("expected nonzero energy on both channels, got L=%v R=%v", lEnergy, rEnergy)
	}
}
