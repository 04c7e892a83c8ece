package tuner

import (
	"math"
	"testing"
)

func TestFineTuner_ZeroShiftIsIdentity(t *testing.T) {
	ft := New(1024, 0)
	in := []complex64{1 + 2i, -3 + 0.5i, 0.1 - 0.1i}
	out := ft.Process(in, nil)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("index %d: expected identity %v, got %v", i, in[i], out[i])
		}
	}
}

func TestFineTuner_PreservesMagnitude(t *testing.T) {
	ft := New(64, 5)
	in := make([]complex64, 64)
	for i := range in {
		in[i] = complex(float32(math.Cos(float64(i))), float32(math.Sin(float64(i))))
	}
	out := ft.Process(in, nil)
	for i := range in {
		want := math.Hypot(float64(real(in[i])), float64(imag(in[i])))
		got := math.Hypot(float64(real(out[i])), float64(imag(out[i])))
		if math.Abs(want-got) > 1e-5 {
			t.Fatalf("index %d: magnitude changed: want %v got %v", i, want, got)
		}
	}
}

func TestFineTuner_IndexAdvancesAcrossBlocks(t *testing.T) {
	ft := New(4, 1)
	in := []complex64{1, 1, 1}
	ft.Process(in, nil)
	if ft.index != 3 {
		t.Fatalf("expected index 3 after 3 samples into a table of 4, got %d", ft.index)
	}
	ft.Process(in, nil)
	if ft.index != 2 {
		t.Fatalf("expected index to wrap to 2, got %d", ft.index)
	}
}
