// Package tuner implements the fine-tuning complex mixer (C2): a pure
// phase rotation that shifts the IF by a fixed offset with no resampling.
package tuner

import "math"

// FineTuner multiplies each input sample by a precomputed unit-root
// table, advancing an integer phase index every call.
type FineTuner struct {
	table     []complex64
	tableSize int
	index     int
}

// New builds a FineTuner with tableSize precomputed unit roots, shifting
// the input down by freqShift cycles per tableSize samples (sample k is
// multiplied by exp(-j*2*pi*freqShift*k/tableSize); a negative freqShift
// shifts the input up).
func New(tableSize, freqShift int) *FineTuner {
	table := make([]complex64, tableSize)
	for k := 0; k < tableSize; k++ {
		angle := -2.0 * math.Pi * float64(freqShift) * float64(k) / float64(tableSize)
		s, c := math.Sincos(angle)
		table[k] = complex(float32(c), float32(s))
	}
	return &FineTuner{table: table, tableSize: tableSize}
}

// Process multiplies each input sample by the next table entry in
// sequence, writing len(in) outputs to out (which must have capacity
// for len(in) samples) and returning the populated slice.
func (f *FineTuner) Process(in []complex64, out []complex64) []complex64 {
	if cap(out) < len(in) {
		out = make([]complex64, len(in))
	}
	out = out[:len(in)]
	idx := f.index
	n := f.tableSize
	for i, s := range in {
		out[i] = s * f.table[idx]
		idx++
		if idx == n {
			idx = 0
		}
	}
	f.index = idx
	return out
}
