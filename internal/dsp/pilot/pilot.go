// Package pilot implements the 19kHz stereo pilot PLL (C5): phase
// tracking, 38kHz subcarrier reference generation, lock-state
// detection, and PPS event emission.
package pilot

import (
	"math"

	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

// LockState is the PLL's coarse tracking state.
type LockState int

const (
	Unlocked LockState = iota
	Locking
	Locked
)

func (s LockState) String() string {
	switch s {
	case Locking:
		return "LOCKING"
	case Locked:
		return "LOCKED"
	default:
		return "UNLOCKED"
	}
}

// PLL tracks the 19kHz stereo pilot in an FM multiplex signal.
type PLL struct {
	fs         float64
	omega0     float64
	omegaTol   float64
	minSignal  float64
	lockDelaySamples int
	kp, ki     float64
	avgLen     int

	phi   float64
	omega float64

	magAvg      float64 // running estimate of pilot magnitude (EMA)
	magAlpha    float64
	inRangeRun  int

	state      LockState
	ppsIndex   uint64
	sampleIdx  uint64
	periodsPerPPS int // pilot cycles per second (round(f0))
	pilotPeriods  int // pilot cycles counted since the last PPS mark
	prevPhi    float64
	havePrev   bool
}

// New builds a pilot PLL for sample rate fs (Hz), nominal pilot
// frequency f0 (default 19000), loop bandwidth bwHz (default ~100),
// and minimum signal level minSignal (default 0.01).
func New(fs, f0, bwHz, minSignal float64) *PLL {
	omega0 := 2 * math.Pi * f0 / fs
	zeta := 1.0 / math.Sqrt2
	bwNorm := bwHz / fs
	wn := bwNorm * 2 * math.Pi / (zeta + 1/(4*zeta))
	kp := 2 * zeta * wn
	ki := wn * wn

	avgLen := int(math.Ceil(fs / f0))
	if avgLen < 1 {
		avgLen = 1
	}

	return &PLL{
		fs:               fs,
		omega0:           omega0,
		omegaTol:         0.01 * omega0,
		minSignal:        minSignal,
		lockDelaySamples: int(0.5 * fs),
		kp:               kp,
		ki:               ki,
		avgLen:           avgLen,
		omega:            omega0,
		magAlpha:         1.0 / float64(avgLen),
		state:            Unlocked,
		periodsPerPPS:    int(math.Round(f0)),
	}
}

// State returns the PLL's current lock state.
func (p *PLL) State() LockState { return p.state }

// PilotLevel returns the current mean-absolute pilot-magnitude
// estimate (an exponential moving average of |2x|, not a true RMS).
func (p *PLL) PilotLevel() float64 { return p.magAvg }

// TuningOffsetHz returns the frequency offset, in Hz, of the tracked
// pilot from its nominal 19kHz when locked.
func (p *PLL) TuningOffsetHz() float64 {
	return (p.omega - p.omega0) * p.fs / (2 * math.Pi)
}

// Process runs the PLL across one MPX block, returning the demodulated
// 38kHz subcarrier reference (2*cos(2*phi) per sample) and any PPS
// events detected within the block.
func (p *PLL) Process(mpx []float32) (ref38 []float32, ppsEvents []types.PPSEvent) {
	ref38 = make([]float32, len(mpx))

	for i, xf := range mpx {
		x := float64(xf)

		sinPhi, _ := math.Sin(p.phi), math.Cos(p.phi)
		e := x * (-sinPhi)

		p.omega += p.ki * e
		if p.omega > p.omega0+p.omegaTol {
			p.omega = p.omega0 + p.omegaTol
		} else if p.omega < p.omega0-p.omegaTol {
			p.omega = p.omega0 - p.omegaTol
		}

		prevPhi := p.phi
		p.phi += p.omega + p.kp*e
		p.phi = wrapPhase(p.phi)

		ref38[i] = float32(2 * math.Cos(2*p.phi))

		mag := math.Abs(x * 2)
		p.magAvg += p.magAlpha * (mag - p.magAvg)

		inRange := math.Abs(p.omega-p.omega0) <= p.omegaTol
		switch p.state {
		case Unlocked:
			if p.magAvg > p.minSignal {
				p.state = Locking
				p.inRangeRun = 0
			}
		case Locking:
			if p.magAvg < p.minSignal/2 {
				p.state = Unlocked
			} else if inRange {
				p.inRangeRun++
				if p.inRangeRun >= p.lockDelaySamples {
					p.state = Locked
				}
			} else {
				p.inRangeRun = 0
			}
		case Locked:
			if p.magAvg < p.minSignal/2 || !inRange {
				p.state = Unlocked
				p.inRangeRun = 0
			}
		}

		if p.havePrev && crossedZeroRising(prevPhi, p.phi) {
			p.pilotPeriods++
			if p.pilotPeriods >= p.periodsPerPPS {
				p.pilotPeriods = 0
				if p.state == Locked {
					frac := fractionalCrossing(prevPhi, p.phi)
					ppsEvents = append(ppsEvents, types.PPSEvent{
						PPSIndex:      p.ppsIndex,
						SampleIndex:   p.sampleIdx,
						BlockPosition: (float64(i) + frac) / float64(len(mpx)),
					})
					p.ppsIndex++
				}
			}
		}

		p.prevPhi = prevPhi
		p.havePrev = true
		p.sampleIdx++
	}

	return ref38, ppsEvents
}

func wrapPhase(phi float64) float64 {
	for phi > math.Pi {
		phi -= 2 * math.Pi
	}
	for phi <= -math.Pi {
		phi += 2 * math.Pi
	}
	return phi
}

// crossedZeroRising reports whether phase wrapped through zero with
// positive slope between prev and cur, accounting for the (-pi,pi] wrap.
func crossedZeroRising(prev, cur float64) bool {
	if prev <= 0 && cur > 0 && cur-prev < math.Pi {
		return true
	}
	return false
}

// fractionalCrossing linearly interpolates the zero-crossing position
// between the previous and current sample, as a fraction in [0,1).
func fractionalCrossing(prev, cur float64) float64 {
	if cur == prev {
		return 0
	}
	frac := -prev / (cur - prev)
	if frac < 0 {
		frac = 0
	} else if frac >= 1 {
		frac = 0.999999
	}
	return frac
}
