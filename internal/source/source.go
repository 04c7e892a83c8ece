// Package source declares the Source contract that feeds IQ blocks
// into the pipeline's input queue, produced by exactly one goroutine
// per spec.md's three-thread concurrency model.
package source

import (
	"sync/atomic"

	"github.com/oss-sdr/fmreceiver/internal/dsp/queue"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

// Source produces a stream of IQ blocks, pushing them onto q until
// stop is set or its own input is exhausted.
type Source interface {
	// Configure applies a key=value parameter string (see
	// internal/config.ParseParams) before Start is called.
	Configure(kv string) error

	// SampleRate returns the IF sample rate this source produces, in Hz.
	SampleRate() uint32

	// Frequency returns the tuned center frequency, in Hz.
	Frequency() uint32

	// ConfiguredFrequency returns the frequency requested via
	// Configure, before any hardware rounding Frequency() may reflect.
	ConfiguredFrequency() float64

	// Start runs until stop is set or the source's own input ends. It
	// always calls q.PushEnd() before returning, matching the
	// SampleQueue contract that end_marked is set exactly once.
	Start(q *queue.Queue[types.IQBlock], stop *atomic.Bool) error

	// Stop requests the source to end its Start loop as soon as
	// possible; it need not block until Start returns.
	Stop() error

	// Err returns the last error observed on the source's read path,
	// or nil.
	Err() error
}
