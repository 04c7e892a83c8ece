// Package pipeline drives the demodulation stage of the three-thread
// pipeline (C13): pulls IQ blocks from the input queue, runs them
// through an FmDecoder, and pushes the resulting audio onto the output
// queue.
package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/oss-sdr/fmreceiver/internal/dsp/queue"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

// Decoder is the subset of fmradio.FmDecoder the driver depends on.
type Decoder interface {
	Process(in types.IQBlock) (types.SampleBlock, types.BlockMetrics)
}

// MetricsSink receives per-block metrics as they are produced. Nil is
// a valid no-op sink.
type MetricsSink interface {
	Observe(types.BlockMetrics)
}

// backlogWarnSamplesFactor is the queued-sample multiple of fs_if that
// triggers a one-shot backlog warning (queued_samples > 10*fs_if).
const backlogWarnSamplesFactor = 10

// Driver runs the single-threaded pull/process/push loop described in
// spec.md §4.9: the first decoded block is discarded so FIR/IIR filters
// can reach steady state before audio is emitted.
type Driver struct {
	in                 *queue.Queue[types.IQBlock]
	out                *queue.Queue[types.SampleBlock]
	decoder            Decoder
	metrics            MetricsSink
	logger             zerolog.Logger
	backlogWarnSamples int
}

// New builds a pipeline driver wired between the given IQ input queue
// and PCM output queue. fsIF is the source's IF sample rate, used to
// size the backlog warning threshold.
func New(in *queue.Queue[types.IQBlock], out *queue.Queue[types.SampleBlock], decoder Decoder, metrics MetricsSink, logger zerolog.Logger, fsIF float64) *Driver {
	return &Driver{
		in:                 in,
		out:                out,
		decoder:            decoder,
		metrics:            metrics,
		logger:             logger,
		backlogWarnSamples: int(backlogWarnSamplesFactor * fsIF),
	}
}

// Run executes the pull/process/push loop until the input queue's end
// marker is reached or ctx is cancelled. It always pushes an end
// marker onto the output queue before returning.
func (d *Driver) Run(ctx context.Context) error {
	defer d.out.PushEnd()

	blockIndex := 0
	warned := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		block := d.in.Pull()
		if len(block) == 0 && d.in.EndReached() {
			return nil
		}

		audio, metrics := d.decoder.Process(block)
		if d.metrics != nil {
			d.metrics.Observe(metrics)
		}

		if blockIndex > 0 {
			d.out.Push(audio)
		}
		blockIndex++

		queued := d.in.QueuedSamples()
		if !warned && d.backlogWarnSamples > 0 && queued > d.backlogWarnSamples {
			d.logger.Warn().
				Int("queued_samples", queued).
				Int("threshold_samples", d.backlogWarnSamples).
				Msg("input queue backlog exceeds warning threshold")
			warned = true
		}
	}
}
