// Package sink declares the Sink contract that consumes decoded audio
// blocks off the pipeline's output queue, produced by exactly one
// goroutine per spec.md's three-thread concurrency model.
package sink

// Sink consumes interleaved audio sample blocks (mono, or stereo with
// even/odd interleaving) until the stream ends.
type Sink interface {
	// Write encodes and emits one audio block. Blocks arrive in
	// pipeline order; Write must not reorder or drop samples itself.
	Write(samples []float32) error

	// Close flushes any buffered output and releases underlying
	// resources (files, sockets, encoders).
	Close() error

	// Err returns the last error observed on the write path, or nil.
	Err() error
}
