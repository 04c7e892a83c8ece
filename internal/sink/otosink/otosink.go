// Package otosink plays decoded audio straight to the local speaker
// via Oto, for interactive monitoring without an external player.
package otosink

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/oss-sdr/fmreceiver/internal/sink/pcmsink"
)

// OtoSink feeds S16LE audio into an Oto player through an in-process
// pipe, mirroring go-audio-mini-project's reader/writer/player wiring.
type OtoSink struct {
	ctx    *oto.Context
	player oto.Player
	writer *io.PipeWriter
	pcm    *pcmsink.PCMSink

	mu      sync.Mutex
	lastErr error
}

// New opens an Oto playback context at sampleRate with the given
// channel count (1 or 2) and starts the player.
func New(sampleRate, channelCount int) (*OtoSink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("otosink: creating context: %w", err)
	}
	<-ready

	reader, writer := io.Pipe()
	player := ctx.NewPlayer(reader)
	player.Play()

	return &OtoSink{
		ctx:    ctx,
		player: player,
		writer: writer,
		pcm:    pcmsink.New(writer),
	}, nil
}

func (s *OtoSink) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Err returns the last error observed on the playback path, or nil.
func (s *OtoSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Write encodes samples to S16LE and pipes them to the player.
func (s *OtoSink) Write(samples []float32) error {
	if err := s.pcm.Write(samples); err != nil {
		s.setErr(err)
		return err
	}
	if err := s.pcm.Flush(); err != nil {
		s.setErr(err)
		return err
	}
	return nil
}

// Close stops the player and closes the pipe.
func (s *OtoSink) Close() error {
	s.player.Close()
	if err := s.writer.Close(); err != nil {
		s.setErr(err)
		return err
	}
	return nil
}
