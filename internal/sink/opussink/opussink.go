// Package opussink Opus-encodes decoded audio and writes length-
// prefixed frames to an io.Writer, for bandwidth-constrained links
// where raw PCM is too large.
package opussink

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/hraban/opus"
)

const (
	frameDurationMs = 20
	maxEncodedBytes = 4000
)

// OpusSink buffers incoming samples into fixed-size Opus frames and
// writes each as a uint32-length-prefixed record.
type OpusSink struct {
	dest     io.Writer
	channels int
	encoder  *opus.Encoder

	samplesPerFrame int
	inBuf           []float32
	inPos           int
	encBuf          []byte

	mu      sync.Mutex
	lastErr error
}

// New builds an Opus sink encoding channels-interleaved audio at
// sampleRate, writing frames to dest as they fill.
func New(dest io.Writer, sampleRate, channels int) (*OpusSink, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("opussink: unsupported channel count %d", channels)
	}
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opussink: creating encoder: %w", err)
	}
	if err := enc.SetPacketLossPerc(10); err != nil {
		return nil, fmt.Errorf("opussink: setting packet loss target: %w", err)
	}
	enc.SetBitrateToAuto()

	samplesPerFrame := sampleRate * frameDurationMs / 1000 * channels
	return &OpusSink{
		dest:            dest,
		channels:        channels,
		encoder:         enc,
		samplesPerFrame: samplesPerFrame,
		inBuf:           make([]float32, 0, samplesPerFrame*4),
		encBuf:          make([]byte, maxEncodedBytes),
	}, nil
}

func (s *OpusSink) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Err returns the last error observed on the encode/write path, or nil.
func (s *OpusSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Write appends samples to the pending frame buffer, flushing every
// complete frame as it accumulates.
func (s *OpusSink) Write(samples []float32) error {
	s.inBuf = append(s.inBuf, samples...)
	for len(s.inBuf)-s.inPos >= s.samplesPerFrame {
		if err := s.flushFrame(s.samplesPerFrame); err != nil {
			s.setErr(err)
			return err
		}
	}
	s.compact()
	return nil
}

func (s *OpusSink) flushFrame(frameLen int) error {
	frame := s.inBuf[s.inPos : s.inPos+frameLen]
	n, err := s.encoder.EncodeFloat32(frame, s.encBuf)
	if err != nil {
		return fmt.Errorf("opussink: encoding frame: %w", err)
	}
	s.inPos += frameLen

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(n))
	if _, err := s.dest.Write(header[:]); err != nil {
		return fmt.Errorf("opussink: writing frame header: %w", err)
	}
	if _, err := s.dest.Write(s.encBuf[:n]); err != nil {
		return fmt.Errorf("opussink: writing frame payload: %w", err)
	}
	return nil
}

func (s *OpusSink) compact() {
	remaining := len(s.inBuf) - s.inPos
	copy(s.inBuf[:remaining], s.inBuf[s.inPos:])
	s.inBuf = s.inBuf[:remaining]
	s.inPos = 0
}

// Close encodes and flushes any partial frame shorter than a full
// frame duration, padding with silence to the channel count.
func (s *OpusSink) Close() error {
	if len(s.inBuf) == 0 {
		return nil
	}
	pad := s.samplesPerFrame - len(s.inBuf)
	if pad > 0 {
		s.inBuf = append(s.inBuf, make([]float32, pad)...)
	}
	if err := s.flushFrame(s.samplesPerFrame); err != nil {
		s.setErr(err)
		return err
	}
	s.compact()
	return nil
}
