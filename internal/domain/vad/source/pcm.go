package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"voice-assistant-go/internal/domain/vad/inter"
)

// PCMSource reads signed 16-bit little-endian mono samples from a file
// or FIFO, typically an ALSA loopback pipe fed by the capture daemon.
type PCMSource struct {
	reader       io.ReadCloser
	frameSamples int
	buf          []byte
}

// Open opens path for frame-at-a-time PCM reads.
func Open(path string, sampleRate, frameDurationMs int) (*PCMSource, error) {
	if sampleRate <= 0 || frameDurationMs <= 0 {
		return nil, fmt.Errorf("invalid pcm source parameters: rate=%d frame=%dms", sampleRate, frameDurationMs)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio device %s: %w", path, err)
	}
	return NewFromReader(file, sampleRate, frameDurationMs), nil
}

// NewFromReader wraps an arbitrary PCM byte stream.
func NewFromReader(r io.ReadCloser, sampleRate, frameDurationMs int) *PCMSource {
	frameSamples := sampleRate * frameDurationMs / 1000
	return &PCMSource{
		reader:       r,
		frameSamples: frameSamples,
		buf:          make([]byte, frameSamples*2),
	}
}

// Read blocks until one full frame is available. A short final read
// yields io.ErrUnexpectedEOF, which callers treat as end of stream.
func (s *PCMSource) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := io.ReadFull(s.reader, s.buf)
		ch <- result{n, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
	}

	frame := make([]int16, s.frameSamples)
	for i := range frame {
		frame[i] = int16(binary.LittleEndian.Uint16(s.buf[i*2:]))
	}
	return frame, nil
}

// Close releases the underlying stream.
func (s *PCMSource) Close() error {
	return s.reader.Close()
}

// Factory returns a SourceFactory opening path on every detector start.
func Factory(path string, sampleRate, frameDurationMs int) inter.SourceFactory {
	return func() (inter.AudioSource, error) {
		return Open(path, sampleRate, frameDurationMs)
	}
}
