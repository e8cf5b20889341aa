package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

var _ Sink = (*WAVSink)(nil)

// WAVSink writes 16-bit PCM to a WAV file.
type WAVSink struct {
	path   string
	format audio.Format

	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	buf     *goaudio.IntBuffer
	carry   byte
	carried bool
	written int64
	closed  bool
}

// NewWAVSink creates the file, and its directory if needed.
func NewWAVSink(path string, format audio.Format) (*WAVSink, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating directory for %s: %w", path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating file %s: %w", path, err)
	}

	return &WAVSink{
		path:   path,
		format: format,
		file:   f,
		enc:    wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{SampleRate: format.SampleRate, NumChannels: format.Channels},
			SourceBitDepth: format.BitDepth,
		},
	}, nil
}

func (s *WAVSink) Name() string { return "wav:" + s.path }

// Path returns the file being written.
func (s *WAVSink) Path() string { return s.path }

// BytesWritten returns the PCM bytes encoded so far. A pending odd byte is
// not counted until the sample it starts is complete.
func (s *WAVSink) BytesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Consume appends p to the file. A chunk ending mid-sample leaves its last
// byte pending until the next chunk.
func (s *WAVSink) Consume(_ context.Context, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if len(p) == 0 {
		return nil
	}

	data := s.buf.Data[:0]
	rest := p
	if s.carried {
		data = append(data, int(int16(uint16(s.carry)|uint16(rest[0])<<8)))
		rest = rest[1:]
		s.carried = false
	}
	data = audio.BytesToInts(data, rest)
	if len(rest)%2 == 1 {
		s.carry = rest[len(rest)-1]
		s.carried = true
	}
	s.buf.Data = data

	if len(data) > 0 {
		if err := s.enc.Write(s.buf); err != nil {
			return fmt.Errorf("error writing to %s: %w", s.path, err)
		}
	}
	s.written += int64(len(data) * 2)
	return nil
}

// Close writes the WAV header and closes the file. A pending odd byte is
// dropped.
func (s *WAVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	encErr := s.enc.Close()
	fileErr := s.file.Close()
	if encErr != nil {
		return fmt.Errorf("error closing WAV encoder for %s: %w", s.path, encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("error closing file %s: %w", s.path, fileErr)
	}
	return nil
}
