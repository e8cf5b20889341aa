// Package device provides the producers and the playback output that sit on
// either side of a ring buffer: a malgo microphone, a synthetic tone and a
// malgo speaker.
package device

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyStarted is returned by Start on a running device.
	ErrAlreadyStarted = errors.New("device already started")
	// ErrNotStarted is returned by Stop on a device that was never started.
	ErrNotStarted = errors.New("device not started")
)

// Writer accepts captured bytes. *audio.RingBuffer satisfies it.
//
// Write is called from the capture context, possibly a realtime thread; it
// must not block and must copy p before returning.
type Writer interface {
	Write(p []byte) int
}

// Source produces PCM into a Writer until stopped.
type Source interface {
	Start(ctx context.Context, w Writer) error
	Stop() error
}
