// Package sink holds the consumers an input stream drains its ring buffer into.
package sink

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Consume after Close.
var ErrClosed = errors.New("sink closed")

// Sink consumes drained PCM chunks. The chunk passed to Consume is only valid
// for the duration of the call.
type Sink interface {
	Name() string
	Consume(ctx context.Context, p []byte) error
	Close() error
}

// Memory collects every chunk it receives. It is meant for tests and for
// callers that post-process a short recording.
type Memory struct {
	mu     sync.Mutex
	data   []byte
	chunks int
	closed bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Consume(_ context.Context, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data = append(m.data, p...)
	m.chunks++
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Bytes returns a copy of everything consumed so far.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Chunks returns the number of Consume calls that succeeded.
func (m *Memory) Chunks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
