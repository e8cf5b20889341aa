// Package audio provides audio processing utilities.
//
// RingBuffer implements a fixed-capacity circular buffer for PCM bytes moving
// from a realtime producer (a capture callback) to a consumer that drains at
// its own pace.
//
// Main features:
//   - Fixed capacity, no allocation on Write or Read
//   - Overwrite on overflow: the newest Capacity() bytes are always kept
//   - Frame-sized reads: Read returns 0 until a full chunk is available,
//     unless drainRemaining is set
//
// Usage:
//
//	rb, _ := NewRingBuffer(8192)
//	rb.Write(captured)            // producer
//	n := rb.Read(chunk, false)    // consumer, 0 means "try again later"
//	n = rb.Read(chunk, true)      // flush at shutdown
package audio

import (
	"fmt"
	"sync"
)

// RingStats are lifetime counters of a RingBuffer. Reset does not clear them.
type RingStats struct {
	// Written is the number of bytes retained by Write.
	Written uint64
	// Dropped is the number of bytes lost to truncation of oversized writes
	// and to overwriting unread data.
	Dropped uint64
	// Read is the number of bytes returned by Read.
	Read uint64
	// Declined counts normal-mode reads that returned 0 because fewer than
	// len(dst) bytes were stored.
	Declined uint64
	// Overflows counts writes that filled the buffer past capacity.
	Overflows uint64
}

// RingBuffer is a fixed-capacity circular buffer of raw audio bytes.
type RingBuffer struct {
	data     []byte
	capacity int
	writePos int // next write offset
	readPos  int // next read offset
	size     int // unread bytes, 0..capacity

	stats RingStats
	mu    sync.Mutex
}

// NewRingBuffer creates a ring buffer holding at most capacity bytes.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid ring buffer capacity: %d", capacity)
	}
	return &RingBuffer{
		data:     make([]byte, capacity),
		capacity: capacity,
	}, nil
}

// NewRingBufferForDuration sizes a ring buffer to hold durationMs of audio in
// the given format.
func NewRingBufferForDuration(format Format, durationMs int) (*RingBuffer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	frames := format.SampleRate * durationMs / 1000
	return NewRingBuffer(frames * format.BytesPerFrame())
}

// Write copies p into the buffer and returns the number of bytes retained.
//
// If p is longer than the capacity only its last Capacity() bytes are kept.
// When the buffer overflows the oldest unread bytes are overwritten and the
// read position jumps to the write position, so the buffer holds the most
// recent Capacity() bytes. Write never blocks and never fails.
func (rb *RingBuffer) Write(p []byte) int {
	dataLen := len(p)
	if dataLen == 0 {
		return 0
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	if dataLen > rb.capacity {
		rb.stats.Dropped += uint64(dataLen - rb.capacity)
		p = p[dataLen-rb.capacity:]
		dataLen = rb.capacity
	}

	// right segment: writePos up to the end of storage
	right := copy(rb.data[rb.writePos:], p)
	// left segment: wrap to offset 0
	if right < dataLen {
		copy(rb.data, p[right:])
	}
	rb.writePos = (rb.writePos + dataLen) % rb.capacity

	rb.size += dataLen
	if rb.size > rb.capacity {
		rb.stats.Dropped += uint64(rb.size - rb.capacity)
		rb.stats.Overflows++
		rb.size = rb.capacity
		rb.readPos = rb.writePos
	}
	rb.stats.Written += uint64(dataLen)

	return dataLen
}

// Read copies buffered bytes into dst and returns how many were copied.
//
// With drainRemaining false Read is all-or-nothing: it returns 0 and leaves
// the buffer untouched unless at least len(dst) bytes are stored. With
// drainRemaining true it returns whatever is available, up to len(dst).
// Once the buffer is emptied both positions are reset to 0.
func (rb *RingBuffer) Read(dst []byte, drainRemaining bool) int {
	want := len(dst)
	if want == 0 {
		return 0
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size < want && !drainRemaining {
		rb.stats.Declined++
		return 0
	}
	if rb.size == 0 {
		return 0
	}

	// right run: readPos up to the end of storage, bounded by size
	run := rb.capacity - rb.readPos
	if run > rb.size {
		run = rb.size
	}
	if run > want {
		run = want
	}
	copy(dst[:run], rb.data[rb.readPos:rb.readPos+run])

	// left run: wrap to offset 0 for the remainder
	left := want - run
	if avail := rb.size - run; left > avail {
		left = avail
	}
	if left > 0 {
		copy(dst[run:run+left], rb.data[:left])
	}

	n := run + left
	rb.readPos = (rb.readPos + n) % rb.capacity
	rb.size -= n
	if rb.size <= 0 {
		rb.size = 0
		rb.readPos = 0
		rb.writePos = 0
	}
	rb.stats.Read += uint64(n)

	return n
}

// Reset forgets all buffered data. Storage is not zeroed.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.size = 0
	rb.readPos = 0
	rb.writePos = 0
}

// Len returns the number of unread bytes.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Free returns how many bytes can be written before unread data is overwritten.
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.capacity - rb.size
}

// Capacity returns the total capacity of the buffer.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// Stats returns a copy of the lifetime counters.
func (rb *RingBuffer) Stats() RingStats {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.stats
}

