package device

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

var _ Source = (*Tone)(nil)

// ToneConfig configures a synthetic sine source.
type ToneConfig struct {
	Format audio.Format
	Period audio.BufferLength
	// Frequency in Hz, 440 if zero
	Frequency float64
	// Amplitude in (0, 1], 0.5 if zero
	Amplitude float64
}

// Tone writes one period of a sine wave per period of wall clock time. It
// stands in for a microphone in tests and on machines without an input device.
type Tone struct {
	cfg ToneConfig
	buf []byte

	phase float64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTone creates a tone source.
func NewTone(cfg ToneConfig) (*Tone, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Period.Valid() {
		return nil, fmt.Errorf("invalid buffer length: %d", int(cfg.Period))
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = 440
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 0.5
	}
	if cfg.Amplitude < 0 || cfg.Amplitude > 1 {
		return nil, fmt.Errorf("amplitude out of range: %v", cfg.Amplitude)
	}
	return &Tone{
		cfg: cfg,
		buf: make([]byte, cfg.Period.Bytes(cfg.Format)),
	}, nil
}

// Start begins writing periods to w on a background goroutine.
func (t *Tone) Start(ctx context.Context, w Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.run(ctx, w)
	return nil
}

func (t *Tone) run(ctx context.Context, w Writer) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.Period.Duration(t.cfg.Format.SampleRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Render(t.buf)
			w.Write(t.buf)
		}
	}
}

// Render fills p with the next frames of the wave, continuing the phase of
// the previous call. Partial trailing frames are left untouched.
func (t *Tone) Render(p []byte) {
	f := t.cfg.Format
	bpf := f.BytesPerFrame()
	step := 2 * math.Pi * t.cfg.Frequency / float64(f.SampleRate)

	for off := 0; off+bpf <= len(p); off += bpf {
		v := uint16(int16(math.Sin(t.phase) * t.cfg.Amplitude * math.MaxInt16))
		for ch := 0; ch < f.Channels; ch++ {
			p[off+2*ch] = byte(v)
			p[off+2*ch+1] = byte(v >> 8)
		}
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
}

// Stop ends the tone and waits for the writer goroutine. Stopping twice is a no-op.
func (t *Tone) Stop() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	t.wg.Wait()
	return nil
}
