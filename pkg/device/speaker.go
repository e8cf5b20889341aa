package device

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/realtime-ai/recordkit/pkg/audio"
)

// Speaker plays bytes drained from a ring buffer on the default output device.
// The playback callback reads in drain mode and pads with silence, so an
// under-filled buffer produces a gap rather than a stall.
type Speaker struct {
	format audio.Format
	period audio.BufferLength

	mu      sync.Mutex
	context *malgo.AllocatedContext
	device  *malgo.Device
}

// NewSpeaker validates the format; the device is opened by Start.
func NewSpeaker(format audio.Format, period audio.BufferLength) (*Speaker, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, fmt.Errorf("invalid buffer length: %d", int(period))
	}
	return &Speaker{format: format, period: period}, nil
}

// Format returns the playback format.
func (s *Speaker) Format() audio.Format {
	return s.format
}

// Start opens the playback device and begins draining rb.
func (s *Speaker) Start(rb *audio.RingBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return ErrAlreadyStarted
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(s.format.Channels)
	cfg.SampleRate = uint32(s.format.SampleRate)
	cfg.PeriodSizeInFrames = uint32(s.period.Frames())
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) {
			n := rb.Read(output, true)
			clear(output[n:])
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	s.context = mctx
	s.device = dev
	log.Printf("[Speaker] playback started: %s", s.format)
	return nil
}

// Stop stops playback and releases the device.
func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return ErrNotStarted
	}

	var stopErr error
	if err := s.device.Stop(); err != nil {
		stopErr = fmt.Errorf("failed to stop playback device: %w", err)
	}
	s.device.Uninit()
	s.device = nil

	if s.context != nil {
		if err := s.context.Uninit(); err != nil && stopErr == nil {
			stopErr = fmt.Errorf("failed to uninitialize audio context: %w", err)
		}
		s.context.Free()
		s.context = nil
	}

	log.Printf("[Speaker] playback stopped")
	return stopErr
}
