package device

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/realtime-ai/recordkit/pkg/audio"
)

var _ Source = (*Microphone)(nil)

// Microphone captures from the default input device through miniaudio.
type Microphone struct {
	format audio.Format
	period audio.BufferLength

	mu      sync.Mutex
	context *malgo.AllocatedContext
	device  *malgo.Device
}

// NewMicrophone validates the format; the device is opened by Start.
func NewMicrophone(format audio.Format, period audio.BufferLength) (*Microphone, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, fmt.Errorf("invalid buffer length: %d", int(period))
	}
	return &Microphone{format: format, period: period}, nil
}

// Start opens the capture device and hands every period to w.
// The context only bounds device initialisation; call Stop to end capture.
func (m *Microphone) Start(ctx context.Context, w Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(m.format.Channels)
	cfg.SampleRate = uint32(m.format.SampleRate)
	cfg.PeriodSizeInFrames = uint32(m.period.Frames())
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		// realtime thread: no logging, no allocation
		Data: func(_, input []byte, _ uint32) {
			w.Write(input)
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.context = mctx
	m.device = dev
	log.Printf("[Microphone] capture started: %s, period %d frames", m.format, m.period.Frames())
	return nil
}

// Stop stops capture and releases the device. The microphone can be started again.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotStarted
	}

	var stopErr error
	if err := m.device.Stop(); err != nil {
		stopErr = fmt.Errorf("failed to stop capture device: %w", err)
	}
	m.device.Uninit()
	m.device = nil

	if m.context != nil {
		if err := m.context.Uninit(); err != nil && stopErr == nil {
			stopErr = fmt.Errorf("failed to uninitialize audio context: %w", err)
		}
		m.context.Free()
		m.context = nil
	}

	log.Printf("[Microphone] capture stopped")
	return stopErr
}
