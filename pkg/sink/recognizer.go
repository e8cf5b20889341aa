package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/realtime-ai/recordkit/pkg/asr"
	"github.com/realtime-ai/recordkit/pkg/audio"
	"github.com/realtime-ai/recordkit/pkg/bus"
)

// RecognizerSink feeds captured audio to a streaming recognizer and publishes
// its results on a bus.
type RecognizerSink struct {
	name       string
	recognizer asr.StreamingRecognizer
	resampler  *audio.Resampler
	bus        bus.Bus
	sessionID  string

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	resultsMu sync.Mutex
	final     []*asr.RecognitionResult
}

var _ Sink = (*RecognizerSink)(nil)

// RecognizerConfig configures a RecognizerSink.
type RecognizerConfig struct {
	// Capture is the format of the chunks passed to Consume
	Capture audio.Format
	// Target is the format the recognizer expects
	Target asr.AudioConfig
	// Bus receives partial and final results; nil discards them
	Bus       bus.Bus
	SessionID string
}

// NewRecognizerSink wraps r. Audio is resampled when the capture format
// differs from the target.
func NewRecognizerSink(name string, r asr.StreamingRecognizer, cfg RecognizerConfig) (*RecognizerSink, error) {
	if r == nil {
		return nil, &asr.Error{Code: asr.ErrCodeInvalidConfig, Message: "recognizer is nil"}
	}
	if cfg.Bus == nil {
		cfg.Bus = bus.Nop{}
	}

	s := &RecognizerSink{
		name:       name,
		recognizer: r,
		bus:        cfg.Bus,
		sessionID:  cfg.SessionID,
	}

	target := cfg.Target.Format()
	if target != cfg.Capture {
		rs, err := audio.NewResampler(cfg.Capture, target)
		if err != nil {
			return nil, &asr.Error{Code: asr.ErrCodeInvalidAudio, Message: "failed to create resampler", Err: err}
		}
		s.resampler = rs
	}

	s.wg.Add(1)
	go s.relay()
	return s, nil
}

// NewRecognizerSinkFromProvider starts a streaming recognizer on p with the
// target format of cfg and wraps it.
func NewRecognizerSinkFromProvider(ctx context.Context, p asr.Provider, rc asr.RecognitionConfig, cfg RecognizerConfig) (*RecognizerSink, error) {
	if p == nil {
		return nil, &asr.Error{Code: asr.ErrCodeInvalidConfig, Message: "provider is nil"}
	}
	r, err := p.StreamingRecognize(ctx, cfg.Target, rc)
	if err != nil {
		return nil, &asr.Error{Code: asr.ErrCodeProviderError, Message: "failed to start recognizer on " + p.Name(), Err: err}
	}
	s, err := NewRecognizerSink(p.Name(), r, cfg)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return s, nil
}

func (s *RecognizerSink) Name() string { return "asr:" + s.name }

func (s *RecognizerSink) relay() {
	defer s.wg.Done()

	for result := range s.recognizer.Results() {
		if result == nil {
			continue
		}
		evtType := bus.EventPartialResult
		if result.IsFinal {
			evtType = bus.EventFinalResult
			s.resultsMu.Lock()
			s.final = append(s.final, result)
			s.resultsMu.Unlock()
		}
		s.bus.Publish(bus.Event{
			Type:      evtType,
			SessionID: s.sessionID,
			Payload:   result,
		})
	}
}

// Consume forwards p, resampled if needed.
func (s *RecognizerSink) Consume(ctx context.Context, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	data := p
	if s.resampler != nil {
		out, err := s.resampler.Resample(p)
		if err != nil {
			return &asr.Error{Code: asr.ErrCodeInvalidAudio, Message: "resample failed", Err: err}
		}
		data = out
	}
	if len(data) == 0 {
		return nil
	}

	if err := s.recognizer.SendAudio(ctx, data); err != nil {
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	return nil
}

// Results returns the final results received so far.
func (s *RecognizerSink) Results() []*asr.RecognitionResult {
	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()
	return append([]*asr.RecognitionResult(nil), s.final...)
}

// Close sends what the resampler still holds, closes the recognizer and waits
// until its result channel is drained.
func (s *RecognizerSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if s.resampler != nil {
		tail, err := s.resampler.Flush()
		if err != nil {
			errs = append(errs, &asr.Error{Code: asr.ErrCodeInvalidAudio, Message: "resampler flush failed", Err: err})
		}
		if len(tail) > 0 {
			if err := s.recognizer.SendAudio(context.Background(), tail); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := s.recognizer.Close(); err != nil {
		errs = append(errs, err)
	}
	s.wg.Wait()

	if s.resampler != nil {
		s.resampler.Free()
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("[Recognizer] %s close failed: %v", s.name, err)
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	return nil
}
