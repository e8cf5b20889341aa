// Package asr defines the boundary between RecordKit and a speech-recognition
// backend. RecordKit streams captured PCM into a StreamingRecognizer and
// relays its results; the recognizer itself is supplied by the caller.
package asr

import (
	"context"
	"fmt"
	"time"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

// RecognitionResult represents the output of speech recognition.
type RecognitionResult struct {
	// Text is the recognized text
	Text string

	// IsFinal is false for partial (flushing) results
	IsFinal bool

	// Confidence score (0.0-1.0) if available, otherwise -1
	Confidence float32

	Language string

	// Duration of the audio segment that was recognized
	Duration time.Duration

	Timestamp time.Time

	// Metadata holds backend specific fields
	Metadata map[string]interface{}
}

// AudioConfig specifies the audio format a recognizer expects.
type AudioConfig struct {
	// SampleRate in Hz (e.g., 16000)
	SampleRate int

	// Channels (1 for mono)
	Channels int

	// Encoding is "pcm" for signed 16-bit little-endian
	Encoding string

	BitsPerSample int
}

// DefaultAudioConfig is 16kHz mono 16-bit PCM, the usual recognizer input.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    16000,
		Channels:      1,
		Encoding:      "pcm",
		BitsPerSample: 16,
	}
}

// Format returns the PCM format described by the config.
func (c AudioConfig) Format() audio.Format {
	return audio.Format{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		BitDepth:   c.BitsPerSample,
	}
}

// RecognitionConfig contains settings for speech recognition. It is passed
// through to Provider.StreamingRecognize untouched.
type RecognitionConfig struct {
	// Language code (e.g., "en-US", "zh-CN", "auto")
	Language string

	// Model is backend specific
	Model string

	EnablePartialResults bool

	// EnablePunctuation asks the backend to insert punctuation if supported
	EnablePunctuation bool

	// MaxDuration bounds a single recognition session
	MaxDuration time.Duration

	Extra map[string]interface{}
}

// StreamingRecognizer handles continuous speech recognition from an audio stream.
type StreamingRecognizer interface {
	// SendAudio sends audio data to the recognizer.
	// Audio must match the AudioConfig the recognizer was created with.
	SendAudio(ctx context.Context, audioData []byte) error

	// Results returns a channel that receives recognition results.
	// The channel is closed when the recognizer is closed.
	Results() <-chan *RecognitionResult

	// Close stops recognition and releases resources.
	Close() error
}

// Provider creates streaming recognizers. Embedders implement it for their
// backend and hand it to sink.NewRecognizerSinkFromProvider.
type Provider interface {
	// Name returns the provider name
	Name() string

	StreamingRecognize(ctx context.Context, audioConfig AudioConfig, config RecognitionConfig) (StreamingRecognizer, error)

	Close() error
}

// Error is returned by recognizers for classified failures.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInvalidConfig
	ErrCodeInvalidAudio
	ErrCodeUnsupportedLanguage
	ErrCodeNetworkError
	ErrCodeProviderError
	ErrCodeClosed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeInvalidConfig:
		return "invalid_config"
	case ErrCodeInvalidAudio:
		return "invalid_audio"
	case ErrCodeUnsupportedLanguage:
		return "unsupported_language"
	case ErrCodeNetworkError:
		return "network_error"
	case ErrCodeProviderError:
		return "provider_error"
	case ErrCodeClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}
