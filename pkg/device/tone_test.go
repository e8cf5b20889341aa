package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/realtime-ai/recordkit/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkRecorder struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (r *chunkRecorder) Write(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, append([]byte(nil), p...))
	return len(p)
}

func (r *chunkRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

func testToneConfig() ToneConfig {
	return ToneConfig{
		Format: audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16},
		Period: audio.BufferShortest, // 32 frames = 2ms
	}
}

func TestToneWritesWholePeriods(t *testing.T) {
	tone, err := NewTone(testToneConfig())
	require.NoError(t, err)

	rec := &chunkRecorder{}
	require.NoError(t, tone.Start(context.Background(), rec))
	assert.ErrorIs(t, tone.Start(context.Background(), rec), ErrAlreadyStarted)

	require.Eventually(t, func() bool { return rec.count() >= 3 }, 2*time.Second, time.Millisecond)
	require.NoError(t, tone.Stop())
	require.NoError(t, tone.Stop())

	n := rec.count()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, rec.count(), "no writes after Stop")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, chunk := range rec.chunks {
		assert.Len(t, chunk, 64)
	}
	nonZero := false
	for _, b := range rec.chunks[1] {
		if b != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}

func TestToneRenderIsContinuous(t *testing.T) {
	cfg := testToneConfig()
	cfg.Format.Channels = 2
	tone, err := NewTone(cfg)
	require.NoError(t, err)

	whole := make([]byte, 64*4)
	tone.Render(whole)

	again, err := NewTone(cfg)
	require.NoError(t, err)
	split := make([]byte, 0, len(whole))
	for i := 0; i < 4; i++ {
		part := make([]byte, 64)
		again.Render(part)
		split = append(split, part...)
	}
	assert.Equal(t, whole, split)

	// both channels carry the same sample
	for off := 0; off < len(whole); off += 4 {
		assert.Equal(t, whole[off:off+2], whole[off+2:off+4])
	}
}

func TestToneStopsWithContext(t *testing.T) {
	tone, err := NewTone(testToneConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &chunkRecorder{}
	require.NoError(t, tone.Start(ctx, rec))
	cancel()
	require.NoError(t, tone.Stop())
}

func TestNewToneValidation(t *testing.T) {
	cfg := testToneConfig()
	cfg.Amplitude = 2
	_, err := NewTone(cfg)
	assert.Error(t, err)

	cfg = testToneConfig()
	cfg.Period = audio.BufferLength(3)
	_, err = NewTone(cfg)
	assert.Error(t, err)

	cfg = testToneConfig()
	cfg.Format.SampleRate = 0
	_, err = NewTone(cfg)
	assert.Error(t, err)
}

func TestMicrophoneValidation(t *testing.T) {
	_, err := NewMicrophone(audio.Format{SampleRate: 44100, Channels: 1, BitDepth: 8}, audio.BufferVeryLong)
	assert.Error(t, err)

	mic, err := NewMicrophone(audio.DefaultFormat(), audio.BufferVeryLong)
	require.NoError(t, err)
	assert.ErrorIs(t, mic.Stop(), ErrNotStarted)
}
