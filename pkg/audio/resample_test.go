package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResamplerValidation(t *testing.T) {
	mono16k := Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

	_, err := NewResampler(Format{}, mono16k)
	assert.Error(t, err)

	_, err = NewResampler(mono16k, Format{SampleRate: 16000, Channels: 6, BitDepth: 16})
	assert.Error(t, err)
}

func TestResamplerEmptyChunk(t *testing.T) {
	r, err := NewResampler(
		Format{SampleRate: 48000, Channels: 2, BitDepth: 16},
		Format{SampleRate: 16000, Channels: 1, BitDepth: 16},
	)
	require.NoError(t, err)
	defer r.Free()

	out, err := r.Resample([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestResamplerFlushReturnsDelayedSamples(t *testing.T) {
	in := Format{SampleRate: 48000, Channels: 1, BitDepth: 16}
	out := Format{SampleRate: 16000, Channels: 1, BitDepth: 16}
	r, err := NewResampler(in, out)
	require.NoError(t, err)
	defer r.Free()

	// 50ms at 48kHz is 800 frames at 16kHz
	samples := make([]int, 2400)
	for i := range samples {
		samples[i] = (i % 100) * 100
	}
	converted, err := r.Resample(IntsToBytes(nil, samples))
	require.NoError(t, err)

	tail, err := r.Flush()
	require.NoError(t, err)

	total := len(converted) + len(tail)
	assert.InDelta(t, 1600, total, 16, "converted %d bytes, flushed %d", len(converted), len(tail))
}
