package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	f := DefaultFormat()
	require.NoError(t, f.Validate())
	assert.Equal(t, 2, f.BytesPerFrame())

	stereo := Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
	assert.Equal(t, 4, stereo.BytesPerFrame())
	// 20ms at 48kHz stereo = 960 frames * 4 bytes
	assert.Equal(t, 3840, stereo.BytesFor(20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, stereo.Duration(3840))

	assert.Error(t, Format{SampleRate: 0, Channels: 1, BitDepth: 16}.Validate())
	assert.Error(t, Format{SampleRate: 16000, Channels: 0, BitDepth: 16}.Validate())
	assert.Error(t, Format{SampleRate: 16000, Channels: 1, BitDepth: 32}.Validate())
}

func TestBufferLength(t *testing.T) {
	assert.Equal(t, 32, BufferShortest.Frames())
	assert.Equal(t, 1024, BufferVeryLong.Frames())
	assert.Equal(t, 4096, BufferLongest.Frames())
	assert.Equal(t, 2048, BufferVeryLong.Bytes(DefaultFormat()))
	assert.Equal(t, 64*time.Millisecond, BufferVeryLong.Duration(16000))

	bl, err := ParseBufferLength("veryLong")
	require.NoError(t, err)
	assert.Equal(t, BufferVeryLong, bl)
	assert.Equal(t, "verylong", bl.String())

	_, err = ParseBufferLength("enormous")
	assert.Error(t, err)

	assert.True(t, BufferMedium.Valid())
	assert.False(t, BufferLength(4).Valid())
	assert.False(t, BufferLength(13).Valid())
}
