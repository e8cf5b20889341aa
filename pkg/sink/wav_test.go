package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

func TestWAVSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.wav")
	format := audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

	s, err := NewWAVSink(path, format)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	samples := []int{0, 1, -1, 1000, -1000, 32767, -32768, 42}
	pcm := audio.IntsToBytes(nil, samples)

	ctx := context.Background()
	// split mid-sample so the carried byte path is exercised
	require.NoError(t, s.Consume(ctx, pcm[:3]))
	assert.Equal(t, int64(2), s.BytesWritten(), "the pending byte is not counted yet")
	require.NoError(t, s.Consume(ctx, pcm[3:7]))
	require.NoError(t, s.Consume(ctx, pcm[7:]))
	assert.Equal(t, int64(len(pcm)), s.BytesWritten())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Consume(ctx, pcm), ErrClosed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, uint32(16000), dec.SampleRate)
	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)
	assert.Equal(t, samples, buf.Data)
}

func TestWAVSinkDropsPendingByteOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.wav")
	s, err := NewWAVSink(path, audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16})
	require.NoError(t, err)

	require.NoError(t, s.Consume(context.Background(), []byte{0x10, 0x00, 0x20}))
	require.NoError(t, s.Close())
	assert.Equal(t, int64(2), s.BytesWritten())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{16}, buf.Data)
}

func TestWAVSinkEmptyChunk(t *testing.T) {
	s, err := NewWAVSink(filepath.Join(t.TempDir(), "empty.wav"), audio.DefaultFormat())
	require.NoError(t, err)

	require.NoError(t, s.Consume(context.Background(), nil))
	assert.Zero(t, s.BytesWritten())
	require.NoError(t, s.Close())
}

func TestWAVSinkRejectsBadFormat(t *testing.T) {
	_, err := NewWAVSink(filepath.Join(t.TempDir(), "x.wav"), audio.Format{SampleRate: 8000, Channels: 1, BitDepth: 24})
	assert.Error(t, err)
}
