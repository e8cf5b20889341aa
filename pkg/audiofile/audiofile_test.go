package audiofile

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

var (
	mono   = audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16}
	stereo = audio.Format{SampleRate: 16000, Channels: 2, BitDepth: 16}
)

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clip.wav")
	c := &Clip{Format: stereo, Data: []int{1, -1, 1000, -1000, 32767, -32768}}
	require.NoError(t, c.Write(path))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, stereo, got.Format)
	assert.Equal(t, c.Data, got.Data)
	assert.Equal(t, 3, got.Frames())
}

func TestReadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file"), 0o644))

	_, err := Read(path)
	assert.Error(t, err)
	_, err = Read(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestSilent(t *testing.T) {
	c, err := Silent(stereo, 16000)
	require.NoError(t, err)
	assert.Len(t, c.Data, 32000)
	assert.Equal(t, time.Second, c.Duration())
	assert.True(t, math.IsInf(c.MaxLevel(), -1))

	empty, err := Silent(mono, 0)
	require.NoError(t, err)
	assert.Empty(t, empty.Data)

	_, err = Silent(mono, -1)
	assert.Error(t, err)
	_, err = Silent(audio.Format{}, 10)
	assert.Error(t, err)
}

func TestPeak(t *testing.T) {
	c := &Clip{Format: stereo, Data: []int{10, 20, -300, 5, 300, 0, 1, 2}}

	frame, amp := c.Peak()
	assert.Equal(t, 1, frame, "first frame reaching the peak wins")
	assert.Equal(t, 300, amp)
	assert.Equal(t, c.Format.Duration(4), c.PeakTime())

	frame, _ = (&Clip{Format: mono}).Peak()
	assert.Equal(t, -1, frame)
	assert.Zero(t, (&Clip{Format: mono}).PeakTime())
}

func TestNormalized(t *testing.T) {
	c := &Clip{Format: mono, Data: []int{1000, -16384, 8192}}
	assert.InDelta(t, -6.02, c.MaxLevel(), 0.01)

	t.Run("to full scale", func(t *testing.T) {
		out, err := c.Normalized(0)
		require.NoError(t, err)
		assert.Equal(t, []int{2000, -32768, 16384}, out.Data)
		assert.Equal(t, []int{1000, -16384, 8192}, c.Data, "source is untouched")
	})

	t.Run("attenuate", func(t *testing.T) {
		out, err := c.Normalized(-12.04)
		require.NoError(t, err)
		assert.InDelta(t, -12.04, out.MaxLevel(), 0.05)
	})

	t.Run("boost clips", func(t *testing.T) {
		out, err := (&Clip{Format: mono, Data: []int{-100, 100}}).Normalized(6)
		require.NoError(t, err)
		assert.Equal(t, []int{-32768, 32767}, out.Data)
	})

	t.Run("silent", func(t *testing.T) {
		silent, err := Silent(mono, 4)
		require.NoError(t, err)
		_, err = silent.Normalized(0)
		assert.ErrorIs(t, err, ErrSilent)
	})

	t.Run("empty", func(t *testing.T) {
		out, err := (&Clip{Format: mono}).Normalized(0)
		require.NoError(t, err)
		assert.Empty(t, out.Data)
	})
}

func TestReversed(t *testing.T) {
	c := &Clip{Format: stereo, Data: []int{1, 2, 3, 4, 5, 6}}
	assert.Equal(t, []int{5, 6, 3, 4, 1, 2}, c.Reversed().Data)
	assert.Empty(t, (&Clip{Format: mono}).Reversed().Data)
}

func TestAppended(t *testing.T) {
	a := &Clip{Format: mono, Data: []int{1, 2}}
	b := &Clip{Format: mono, Data: []int{3}}

	out, err := a.Appended(b)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out.Data)
	assert.Equal(t, []int{1, 2}, a.Data)

	_, err = a.Appended(&Clip{Format: stereo, Data: []int{1, 2}})
	assert.ErrorIs(t, err, ErrFormatMismatch)
}

func TestExtracted(t *testing.T) {
	c := &Clip{Format: stereo, Data: []int{0, 0, 1, 1, 2, 2, 3, 3}}

	tests := []struct {
		name     string
		from, to int
		want     []int
		wantErr  bool
	}{
		{name: "middle", from: 1, to: 3, want: []int{1, 1, 2, 2}},
		{name: "to end", from: 2, to: 0, want: []int{2, 2, 3, 3}},
		{name: "clamped", from: 3, to: 100, want: []int{3, 3}},
		{name: "empty range", from: 2, to: 2, wantErr: true},
		{name: "past end", from: 4, to: 0, wantErr: true},
		{name: "negative", from: -1, to: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.Extracted(tt.from, tt.to)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Data)
		})
	}
}
