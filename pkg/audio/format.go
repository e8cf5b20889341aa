package audio

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSampleRate is the capture rate used when none is configured.
	DefaultSampleRate = 44100
	// DefaultChannels is mono.
	DefaultChannels = 1
	// BitDepth16 is the only supported sample width (signed little-endian).
	BitDepth16 = 16
)

// Format describes interleaved linear PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat returns 44.1kHz mono 16-bit PCM.
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   BitDepth16,
	}
}

// Validate reports whether the format can be captured and encoded.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.BitDepth != BitDepth16 {
		return fmt.Errorf("unsupported bit depth: %d", f.BitDepth)
	}
	return nil
}

// BytesPerSample returns the width of a single sample.
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// BytesPerFrame returns the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BytesPerSample()
}

// BytesFor returns the number of bytes needed for d of audio, rounded down to
// a whole frame.
func (f Format) BytesFor(d time.Duration) int {
	frames := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return frames * f.BytesPerFrame()
}

// Duration returns how long n bytes of audio last.
func (f Format) Duration(n int) time.Duration {
	bpf := f.BytesPerFrame()
	if bpf == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := int64(n / bpf)
	return time.Duration(frames * int64(time.Second) / int64(f.SampleRate))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/s%d", f.SampleRate, f.Channels, f.BitDepth)
}

// BufferLength is a capture period expressed as a power-of-two frame count.
type BufferLength int

const (
	BufferShortest  BufferLength = 5
	BufferVeryShort BufferLength = 6
	BufferShort     BufferLength = 7
	BufferMedium    BufferLength = 8
	BufferLong      BufferLength = 9
	BufferVeryLong  BufferLength = 10
	BufferHuge      BufferLength = 11
	BufferLongest   BufferLength = 12
)

var bufferLengthNames = map[string]BufferLength{
	"shortest":  BufferShortest,
	"veryshort": BufferVeryShort,
	"short":     BufferShort,
	"medium":    BufferMedium,
	"long":      BufferLong,
	"verylong":  BufferVeryLong,
	"huge":      BufferHuge,
	"longest":   BufferLongest,
}

// ParseBufferLength accepts a name such as "veryLong" (case-insensitive).
func ParseBufferLength(s string) (BufferLength, error) {
	bl, ok := bufferLengthNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown buffer length %q", s)
	}
	return bl, nil
}

// Valid reports whether bl is one of the defined lengths.
func (bl BufferLength) Valid() bool {
	return bl >= BufferShortest && bl <= BufferLongest
}

// Frames returns 2^bl.
func (bl BufferLength) Frames() int {
	return 1 << uint(bl)
}

// Duration returns the period length at the given sample rate.
func (bl BufferLength) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(bl.Frames()) * int64(time.Second) / int64(sampleRate))
}

// Bytes returns the size of one period in format f.
func (bl BufferLength) Bytes(f Format) int {
	return bl.Frames() * f.BytesPerFrame()
}

func (bl BufferLength) String() string {
	for name, v := range bufferLengthNames {
		if v == bl {
			return name
		}
	}
	return fmt.Sprintf("BufferLength(%d)", int(bl))
}
