// Package audiofile edits recorded 16-bit WAV files in memory: normalize,
// reverse, append, extract and peak search.
package audiofile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/realtime-ai/recordkit/pkg/audio"
)

const fullScale = 32768.0

var (
	// ErrSilent is returned when normalizing a clip whose samples are all zero.
	ErrSilent = errors.New("clip is silent")
	// ErrFormatMismatch is returned when appending clips of different formats.
	ErrFormatMismatch = errors.New("clip formats do not match")
)

// Clip is decoded PCM with interleaved samples.
type Clip struct {
	Format audio.Format
	Data   []int
}

// NewDecoder reads the WAV header from r and checks that it holds 16-bit PCM.
func NewDecoder(r io.ReadSeeker) (*wav.Decoder, audio.Format, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, audio.Format{}, errors.New("invalid WAV file format")
	}
	if dec.BitDepth != audio.BitDepth16 {
		return nil, audio.Format{}, fmt.Errorf("unsupported bit depth: %d", dec.BitDepth)
	}
	format := audio.Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	return dec, format, format.Validate()
}

// Read decodes a whole WAV file.
func Read(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file %s: %w", path, err)
	}
	defer f.Close()

	dec, format, err := NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	return &Clip{Format: format, Data: buf.Data}, nil
}

// Silent returns frames of silence in format.
func Silent(format audio.Format, frames int) (*Clip, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frames < 0 {
		return nil, fmt.Errorf("negative frame count: %d", frames)
	}
	return &Clip{Format: format, Data: make([]int, frames*format.Channels)}, nil
}

// Write encodes the clip to path, creating its directory if needed.
func (c *Clip) Write(path string) error {
	if err := c.Format.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating directory for %s: %w", path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating file %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, c.Format.SampleRate, c.Format.BitDepth, c.Format.Channels, 1)
	if len(c.Data) > 0 {
		buf := &goaudio.IntBuffer{
			Data:           c.Data,
			Format:         &goaudio.Format{SampleRate: c.Format.SampleRate, NumChannels: c.Format.Channels},
			SourceBitDepth: c.Format.BitDepth,
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("error writing to %s: %w", path, err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("error closing WAV encoder for %s: %w", path, err)
	}
	return nil
}

// Frames returns the number of sample frames.
func (c *Clip) Frames() int {
	if c.Format.Channels <= 0 {
		return 0
	}
	return len(c.Data) / c.Format.Channels
}

func (c *Clip) Duration() time.Duration {
	return c.Format.Duration(c.Frames() * c.Format.BytesPerFrame())
}

// Peak returns the frame holding the loudest sample in any channel. The
// first such frame wins; an empty clip yields -1.
func (c *Clip) Peak() (frame int, amplitude int) {
	frame = -1
	for i, s := range c.Data {
		if s < 0 {
			s = -s
		}
		if s > amplitude || frame < 0 {
			amplitude = s
			frame = i / c.Format.Channels
		}
	}
	return frame, amplitude
}

// PeakTime is the offset of the peak frame from the start of the clip.
func (c *Clip) PeakTime() time.Duration {
	frame, _ := c.Peak()
	if frame < 0 {
		return 0
	}
	return c.Format.Duration(frame * c.Format.BytesPerFrame())
}

// MaxLevel returns the peak in dBFS, or -Inf for a silent or empty clip.
func (c *Clip) MaxLevel() float64 {
	_, amp := c.Peak()
	if amp <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(amp)/fullScale)
}

// Normalized scales the clip so its peak sits at level dBFS. Samples pushed
// past full scale are clipped. An empty clip is returned as an empty copy.
func (c *Clip) Normalized(level float64) (*Clip, error) {
	out := &Clip{Format: c.Format, Data: make([]int, len(c.Data))}
	if len(c.Data) == 0 {
		return out, nil
	}

	current := c.MaxLevel()
	if math.IsInf(current, -1) {
		return nil, ErrSilent
	}

	gain := math.Pow(10, level/20) / math.Pow(10, current/20)
	for i, s := range c.Data {
		out.Data[i] = clip16(math.Round(float64(s) * gain))
	}
	return out, nil
}

// Reversed returns the clip played backwards. Channel order within each
// frame is kept.
func (c *Clip) Reversed() *Clip {
	ch := c.Format.Channels
	frames := c.Frames()
	out := &Clip{Format: c.Format, Data: make([]int, frames*ch)}
	for i := 0; i < frames; i++ {
		copy(out.Data[i*ch:(i+1)*ch], c.Data[(frames-1-i)*ch:(frames-i)*ch])
	}
	return out
}

// Appended returns c followed by other. Both clips must share a format.
func (c *Clip) Appended(other *Clip) (*Clip, error) {
	if c.Format != other.Format {
		return nil, fmt.Errorf("%w: %s and %s", ErrFormatMismatch, c.Format, other.Format)
	}
	data := make([]int, 0, len(c.Data)+len(other.Data))
	data = append(data, c.Data...)
	data = append(data, other.Data...)
	return &Clip{Format: c.Format, Data: data}, nil
}

// Extracted returns the frames in [from, to). A to of 0 means the end of the
// clip, and a to past the end is clamped.
func (c *Clip) Extracted(from, to int) (*Clip, error) {
	frames := c.Frames()
	if from < 0 {
		return nil, fmt.Errorf("negative start frame: %d", from)
	}
	if to == 0 || to > frames {
		to = frames
	}
	if to <= from {
		return nil, fmt.Errorf("cannot extract frames %d to %d from %d frames", from, to, frames)
	}

	ch := c.Format.Channels
	data := make([]int, (to-from)*ch)
	copy(data, c.Data[from*ch:to*ch])
	return &Clip{Format: c.Format, Data: data}, nil
}

func clip16(v float64) int {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int(v)
	}
}
