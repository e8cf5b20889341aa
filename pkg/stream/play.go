package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/realtime-ai/recordkit/pkg/audio"
	"github.com/realtime-ai/recordkit/pkg/audiofile"
	"github.com/realtime-ai/recordkit/pkg/trace"
)

// Output consumes a ring buffer from its own realtime context.
// *device.Speaker satisfies it.
type Output interface {
	Start(rb *audio.RingBuffer) error
	Stop() error
}

// PlayOptions tunes playback buffering.
type PlayOptions struct {
	// BufferLength is the size of each chunk fed into the ring
	BufferLength audio.BufferLength
	// RingPeriods is the ring capacity in chunks
	RingPeriods int
}

func (o PlayOptions) withDefaults() PlayOptions {
	if !o.BufferLength.Valid() {
		o.BufferLength = audio.BufferVeryLong
	}
	if o.RingPeriods < 2 {
		o.RingPeriods = 8
	}
	return o
}

// ProbeWAV returns the PCM format and length of a 16-bit WAV file.
func ProbeWAV(path string) (audio.Format, time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Format{}, 0, err
	}
	defer f.Close()

	dec, format, err := audiofile.NewDecoder(f)
	if err != nil {
		return audio.Format{}, 0, fmt.Errorf("%s: %w", path, err)
	}
	d, err := dec.Duration()
	if err != nil {
		return audio.Format{}, 0, fmt.Errorf("%s: %w", path, err)
	}
	return format, d, nil
}

// Play feeds a WAV file through a ring buffer into out. Writes wait for free
// space so the ring never overwrites unplayed audio. Play returns one period
// after the whole file was consumed, or when ctx is done.
func Play(ctx context.Context, path string, out Output, opts PlayOptions) error {
	opts = opts.withDefaults()

	return trace.WithSpan(ctx, trace.SpanPlay, func(ctx context.Context) error {
		return play(ctx, path, out, opts)
	}, oteltrace.WithAttributes(attribute.String(trace.AttrFilePath, path)))
}

func play(ctx context.Context, path string, out Output, opts PlayOptions) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening file %s: %w", path, err)
	}
	defer f.Close()

	dec, format, err := audiofile.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if fo, ok := out.(interface{ Format() audio.Format }); ok && fo.Format() != format {
		return fmt.Errorf("output format %s does not match file format %s", fo.Format(), format)
	}

	periodBytes := opts.BufferLength.Bytes(format)
	ring, err := audio.NewRingBuffer(periodBytes * opts.RingPeriods)
	if err != nil {
		return err
	}

	interval := opts.BufferLength.Duration(format.SampleRate) / 2
	if interval <= 0 {
		interval = time.Millisecond
	}

	if err := out.Start(ring); err != nil {
		return fmt.Errorf("failed to start output: %w", err)
	}
	defer func() {
		err = errors.Join(err, out.Stop())
	}()

	log.Printf("[Play] %s", trace.LogWithTrace(ctx, fmt.Sprintf("playing %s: %s", path, format)))

	buf := &goaudio.IntBuffer{
		Data:   make([]int, opts.BufferLength.Frames()*format.Channels),
		Format: &goaudio.Format{SampleRate: format.SampleRate, NumChannels: format.Channels},
	}
	pcm := make([]byte, 0, periodBytes)

	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("error decoding %s: %w", path, err)
		}
		if n == 0 {
			break
		}
		pcm = audio.IntsToBytes(pcm[:0], buf.Data[:n])

		if err := waitUntil(ctx, interval, func() bool { return ring.Free() >= len(pcm) }); err != nil {
			return err
		}
		ring.Write(pcm)
	}

	if err := waitUntil(ctx, interval, func() bool { return ring.Len() == 0 }); err != nil {
		return err
	}

	// the output may still hold the last period after the ring empties
	tail := time.NewTimer(opts.BufferLength.Duration(format.SampleRate))
	defer tail.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tail.C:
		return nil
	}
}

func waitUntil(ctx context.Context, interval time.Duration, cond func() bool) error {
	if cond() {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if cond() {
				return nil
			}
		}
	}
}
