package audio

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// Resampler converts 16-bit PCM between sample rates and mono/stereo layouts
// using libswresample. It is not safe for concurrent use.
type Resampler struct {
	ctx      *astiav.SoftwareResampleContext
	inFrame  *astiav.Frame
	outFrame *astiav.Frame

	in  Format
	out Format

	inLayout  astiav.ChannelLayout
	outLayout astiav.ChannelLayout
}

func channelLayout(channels int) (astiav.ChannelLayout, error) {
	switch channels {
	case 1:
		return astiav.ChannelLayoutMono, nil
	case 2:
		return astiav.ChannelLayoutStereo, nil
	default:
		return astiav.ChannelLayout{}, fmt.Errorf("unsupported channel count: %d", channels)
	}
}

// NewResampler creates a resampler from in to out.
func NewResampler(in, out Format) (*Resampler, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("input format: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("output format: %w", err)
	}

	inLayout, err := channelLayout(in.Channels)
	if err != nil {
		return nil, err
	}
	outLayout, err := channelLayout(out.Channels)
	if err != nil {
		return nil, err
	}

	r := &Resampler{
		in:        in,
		out:       out,
		inLayout:  inLayout,
		outLayout: outLayout,
	}

	if r.ctx = astiav.AllocSoftwareResampleContext(); r.ctx == nil {
		return nil, fmt.Errorf("failed to allocate resample context")
	}
	if r.inFrame = astiav.AllocFrame(); r.inFrame == nil {
		r.Free()
		return nil, fmt.Errorf("failed to allocate input frame")
	}
	if r.outFrame = astiav.AllocFrame(); r.outFrame == nil {
		r.Free()
		return nil, fmt.Errorf("failed to allocate output frame")
	}

	return r, nil
}

// Free releases the native resources.
func (r *Resampler) Free() {
	if r.ctx != nil {
		r.ctx.Free()
		r.ctx = nil
	}
	if r.inFrame != nil {
		r.inFrame.Free()
		r.inFrame = nil
	}
	if r.outFrame != nil {
		r.outFrame.Free()
		r.outFrame = nil
	}
}

// Resample converts one chunk. The returned slice is owned by the caller.
func (r *Resampler) Resample(p []byte) ([]byte, error) {
	const align = 0

	frames := len(p) / r.in.BytesPerFrame()
	if frames == 0 {
		return nil, nil
	}

	r.inFrame.Unref()
	r.outFrame.Unref()

	r.inFrame.SetChannelLayout(r.inLayout)
	r.inFrame.SetSampleFormat(astiav.SampleFormatS16)
	r.inFrame.SetSampleRate(r.in.SampleRate)
	r.inFrame.SetNbSamples(frames)

	outFrames := frames * r.out.SampleRate / r.in.SampleRate
	if outFrames == 0 {
		outFrames = 1
	}
	r.outFrame.SetChannelLayout(r.outLayout)
	r.outFrame.SetSampleFormat(astiav.SampleFormatS16)
	r.outFrame.SetSampleRate(r.out.SampleRate)
	r.outFrame.SetNbSamples(outFrames)

	if err := r.inFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("allocate input buffer: %w", err)
	}
	if err := r.outFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("allocate output buffer: %w", err)
	}
	if err := r.inFrame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("make input writable: %w", err)
	}

	size, err := r.inFrame.SamplesBufferSize(align)
	if err != nil {
		return nil, fmt.Errorf("input buffer size: %w", err)
	}
	in := p
	if len(in) < size {
		in = make([]byte, size)
		copy(in, p)
	}
	if err := r.inFrame.Data().SetBytes(in[:size], align); err != nil {
		return nil, fmt.Errorf("set input samples: %w", err)
	}

	if err := r.ctx.ConvertFrame(r.inFrame, r.outFrame); err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	out, err := r.outFrame.Data().Bytes(align)
	if err != nil {
		return nil, fmt.Errorf("read output samples: %w", err)
	}
	return out, nil
}

// Flush drains the samples libswresample still holds back for its filter.
// Call it once after the last Resample.
func (r *Resampler) Flush() ([]byte, error) {
	const align = 0

	// 10ms per pass is far more than the filter delay
	chunk := r.out.SampleRate / 100
	if chunk < 64 {
		chunk = 64
	}

	var out []byte
	for pass := 0; pass < 8; pass++ {
		r.outFrame.Unref()
		r.outFrame.SetChannelLayout(r.outLayout)
		r.outFrame.SetSampleFormat(astiav.SampleFormatS16)
		r.outFrame.SetSampleRate(r.out.SampleRate)
		r.outFrame.SetNbSamples(chunk)
		if err := r.outFrame.AllocBuffer(align); err != nil {
			return out, fmt.Errorf("allocate output buffer: %w", err)
		}

		if err := r.ctx.ConvertFrame(nil, r.outFrame); err != nil {
			return out, fmt.Errorf("flush: %w", err)
		}
		if r.outFrame.NbSamples() == 0 {
			break
		}

		b, err := r.outFrame.Data().Bytes(align)
		if err != nil {
			return out, fmt.Errorf("read output samples: %w", err)
		}
		out = append(out, b...)
		if r.outFrame.NbSamples() < chunk {
			break
		}
	}
	return out, nil
}
