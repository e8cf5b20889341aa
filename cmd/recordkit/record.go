package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/realtime-ai/recordkit/pkg/bus"
	"github.com/realtime-ai/recordkit/pkg/device"
	"github.com/realtime-ai/recordkit/pkg/sink"
	"github.com/realtime-ai/recordkit/pkg/stream"
)

type recordOptions struct {
	source   string
	out      string
	duration time.Duration
	forward  string
	encoding string
	play     bool
}

func recordCommand(a *app) *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture audio into a WAV file",
		Long: `Capture from the microphone (or a test tone) into a WAV file until
interrupted or until the maximum duration is reached. Audio can also be
forwarded to a websocket endpoint as pcm16, mulaw or opus.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), a, opts, cmd.Flags().Changed("duration"))
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "microphone", "Capture source: microphone, tone")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output WAV path (default from RECORDKIT_OUTPUT)")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Stop after this much audio (default from RECORDKIT_MAX_DURATION)")
	cmd.Flags().StringVar(&opts.forward, "forward", "", "Websocket URL to forward audio to")
	cmd.Flags().StringVar(&opts.encoding, "encoding", "", "Forwarding encoding: pcm16, mulaw, opus")
	cmd.Flags().BoolVar(&opts.play, "play", false, "Play the recording back when done")

	return cmd
}

func newSource(name string, a *app) (device.Source, error) {
	switch name {
	case "microphone", "mic":
		return device.NewMicrophone(a.cfg.Format, a.cfg.BufferLength)
	case "tone":
		return device.NewTone(device.ToneConfig{Format: a.cfg.Format, Period: a.cfg.BufferLength})
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

func runRecord(ctx context.Context, a *app, opts *recordOptions, durationSet bool) error {
	cfg := a.cfg
	if opts.out != "" {
		cfg.OutputPath = opts.out
	}
	if durationSet {
		cfg.MaxDuration = opts.duration
	}
	if opts.forward != "" {
		cfg.ForwardURL = opts.forward
	}
	if opts.encoding != "" {
		enc, err := sink.ParseEncoding(opts.encoding)
		if err != nil {
			return err
		}
		cfg.ForwardEncoding = enc
	}

	src, err := newSource(opts.source, a)
	if err != nil {
		return err
	}

	wavSink, err := sink.NewWAVSink(cfg.OutputPath, cfg.Format)
	if err != nil {
		return err
	}
	sinks := []sink.Sink{wavSink}

	if cfg.ForwardURL != "" {
		fwd, err := sink.NewForwarder(ctx, sink.ForwarderConfig{
			URL:      cfg.ForwardURL,
			Format:   cfg.Format,
			Encoding: cfg.ForwardEncoding,
		})
		if err != nil {
			return errors.Join(err, wavSink.Close())
		}
		sinks = append(sinks, fwd)
	}

	events := bus.New()
	closed := watchEvents(events)

	s, err := stream.NewInputStream(stream.Config{
		Format:       cfg.Format,
		BufferLength: cfg.BufferLength,
		RingPeriods:  cfg.RingPeriods,
		MaxDuration:  cfg.MaxDuration,
		Bus:          events,
		Metrics:      a.metrics,
	}, src, sinks...)
	if err != nil {
		return closeAll(err, sinks)
	}

	// the session outlives the signal context so Close can still drain
	if err := s.Open(context.WithoutCancel(ctx)); err != nil {
		return closeAll(err, sinks)
	}
	log.Printf("Recording session %s to %s (Ctrl+C to stop)", s.ID(), cfg.OutputPath)

	select {
	case <-ctx.Done():
		log.Printf("Stopping recording")
	case <-closed:
	}

	if err := s.Close(context.Background()); err != nil {
		return err
	}
	log.Printf("Saved %s (%s)", cfg.OutputPath, cfg.Format.Duration(int(wavSink.BytesWritten())))

	if opts.play {
		return playFile(ctx, a, cfg.OutputPath)
	}
	return nil
}

// watchEvents logs session events and reports when the session closes itself.
func watchEvents(b bus.Bus) <-chan struct{} {
	ch := make(chan bus.Event, 64)
	for _, t := range []bus.EventType{bus.EventStatusChanged, bus.EventOverflow, bus.EventSinkError, bus.EventFileComplete, bus.EventError} {
		b.Subscribe(t, ch)
	}

	closed := make(chan struct{})
	go func() {
		signalled := false
		for evt := range ch {
			switch p := evt.Payload.(type) {
			case bus.StatusPayload:
				if (p.To == stream.StatusClosed.String() || p.To == stream.StatusError.String()) && !signalled {
					signalled = true
					close(closed)
				}
			case bus.OverflowPayload:
				log.Printf("[Events] overflow: %d bytes overwritten (%d total)", p.Dropped, p.TotalDropped)
			case bus.SinkErrorPayload:
				log.Printf("[Events] sink %s: %v", p.Sink, p.Err)
			case string:
				log.Printf("[Events] file complete: %s", p)
			case error:
				log.Printf("[Events] error: %v", p)
			}
		}
	}()
	return closed
}

func closeAll(err error, sinks []sink.Sink) error {
	errs := []error{err}
	for _, s := range sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
