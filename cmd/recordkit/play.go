package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/realtime-ai/recordkit/pkg/device"
	"github.com/realtime-ai/recordkit/pkg/stream"
)

func playCommand(a *app) *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a 16-bit WAV file on the default output device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return playFile(cmd.Context(), a, in)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "WAV file to play")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func playFile(ctx context.Context, a *app, path string) error {
	format, d, err := stream.ProbeWAV(path)
	if err != nil {
		return err
	}

	speaker, err := device.NewSpeaker(format, a.cfg.BufferLength)
	if err != nil {
		return err
	}

	log.Printf("Playing %s (%s, %s)", path, format, d)
	return stream.Play(ctx, path, speaker, stream.PlayOptions{
		BufferLength: a.cfg.BufferLength,
		RingPeriods:  a.cfg.RingPeriods,
	})
}
