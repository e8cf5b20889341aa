package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/realtime-ai/recordkit/pkg/audiofile"
)

type editOptions struct {
	in        string
	out       string
	start     time.Duration
	end       time.Duration
	appendWAV string
	reverse   bool
	normalize float64
}

func editCommand() *cobra.Command {
	opts := &editOptions{}

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Extract, append, reverse or normalize a recording",
		Long: `Apply edits to a 16-bit WAV file and write the result to a new file.
Edits run in a fixed order: extract, append, reverse, normalize.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, cmd.Flags().Changed("normalize"))
		},
	}

	cmd.Flags().StringVarP(&opts.in, "in", "i", "", "WAV file to edit")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output WAV path")
	cmd.Flags().DurationVar(&opts.start, "start", 0, "Keep audio from this offset")
	cmd.Flags().DurationVar(&opts.end, "end", 0, "Keep audio up to this offset (0 is the end)")
	cmd.Flags().StringVar(&opts.appendWAV, "append", "", "WAV file to append, in the same format")
	cmd.Flags().BoolVar(&opts.reverse, "reverse", false, "Reverse the audio")
	cmd.Flags().Float64Var(&opts.normalize, "normalize", 0, "Normalize the peak to this level in dBFS")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runEdit(opts *editOptions, normalize bool) error {
	clip, err := audiofile.Read(opts.in)
	if err != nil {
		return err
	}

	if opts.start > 0 || opts.end > 0 {
		rate := clip.Format.SampleRate
		from := int(opts.start * time.Duration(rate) / time.Second)
		to := int(opts.end * time.Duration(rate) / time.Second)
		if clip, err = clip.Extracted(from, to); err != nil {
			return err
		}
	}
	if opts.appendWAV != "" {
		other, err := audiofile.Read(opts.appendWAV)
		if err != nil {
			return err
		}
		if clip, err = clip.Appended(other); err != nil {
			return err
		}
	}
	if opts.reverse {
		clip = clip.Reversed()
	}
	if normalize {
		if clip, err = clip.Normalized(opts.normalize); err != nil {
			return err
		}
	}

	if err := clip.Write(opts.out); err != nil {
		return err
	}
	log.Printf("Wrote %s (%s, %s)", opts.out, clip.Format, clip.Duration())
	return nil
}

func infoCommand() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the format, length and peak of a WAV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clip, err := audiofile.Read(in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %s, peak %.1f dBFS at %s\n",
				in, clip.Format, clip.Duration(), clip.MaxLevel(), clip.PeakTime())
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "WAV file to inspect")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}
