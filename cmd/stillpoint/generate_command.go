package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stillpoint/internal/pipeline"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var req pipeline.Request

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a complete meditation from a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := buildRuntime(signalCtx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			record, runErr := rt.engine.Run(signalCtx, req)
			return reportOutcome(cmd.OutOrStdout(), record, runErr)
		},
	}

	cmd.Flags().StringVar(&req.EmotionalState, "emotional-state", "", "Listener's current emotional state (e.g. anxious, restless)")
	cmd.Flags().StringVar(&req.MeditationStyle, "style", "", "Meditation style (mindfulness, body_scan, loving_kindness, ...)")
	cmd.Flags().StringVar(&req.MeditationTheme, "theme", "", "Theme woven through the narration")
	cmd.Flags().IntVar(&req.DurationMinutes, "duration", 10, "Target duration in minutes")
	cmd.Flags().StringVar(&req.LanguageCode, "language", "en-US", "Narration language code")
	cmd.Flags().StringVar(&req.VoiceType, "voice", "female", "Voice type: male, female, or neutral")
	cmd.Flags().StringVar(&req.Soundscape, "soundscape", "", "Preferred background soundscape file name")

	return cmd
}

// reportOutcome prints the produced files on success and surfaces the
// record's terminal error on failure.
func reportOutcome(out io.Writer, record *pipeline.Record, runErr error) error {
	if runErr != nil {
		if record != nil && record.Failed() {
			return errors.New(record.Error)
		}
		return runErr
	}
	if record == nil || record.AudioOutput == nil {
		fmt.Fprintln(out, "Pipeline finished without audio output")
		return nil
	}
	fmt.Fprintf(out, "Narration: %s\n", record.AudioOutput.NarrationFile)
	if record.AudioOutput.MixedFile != "" {
		fmt.Fprintf(out, "Mixed:     %s\n", record.AudioOutput.MixedFile)
	}
	if record.AudioOutput.SampleFile != "" {
		fmt.Fprintf(out, "Sample:    %s\n", record.AudioOutput.SampleFile)
	}
	return nil
}
