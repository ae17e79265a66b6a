package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stillpoint/internal/runs"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger, err := runs.Open(filepath.Join(cfg.Paths.StateDir, "runs.db"))
			if err != nil {
				return err
			}
			defer ledger.Close()

			entries, err := ledger.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, run := range entries {
				rows = append(rows, []string{
					shortID(run.RunID),
					run.Status,
					run.MeditationStyle,
					run.LanguageCode,
					strconv.Itoa(run.DurationMinutes),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					runElapsed(run),
					runDetail(run),
				})
			}
			headers := []string{"Run", "Status", "Style", "Lang", "Min", "Started", "Elapsed", "Detail"}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, 4, 6))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

func runElapsed(run runs.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

// runDetail shows the most useful single fact: the error for failed runs,
// the mixed file for completed ones.
func runDetail(run runs.Run) string {
	if run.ErrorMessage != "" {
		return run.ErrorMessage
	}
	if run.MixedFile != "" {
		return filepath.Base(run.MixedFile)
	}
	if run.NarrationFile != "" {
		return filepath.Base(run.NarrationFile)
	}
	return ""
}
