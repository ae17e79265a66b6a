package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"stillpoint/internal/pipeline"
	"stillpoint/internal/services"
	"stillpoint/internal/statestore"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var fromStage string
	var toStage string
	var snapshotID string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume the pipeline from saved state",
		Long: "Resume re-runs part of the pipeline against saved snapshots. Without flags it\n" +
			"retries the failed stage of the most recent run, or continues after the furthest\n" +
			"completed stage.",
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

			var seed *pipeline.Record
			if id := strings.TrimSpace(snapshotID); id != "" {
				seed, err = rt.store.Load(signalCtx, id)
				if err != nil {
					return err
				}
				if fromStage == "" {
					stage, _, err := statestore.ParseName(id)
					if err != nil {
						return err
					}
					fromStage, err = stageAfter(stage)
					if err != nil {
						return err
					}
				}
			}

			if fromStage == "" {
				fromStage, err = deriveResumeStage(cmd, rt)
				if err != nil {
					return err
				}
			}
			if toStage == "" {
				toStage = pipeline.Order[len(pipeline.Order)-1]
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Resuming %s through %s\n", fromStage, toStage)
			record, runErr := rt.engine.RunRange(signalCtx, fromStage, toStage, seed)
			return reportOutcome(cmd.OutOrStdout(), record, runErr)
		},
	}

	cmd.Flags().StringVar(&fromStage, "from", "", "First stage to run (default: derived from saved state)")
	cmd.Flags().StringVar(&toStage, "to", "", "Last stage to run (default: final stage)")
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "Snapshot ID to seed the run from")

	return cmd
}

// deriveResumeStage inspects the furthest snapshot: a failed record retries
// its own stage, a clean one continues with the next.
func deriveResumeStage(cmd *cobra.Command, rt *runtime) (string, error) {
	record, name, err := rt.store.LatestAny(cmd.Context())
	if err != nil {
		if services.IsNotFound(err) {
			return "", fmt.Errorf("no saved state to resume; run `stillpoint generate` first")
		}
		return "", err
	}
	stage, _, err := statestore.ParseName(name)
	if err != nil {
		return "", err
	}
	if record.Failed() {
		return stage, nil
	}
	return stageAfter(stage)
}

func stageAfter(stage string) (string, error) {
	idx, err := pipeline.Index(stage)
	if err != nil {
		return "", err
	}
	if idx == len(pipeline.Order)-1 {
		return "", fmt.Errorf("pipeline already completed through %s; nothing to resume", stage)
	}
	return pipeline.Order[idx+1], nil
}
