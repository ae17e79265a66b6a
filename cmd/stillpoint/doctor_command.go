package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"stillpoint/internal/config"
	"stillpoint/internal/deps"
	"stillpoint/internal/services/llm"
)

const llmCheckTimeout = 30 * time.Second

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var skipLLM bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and LLM API reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.ForConfig(cfg))
			rows := make([][]string, 0, len(statuses)+1)
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = status.Detail
				}
				rows = append(rows, []string{status.Name, status.Command, state})
			}
			failures := len(deps.Missing(statuses))

			if !skipLLM {
				state := "ok"
				if detail := checkLLM(cmd.Context(), cfg.LLM); detail != "" {
					state = detail
					failures++
				}
				rows = append(rows, []string{"llm api", cfg.LLM.Model, state})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Target", "Status"}, rows))

			if failures != 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Skip the LLM API reachability check")
	return cmd
}

// checkLLM pings the chat completion endpoint with a single attempt and
// returns a failure summary, or "" when the API answered.
func checkLLM(ctx context.Context, cfg config.LLM) string {
	if cfg.APIKey == "" {
		return "api key missing"
	}

	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return summarizeLLMError(err)
	}
	return ""
}

func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
