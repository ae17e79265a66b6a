package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"stillpoint/internal/statestore"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect saved pipeline snapshots",
	}

	stateCmd.AddCommand(newStateListCommand(ctx))
	stateCmd.AddCommand(newStateShowCommand(ctx))

	return stateCmd
}

func newStateListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := statestore.New(cfg.Paths.StateDir)
			if err != nil {
				return err
			}
			names, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots found")
				return nil
			}

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				stage, ts, err := statestore.ParseName(name)
				if err != nil {
					rows = append(rows, []string{name, "?", "?"})
					continue
				}
				rows = append(rows, []string{name, stage, ts.Format("2006-01-02 15:04:05")})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Snapshot", "Stage", "Saved (UTC)"}, rows))
			return nil
		},
	}
}

func newStateShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [snapshot]",
		Short: "Print a snapshot as JSON (defaults to the furthest along)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := statestore.New(cfg.Paths.StateDir)
			if err != nil {
				return err
			}

			var record any
			if len(args) == 1 {
				record, err = store.Load(cmd.Context(), args[0])
			} else {
				record, _, err = store.LatestAny(cmd.Context())
			}
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
