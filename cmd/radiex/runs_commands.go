package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"radiex/internal/runner"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Run history",
	}

	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsRetryCommand(ctx))

	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cfg)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				status := "completed"
				if run.CompletedWithErrors {
					status = "completed with errors"
				}
				rows = append(rows, []string{
					run.ID,
					run.Mode,
					humanize.Time(run.StartedAt),
					strconv.Itoa(run.Submitted),
					strconv.Itoa(run.Succeeded),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Failed),
					status,
				})
			}
			table := renderTable([]tableColumn{
				{Title: "Run"},
				{Title: "Mode"},
				{Title: "Started"},
				{Title: "Cases", Right: true},
				{Title: "OK", Right: true},
				{Title: "Skip", Right: true},
				{Title: "Fail", Right: true},
				{Title: "Status"},
			}, rows)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run's per-case outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cfg)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			outcomes, err := store.RunOutcomes(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s), started %s\n", run.ID, run.Mode, run.StartedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(out, "Inputs: %s / %s\n", run.ImageInput, run.MaskInput)
			fmt.Fprintf(out, "Output: %s\n\n", run.OutputDir)

			if len(outcomes) == 0 {
				fmt.Fprintln(out, "No per-case outcomes recorded")
				return nil
			}
			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				rows = append(rows, []string{
					o.CaseID,
					titleCaser.String(o.Status),
					o.Kind,
					o.Message,
					formatMillis(o.DurationMS),
				})
			}
			table := renderTable([]tableColumn{
				{Title: "Case", WidthMax: 40},
				{Title: "Status"},
				{Title: "Kind"},
				{Title: "Message", WidthMax: 60},
				{Title: "Duration", Right: true},
			}, rows)
			fmt.Fprintln(out, table)
			return nil
		},
	}
}

func newRunsRetryCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "retry RUN_ID",
		Short: "Re-run only the failed cases of a previous batch run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cfg)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				store.Close()
				return err
			}
			failed, err := store.FailedCaseIDs(cmd.Context(), run.ID)
			if err != nil {
				store.Close()
				return err
			}
			store.Close()

			if len(failed) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s has no failed cases\n", run.ID)
				return nil
			}
			if run.ImageInput == "" || run.MaskInput == "" {
				return fmt.Errorf("run %s did not record batch inputs; retry is only available for batch runs", run.ID)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d failed case(s) from %s\n", len(failed), run.ID)
			return executeRun(ctx, cmd, flags, runner.Input{
				ImageDir:  run.ImageInput,
				MaskDir:   run.MaskInput,
				OnlyCases: failed,
			})
		},
	}

	addRunFlags(cmd, flags)
	return cmd
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
