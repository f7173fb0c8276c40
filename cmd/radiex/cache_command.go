package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"radiex/internal/scratch"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Conversion cache utilities",
	}

	cacheCmd.AddCommand(newCacheCleanCommand(ctx))
	return cacheCmd
}

func newCacheCleanCommand(ctx *commandContext) *cobra.Command {
	var olderHours int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale run scratch directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			age := time.Duration(olderHours) * time.Hour
			removed, err := scratch.SweepStale(cfg.Paths.ScratchDir, age)
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clean")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale scratch director(ies)\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVar(&olderHours, "older", 0, "Only remove directories older than this many hours")
	return cmd
}
