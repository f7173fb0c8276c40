package main

import (
	"github.com/spf13/cobra"

	"radiex/internal/runner"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "extract IMAGE MASK",
		Short: "Extract features for a single image/mask pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(ctx, cmd, flags, runner.Input{
				ImagePath: args[0],
				MaskPath:  args[1],
			})
		},
	}

	addRunFlags(cmd, flags)
	return cmd
}
