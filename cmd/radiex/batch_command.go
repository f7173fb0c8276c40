package main

import (
	"github.com/spf13/cobra"

	"radiex/internal/runner"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "batch IMAGE_DIR MASK_DIR",
		Short: "Extract features for every matched pair in mirrored trees",
		Long: `Batch walks IMAGE_DIR recursively and pairs every image file with the
mask at the identical relative path under MASK_DIR. Images without a
matching mask are reported in the failures table without aborting the
run.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(ctx, cmd, flags, runner.Input{
				ImageDir: args[0],
				MaskDir:  args[1],
			})
		},
	}

	addRunFlags(cmd, flags)
	return cmd
}
