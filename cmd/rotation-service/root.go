package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rotation-service",
		Short:        "Student rotation directory and bulk import service",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newImportCmd(),
		newCleanupCmd(),
		newMigrateCmd(),
		newTokenCmd(),
	)
	return cmd
}

func execute() error {
	return newRootCmd().Execute()
}
