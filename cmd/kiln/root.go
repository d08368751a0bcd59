package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kiln",
		Short:         "Remote program compilation cache and execution server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := newServeCommand()
	cmd.AddCommand(serve)
	cmd.AddCommand(newCompileCommand())
	cmd.AddCommand(newInspectCommand())

	// Running kiln with no subcommand starts the server.
	cmd.RunE = serve.RunE
	cmd.Flags().AddFlagSet(serve.Flags())

	return cmd
}
