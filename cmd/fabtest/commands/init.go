package commands

import (
	"github.com/spf13/cobra"

	"github.com/fabriclab/fabtest/cmd/fabtest/handlers"
)

// Init returns the command for creating a configuration file.
func Init() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		Long: `Create a fabtest configuration file.

Walks through the lab topology interactively: hosts, fabric addresses,
subsystem NQN, and backend device. Requires a terminal.

Examples:
  fabtest init
  fabtest init -o lab-b.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "fabtest.yaml", "Where to write the configuration")
	return cmd
}
