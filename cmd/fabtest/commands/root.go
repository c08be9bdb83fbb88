// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing and flag binding. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the fabtest CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fabtest",
		Short: "Validate NVMe-oF TCP targets end to end",
	}

	// Core commands
	cmd.AddCommand(Init())
	cmd.AddCommand(Run())
	cmd.AddCommand(Setup())
	cmd.AddCommand(Verify())
	cmd.AddCommand(Test())
	cmd.AddCommand(Cleanup())
	cmd.AddCommand(Logs())

	// Utility commands
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// configFlag binds the shared --config flag.
func configFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", "", "Path to configuration file (default: fabtest.yaml)")
}
