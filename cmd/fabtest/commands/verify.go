package commands

import (
	"github.com/spf13/cobra"

	"github.com/fabriclab/fabtest/cmd/fabtest/handlers"
)

// Verify returns the command for read-only configuration checks.
func Verify() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the target configuration without changing it",
		Long: `Verify the NVMe-oF configuration on the target host.

Checks modules, the configfs tree, subsystem attributes, namespace
backing devices, port addresses, and the port binding against the
configuration. Never mutates remote state.

Exits 2 when the configuration does not match.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Verify(cmd.Context(), configPath)
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
