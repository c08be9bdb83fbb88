package commands

import (
	"github.com/spf13/cobra"

	"github.com/fabriclab/fabtest/cmd/fabtest/handlers"
)

// Cleanup returns the command for tearing down the target export.
func Cleanup() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Tear down whatever nvmet objects exist on the target",
		Long: `Tear down the NVMe-oF export on the target host.

Discovers what actually exists under configfs and removes it in order:
port bindings, namespaces, subsystems, ports. Safe to run repeatedly
and on hosts that were never set up.

Exits 4 when objects could not be removed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Cleanup(cmd.Context(), configPath)
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
