package commands

import (
	"github.com/spf13/cobra"

	"github.com/fabriclab/fabtest/cmd/fabtest/handlers"
)

// Setup returns the command for provisioning the target export.
func Setup() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Provision the NVMe-oF export on the target",
		Long: `Provision the NVMe-oF TCP export on the target host.

Loads the nvmet kernel modules, creates the subsystem, namespaces, and
TCP port under configfs, and binds the subsystem to the port. Completed
stages are rolled back if a later stage fails. The resulting
configuration is verified before the command returns.

Examples:
  fabtest setup
  fabtest setup -c lab-b.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Setup(cmd.Context(), configPath)
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
