package commands

import (
	"github.com/spf13/cobra"

	"github.com/fabriclab/fabtest/cmd/fabtest/handlers"
)

// Test returns the command for the initiator-side workload phase.
func Test() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the fio workloads against an already-configured target",
		Long: `Run the configured fio workloads from the initiator host.

Discovers the target, connects, waits for the local NVMe device to
appear, runs each fio job, and disconnects. The target must already be
set up (see 'fabtest setup').

Exits 3 when a workload step fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Test(cmd.Context(), configPath)
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
