package commands

import (
	"github.com/spf13/cobra"

	"github.com/fabriclab/fabtest/cmd/fabtest/handlers"
)

// Run returns the command for the full validation sequence.
//
// Setup, verification, workload, log collection, and cleanup execute
// in order; cleanup and log collection run even when an earlier phase
// fails or the run is interrupted.
func Run() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full validation sequence",
		Long: `Run the full validation sequence against the lab pair.

Provisions the NVMe-oF TCP export on the target, verifies the kernel
configuration, drives the configured fio workloads from the initiator,
collects kernel logs from both hosts, and tears the export down.

Examples:
  # Full run using fabtest.yaml in the current directory
  fabtest run

  # Full run with a specific configuration
  fabtest run -c lab-b.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Run(cmd.Context(), configPath)
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
