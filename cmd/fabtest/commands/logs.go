package commands

import (
	"github.com/spf13/cobra"

	"github.com/fabriclab/fabtest/cmd/fabtest/handlers"
)

// Logs returns the command for collecting kernel logs from the lab hosts.
func Logs() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Collect kernel log tails from both hosts",
		Long: `Collect kernel log tails from the target and initiator hosts.

Fetches the last log_tail_lines of dmesg from each host and writes them
into a fresh artifact directory. Hosts that cannot be reached are
skipped with a warning.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Logs(cmd.Context(), configPath)
		},
	}

	configFlag(cmd, &configPath)
	return cmd
}
