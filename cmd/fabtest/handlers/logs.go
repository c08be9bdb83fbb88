package handlers

import (
	"context"
	"fmt"

	"github.com/fabriclab/fabtest/internal/config"
	logcollect "github.com/fabriclab/fabtest/internal/logs"
)

// Logs collects kernel log tails from both hosts into a fresh artifact
// directory. Unreachable hosts are skipped with a warning.
func Logs(ctx context.Context, configPath string) error {
	s, err := newSession(configPath, "logs")
	if err != nil {
		return err
	}

	collector := logcollect.New(s.exec, s.cfg.Artifacts.LogTailLines, s.timeouts.LogCollect, s.log)
	tails := collector.CollectAll(ctx, config.RoleTarget, config.RoleInitiator)
	if len(tails) == 0 {
		return fmt.Errorf("no logs collected from either host")
	}

	collected := make(map[string]string, len(tails))
	for _, tail := range tails {
		collected[tail.Host] = tail.Content
	}

	dir, err := s.writeArtifacts(ctx, nil, collected)
	if err != nil {
		return err
	}

	fmt.Printf("Collected logs from %d host(s): %s\n", len(tails), dir)
	return nil
}
