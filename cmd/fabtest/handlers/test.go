package handlers

import (
	"context"
	"fmt"

	"github.com/fabriclab/fabtest/internal/report"
	"github.com/fabriclab/fabtest/internal/workload"
)

// Test runs the configured fio workloads from the initiator against an
// already-configured target.
func Test(ctx context.Context, configPath string) error {
	s, err := newSession(configPath, "workload")
	if err != nil {
		return err
	}

	driver := workload.NewDriver(s.exec, s.cfg, s.timeouts, s.log)
	results, err := driver.Run(ctx, s.cfg.Workload.Jobs)
	if err != nil {
		s.run.Fail(report.OutcomeWorkloadFailed)
	}

	dir, werr := s.writeArtifacts(ctx, results, nil)
	if werr != nil {
		s.log.Info("failed to write artifacts", "error", werr.Error())
	}
	if err != nil {
		return err
	}

	printWorkloadResults(results)
	fmt.Printf("Artifacts: %s\n", dir)
	return nil
}
