package handlers

import (
	"context"
	"fmt"

	"github.com/fabriclab/fabtest/internal/probe"
	"github.com/fabriclab/fabtest/internal/report"
	"github.com/fabriclab/fabtest/internal/sweep"
)

// Cleanup tears down whatever nvmet objects exist on the target and
// confirms nothing configured remains.
func Cleanup(ctx context.Context, configPath string) error {
	s, err := newSession(configPath, "cleanup")
	if err != nil {
		return err
	}

	summary, sweepErr := sweep.New(s.exec, s.timeouts.Cleanup).Sweep(ctx)
	s.run.SetCleanup(sweepErr == nil, summary.Removed())
	if sweepErr != nil {
		s.run.Fail(report.OutcomeCleanupIncomplete)
		if _, werr := s.writeArtifacts(ctx, nil, nil); werr != nil {
			s.log.Info("failed to write artifacts", "error", werr.Error())
		}
		return sweepErr
	}

	// The sweep reported success; double-check with read-only probes.
	prober := probe.New(s.exec, s.cfg, s.timeouts.Command)
	if err := prober.VerifyAbsent(ctx); err != nil {
		s.run.Fail(report.OutcomeCleanupIncomplete)
		if _, werr := s.writeArtifacts(ctx, nil, nil); werr != nil {
			s.log.Info("failed to write artifacts", "error", werr.Error())
		}
		return &sweep.Incomplete{Nodes: []string{err.Error()}}
	}

	if _, werr := s.writeArtifacts(ctx, nil, nil); werr != nil {
		s.log.Info("failed to write artifacts", "error", werr.Error())
	}

	fmt.Printf("Cleanup complete: %d object(s) removed\n", summary.Removed())
	return nil
}
