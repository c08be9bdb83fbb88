package handlers

import (
	"context"
	"fmt"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/logs"
	"github.com/fabriclab/fabtest/internal/orchestration"
	"github.com/fabriclab/fabtest/internal/probe"
	"github.com/fabriclab/fabtest/internal/report"
	"github.com/fabriclab/fabtest/internal/sweep"
	"github.com/fabriclab/fabtest/internal/workload"
)

// Run executes the full validation sequence: setup, verification,
// workload, log collection, cleanup, artifacts.
//
// The first failure decides the run's outcome and exit code, but log
// collection and cleanup always execute, detached from the caller's
// cancellation so an interrupted run still tears its objects down.
func Run(ctx context.Context, configPath string) error {
	s, err := newSession(configPath, "full-run")
	if err != nil {
		return err
	}

	firstErr := runPhases(ctx, s)

	// Diagnostics and teardown survive cancellation.
	teardownCtx := context.WithoutCancel(ctx)

	collector := logs.New(s.exec, s.cfg.Artifacts.LogTailLines, s.timeouts.LogCollect, s.log)
	tails := collector.CollectAll(teardownCtx, config.RoleTarget, config.RoleInitiator)
	collected := make(map[string]string, len(tails))
	for _, tail := range tails {
		collected[tail.Host] = tail.Content
	}

	summary, sweepErr := sweep.New(s.exec, s.timeouts.Cleanup).Sweep(teardownCtx)
	s.run.SetCleanup(sweepErr == nil, summary.Removed())
	if sweepErr != nil {
		s.run.Fail(report.OutcomeCleanupIncomplete)
		if firstErr == nil {
			firstErr = sweepErr
		} else {
			s.run.AddWarning(fmt.Sprintf("cleanup incomplete: %v", sweepErr))
		}
	}

	dir, werr := s.writeArtifacts(teardownCtx, s.results, collected)
	if werr != nil {
		s.log.Info("failed to write artifacts", "error", werr.Error())
	}

	printRunSummary(s.run, s.results, dir)
	return firstErr
}

// runPhases walks setup, verification, and workload, stopping at the
// first failure after recording its outcome.
func runPhases(ctx context.Context, s *session) error {
	octx := orchestration.NewContext(ctx, s.cfg, s.exec, s.run, s.log)
	if err := orchestration.NewRunner(orchestration.TargetStages()).Run(octx); err != nil {
		// Stages verify through the probe, so a stage error can carry
		// a mismatch as its root cause.
		failVerification(s.run, err)
		return err
	}

	prober := probe.New(s.exec, s.cfg, s.timeouts.Command)
	if err := prober.VerifyAll(ctx); err != nil {
		failVerification(s.run, err)
		return err
	}

	driver := workload.NewDriver(s.exec, s.cfg, s.timeouts, s.log)
	results, err := driver.Run(ctx, s.cfg.Workload.Jobs)
	s.results = results
	if err != nil {
		s.run.Fail(report.OutcomeWorkloadFailed)
		return err
	}
	return nil
}
