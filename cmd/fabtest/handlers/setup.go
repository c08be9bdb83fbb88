package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabriclab/fabtest/internal/orchestration"
	"github.com/fabriclab/fabtest/internal/probe"
	"github.com/fabriclab/fabtest/internal/report"
	"github.com/fabriclab/fabtest/internal/sweep"
)

// Setup provisions the NVMe-oF export on the target host and verifies
// the resulting configuration. Any failure sweeps the target clean
// after rollback: rollback is best-effort, so the sweeper runs as the
// final safety net.
func Setup(ctx context.Context, configPath string) error {
	s, err := newSession(configPath, "setup")
	if err != nil {
		return err
	}

	octx := orchestration.NewContext(ctx, s.cfg, s.exec, s.run, s.log)
	if err := orchestration.NewRunner(orchestration.TargetStages()).Run(octx); err != nil {
		return s.failSetup(ctx, err)
	}

	prober := probe.New(s.exec, s.cfg, s.timeouts.Command)
	if err := prober.VerifyAll(ctx); err != nil {
		return s.failSetup(ctx, err)
	}

	dir, err := s.writeArtifacts(ctx, nil, nil)
	if err != nil {
		return err
	}

	fmt.Printf("\nSetup complete: %s exported at %s:%s\n", s.cfg.SubsystemNQN, s.cfg.DataIP, s.cfg.ServicePort)
	fmt.Printf("Artifacts: %s\n", dir)
	return nil
}

// failSetup records the failure outcome, sweeps whatever the failed
// setup left on the target, and writes artifacts.
func (s *session) failSetup(ctx context.Context, err error) error {
	failVerification(s.run, err)
	s.sweepAfterFailure(ctx)
	if _, werr := s.writeArtifacts(ctx, nil, nil); werr != nil {
		s.log.Info("failed to write artifacts", "error", werr.Error())
	}
	return err
}

// sweepAfterFailure clears any partial export left behind. Detached
// from the caller's cancellation like the full-run teardown.
func (s *session) sweepAfterFailure(ctx context.Context) {
	teardownCtx := context.WithoutCancel(ctx)
	summary, err := sweep.New(s.exec, s.timeouts.Cleanup).Sweep(teardownCtx)
	s.run.SetCleanup(err == nil, summary.Removed())
	if err != nil {
		s.run.AddWarning(fmt.Sprintf("cleanup incomplete: %v", err))
	}
}

// failVerification classifies a setup or verification error on the run
// record: a probe mismatch is a verification failure, anything else a
// setup failure.
func failVerification(run *report.TestRun, err error) {
	var mismatch *probe.Mismatch
	if errors.As(err, &mismatch) {
		run.Fail(report.OutcomeVerifyMismatch)
		return
	}
	run.Fail(report.OutcomeSetupFailed)
}
