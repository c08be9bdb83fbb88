package orchestration

import (
	"fmt"
	"time"

	"github.com/fabriclab/fabtest/internal/report"
)

// Stage defines one step of target setup.
type Stage interface {
	// Name returns the stage's name as it appears in reports.
	Name() string

	// Apply executes the stage.
	Apply(ctx *Context) error

	// Rollback undoes the stage's effects. Called only for stages whose
	// Apply succeeded, in reverse order. Shared facilities (kernel
	// modules, the configfs mount) roll back as no-ops.
	Rollback(ctx *Context) error
}

// Runner executes stages in order and rolls back completed ones when a
// later stage fails.
type Runner struct {
	stages []Stage
}

// NewRunner creates a runner over an ordered stage list.
func NewRunner(stages []Stage) *Runner {
	return &Runner{stages: stages}
}

// Run applies every stage in order. When stage k fails, stages 1..k-1
// are rolled back in reverse and the stage's error is returned; the
// failed stage itself is never rolled back.
func (r *Runner) Run(ctx *Context) error {
	start := time.Now()
	ctx.Observer.Printf("Starting setup with %d stages...", len(r.stages))

	for i, stage := range r.stages {
		stageStart := time.Now()
		LogStageStart(ctx.Observer, stage.Name())

		if err := stage.Apply(ctx); err != nil {
			elapsed := time.Since(stageStart)
			LogStageFailed(ctx.Observer, stage.Name(), err)
			ctx.Run.AddStage(report.StageRecord{
				Name:    stage.Name(),
				Status:  report.StageFailed,
				Error:   err.Error(),
				Elapsed: elapsed,
			})
			r.rollback(ctx, i)
			return fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}

		elapsed := time.Since(stageStart)
		LogStageComplete(ctx.Observer, stage.Name(), elapsed)
		ctx.Run.AddStage(report.StageRecord{
			Name:    stage.Name(),
			Status:  report.StageOK,
			Elapsed: elapsed,
		})
	}

	ctx.Observer.Printf("Setup completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// rollback undoes stages before index failed, last first. Rollback
// errors are recorded as warnings and never stop the walk.
func (r *Runner) rollback(ctx *Context, failed int) {
	for i := failed - 1; i >= 0; i-- {
		stage := r.stages[i]
		if err := stage.Rollback(ctx); err != nil {
			ctx.Observer.Event(Event{
				Type:    EventWarning,
				Stage:   stage.Name(),
				Message: fmt.Sprintf("rollback failed: %v", err),
			})
			ctx.Run.AddWarning(fmt.Sprintf("rollback of %s failed: %v", stage.Name(), err))
			continue
		}
		LogStageRolledBack(ctx.Observer, stage.Name())
		ctx.Run.MarkRolledBack(stage.Name())
	}
}
