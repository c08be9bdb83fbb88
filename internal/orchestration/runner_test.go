package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/remote"
	"github.com/fabriclab/fabtest/internal/report"
)

// recordingStage notes apply and rollback calls in a shared trace.
type recordingStage struct {
	name     string
	failWith error

	rollbackErr error
	trace       *[]string
}

func (s *recordingStage) Name() string { return s.name }

func (s *recordingStage) Apply(*Context) error {
	*s.trace = append(*s.trace, "apply:"+s.name)
	return s.failWith
}

func (s *recordingStage) Rollback(*Context) error {
	*s.trace = append(*s.trace, "rollback:"+s.name)
	return s.rollbackErr
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	cfg := &config.Config{
		DataIP:         "192.168.1.49",
		ServicePort:    "4420",
		SubsystemNQN:   "nqn.2026-01.lab:nvme:target1",
		BackendDevice:  "/dev/nvme0n1",
		PortID:         "1",
		NamespaceCount: 1,
	}
	return NewContext(context.Background(), cfg, &remote.Mock{}, report.NewTestRun("test"), logr.Discard())
}

func TestRunner_AppliesInOrder(t *testing.T) {
	t.Parallel()

	var trace []string
	runner := NewRunner([]Stage{
		&recordingStage{name: "first", trace: &trace},
		&recordingStage{name: "second", trace: &trace},
		&recordingStage{name: "third", trace: &trace},
	})

	ctx := newTestContext(t)
	require.NoError(t, runner.Run(ctx))
	assert.Equal(t, []string{"apply:first", "apply:second", "apply:third"}, trace)

	require.Len(t, ctx.Run.Stages, 3)
	for _, record := range ctx.Run.Stages {
		assert.Equal(t, report.StageOK, record.Status)
	}
}

func TestRunner_RollsBackCompletedStagesInReverse(t *testing.T) {
	t.Parallel()

	boom := errors.New("mkdir failed")
	var trace []string
	runner := NewRunner([]Stage{
		&recordingStage{name: "a", trace: &trace},
		&recordingStage{name: "b", trace: &trace},
		&recordingStage{name: "c", trace: &trace, failWith: boom},
		&recordingStage{name: "d", trace: &trace},
	})

	ctx := newTestContext(t)
	err := runner.Run(ctx)
	require.ErrorIs(t, err, boom)

	// Exactly the stages before the failed one unwind, last first. The
	// failed stage is never rolled back and later stages never run.
	assert.Equal(t, []string{
		"apply:a", "apply:b", "apply:c",
		"rollback:b", "rollback:a",
	}, trace)

	require.Len(t, ctx.Run.Stages, 3)
	assert.Equal(t, report.StageRolledBack, ctx.Run.Stages[0].Status)
	assert.Equal(t, report.StageRolledBack, ctx.Run.Stages[1].Status)
	assert.Equal(t, report.StageFailed, ctx.Run.Stages[2].Status)
	assert.Contains(t, ctx.Run.Stages[2].Error, "mkdir failed")
}

func TestRunner_FirstStageFailureRollsBackNothing(t *testing.T) {
	t.Parallel()

	var trace []string
	runner := NewRunner([]Stage{
		&recordingStage{name: "only", trace: &trace, failWith: errors.New("no modules")},
	})

	ctx := newTestContext(t)
	require.Error(t, runner.Run(ctx))
	assert.Equal(t, []string{"apply:only"}, trace)
}

func TestRunner_RollbackErrorIsWarningNotFailure(t *testing.T) {
	t.Parallel()

	var trace []string
	runner := NewRunner([]Stage{
		&recordingStage{name: "a", trace: &trace},
		&recordingStage{name: "b", trace: &trace, rollbackErr: errors.New("rmdir busy")},
		&recordingStage{name: "c", trace: &trace, failWith: errors.New("boom")},
	})

	ctx := newTestContext(t)
	require.Error(t, runner.Run(ctx))

	// The failed rollback of b does not stop a from unwinding.
	assert.Contains(t, trace, "rollback:a")
	require.NotEmpty(t, ctx.Run.Warnings)
	assert.Contains(t, ctx.Run.Warnings[0], "rollback of b failed")

	// b stays marked ok, not rolled back.
	assert.Equal(t, report.StageOK, ctx.Run.Stages[1].Status)
	assert.Equal(t, report.StageRolledBack, ctx.Run.Stages[0].Status)
}
