// Package orchestration runs the ordered target setup stages and rolls
// them back on failure. Stages mutate the kernel nvmet configfs tree
// over the remote executor and record every created object in the
// resource tree.
package orchestration

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/probe"
	"github.com/fabriclab/fabtest/internal/remote"
	"github.com/fabriclab/fabtest/internal/report"
	"github.com/fabriclab/fabtest/internal/resource"
)

// Context wraps all dependencies and state needed by a stage. The Probe
// confirms each created object on the target before the stage marks its
// node active.
type Context struct {
	context.Context
	Config   *config.Config
	Tree     *resource.Tree
	Run      *report.TestRun
	Exec     remote.Executor
	Probe    *probe.Prober
	Observer Observer
	Timeouts *config.Timeouts
}

// NewContext creates a new orchestration context with a fresh resource
// tree and env-derived timeouts.
func NewContext(ctx context.Context, cfg *config.Config, exec remote.Executor, run *report.TestRun, log logr.Logger) *Context {
	timeouts := config.LoadTimeouts()
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Tree:     resource.NewTree(),
		Run:      run,
		Exec:     exec,
		Probe:    probe.New(exec, cfg, timeouts.Command),
		Observer: NewConsoleObserver(log),
		Timeouts: timeouts,
	}
}
