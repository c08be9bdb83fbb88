// Package remote defines the remote command execution boundary.
//
// An Executor runs a single shell command on a named host and returns a
// structured CommandResult. A nonzero exit code is not an executor error;
// callers decide whether it matters. Transport failures and timeouts are
// the only errors this layer produces. No retries happen here; retry
// policy belongs to callers.
package remote

import (
	"context"
	"errors"
	"time"
)

// Transport-level failures. Wrapped errors satisfy errors.Is against these.
var (
	// ErrUnreachable indicates the host could not be reached at all.
	ErrUnreachable = errors.New("host unreachable")

	// ErrTimeout indicates the command did not complete within its bound.
	ErrTimeout = errors.New("command timed out")
)

// CommandResult is the immutable record of one remote command execution.
type CommandResult struct {
	Host     string        `yaml:"host"`
	Command  string        `yaml:"command"`
	ExitCode int           `yaml:"exit_code"`
	Stdout   string        `yaml:"stdout,omitempty"`
	Stderr   string        `yaml:"stderr,omitempty"`
	Elapsed  time.Duration `yaml:"elapsed"`
}

// OK reports whether the command exited zero.
func (r *CommandResult) OK() bool {
	return r.ExitCode == 0
}

// Executor runs one command on one named host with a timeout.
type Executor interface {
	Execute(ctx context.Context, host, command string, timeout time.Duration) (*CommandResult, error)
}
