package remote

import (
	"context"
	"time"
)

// Sink receives every command result for later diagnosis.
// Implemented by report.TestRun.
type Sink interface {
	Record(result *CommandResult)
}

// Recorder decorates an Executor so that every invocation, successful or
// not, is appended to the sink. Transport failures are recorded as a
// synthetic result with exit code -1.
type Recorder struct {
	next Executor
	sink Sink
}

// NewRecorder wraps an executor with a recording sink.
func NewRecorder(next Executor, sink Sink) *Recorder {
	return &Recorder{next: next, sink: sink}
}

// Execute runs the command through the wrapped executor and records the
// outcome before returning it.
func (r *Recorder) Execute(ctx context.Context, host, command string, timeout time.Duration) (*CommandResult, error) {
	start := time.Now()
	result, err := r.next.Execute(ctx, host, command, timeout)

	if result != nil {
		r.sink.Record(result)
	} else if err != nil {
		r.sink.Record(&CommandResult{
			Host:     host,
			Command:  command,
			ExitCode: -1,
			Stderr:   err.Error(),
			Elapsed:  time.Since(start),
		})
	}

	return result, err
}
