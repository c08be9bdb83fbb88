package orchestration

import (
	"fmt"
	"strings"

	"github.com/fabriclab/fabtest/internal/remote"
)

// CommandFailed reports a remote command that ran to completion but
// exited nonzero during a stage. Transport problems are not wrapped in
// this type; they surface as remote.ErrUnreachable or remote.ErrTimeout.
type CommandFailed struct {
	Stage  string
	Result *remote.CommandResult
}

func (e *CommandFailed) Error() string {
	msg := fmt.Sprintf("stage %s: %q exited %d on %s", e.Stage, e.Result.Command, e.Result.ExitCode, e.Result.Host)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}
