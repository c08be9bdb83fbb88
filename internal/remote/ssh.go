package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"

	platformssh "github.com/fabriclab/fabtest/internal/platform/ssh"
)

// SSHExecutor implements Executor over SSH. Hosts are registered by name;
// each Execute dials a fresh connection, runs the command in a single
// session, and closes the connection.
type SSHExecutor struct {
	clients map[string]*platformssh.Client
}

// NewSSHExecutor creates an executor with no registered hosts.
func NewSSHExecutor() *SSHExecutor {
	return &SSHExecutor{clients: make(map[string]*platformssh.Client)}
}

// AddHost registers a host under the given name.
func (e *SSHExecutor) AddHost(name string, client *platformssh.Client) {
	e.clients[name] = client
}

// Execute runs the command on the named host. Transport failures wrap
// ErrUnreachable; a missed deadline wraps ErrTimeout. A nonzero exit
// code is reported in the result, not as an error.
func (e *SSHExecutor) Execute(ctx context.Context, host, command string, timeout time.Duration) (*CommandResult, error) {
	client, ok := e.clients[host]
	if !ok {
		return nil, fmt.Errorf("%w: no such host %q", ErrUnreachable, host)
	}

	start := time.Now()

	conn, err := client.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = conn.Close() }()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		result *CommandResult
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, runErr := runSession(conn, host, command, start)
		ch <- outcome{r, runErr}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q on %s after %v", ErrTimeout, command, host, timeout)
		}
		return nil, ctx.Err()
	}
}

// runSession executes the command in a fresh session on an established
// connection, deriving the exit status from the SSH error type.
func runSession(conn *ssh.Client, host, command string, start time.Time) (*CommandResult, error) {
	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session on %s: %v", ErrUnreachable, host, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	runErr := session.Run(command)

	result := &CommandResult{
		Host:    host,
		Command: command,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}

	if runErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
		} else {
			// Session died without an exit status: treat as transport failure.
			return nil, fmt.Errorf("%w: %q on %s: %v", ErrUnreachable, command, host, runErr)
		}
	}

	return result, nil
}
