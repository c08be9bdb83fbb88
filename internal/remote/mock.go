package remote

import (
	"context"
	"sync"
	"time"
)

// Call records one Execute invocation on a Mock.
type Call struct {
	Host    string
	Command string
	Timeout time.Duration
}

// Mock is a scriptable Executor for tests. Handler decides the outcome of
// each command; when nil, every command succeeds with empty output.
type Mock struct {
	mu      sync.Mutex
	calls   []Call
	Handler func(host, command string) (*CommandResult, error)
}

// Execute records the call and delegates to Handler. A canceled context
// fails before the command runs, like a real transport would.
func (m *Mock) Execute(ctx context.Context, host, command string, timeout time.Duration) (*CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{Host: host, Command: command, Timeout: timeout})
	m.mu.Unlock()

	if m.Handler != nil {
		return m.Handler(host, command)
	}
	return &CommandResult{Host: host, Command: command}, nil
}

// Calls returns a copy of the recorded invocations in order.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Commands returns just the command strings, in invocation order.
func (m *Mock) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.Command)
	}
	return out
}
