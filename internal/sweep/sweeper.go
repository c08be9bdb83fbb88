// Package sweep implements state-blind, idempotent teardown of the
// remote nvmet configuration. It deliberately ignores the in-memory
// resource tree: after a crash and re-invocation the tree is empty, but
// the kernel objects are not. Discovery enumerates what actually exists
// and every teardown action treats "already absent" as success.
package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/nvmet"
	"github.com/fabriclab/fabtest/internal/remote"
)

// Incomplete reports objects that survived a sweep.
type Incomplete struct {
	Nodes []string
}

func (e *Incomplete) Error() string {
	return fmt.Sprintf("cleanup incomplete, %d objects remain: %s",
		len(e.Nodes), strings.Join(e.Nodes, ", "))
}

// Summary counts what one sweep removed, by category.
type Summary struct {
	Bindings   int
	Namespaces int
	Subsystems int
	Ports      int

	// Failed lists objects whose teardown action failed.
	Failed []string
}

// Removed is the total number of objects torn down.
func (s *Summary) Removed() int {
	return s.Bindings + s.Namespaces + s.Subsystems + s.Ports
}

// Sweeper tears down whatever nvmet objects exist on the target host.
type Sweeper struct {
	exec    remote.Executor
	timeout time.Duration
}

// New creates a sweeper with the given per-command timeout.
func New(exec remote.Executor, timeout time.Duration) *Sweeper {
	return &Sweeper{exec: exec, timeout: timeout}
}

// Sweep removes all discovered objects in the mandatory category order:
// unbind bindings, disable namespaces, remove namespaces, remove
// subsystems, remove ports. A clean host yields a zero Summary and no
// error. Partial failure returns the summary alongside an Incomplete
// error; earlier categories are still processed.
func (s *Sweeper) Sweep(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	bindings, err := s.list(ctx, nvmet.ConfigFSRoot+"/ports/*/subsystems/*")
	if err != nil {
		return summary, err
	}
	for _, path := range bindings {
		if s.remove(ctx, summary, path, fmt.Sprintf("[ ! -L %s ] || unlink %s", path, path)) {
			summary.Bindings++
		}
	}

	namespaces, err := s.list(ctx, nvmet.ConfigFSRoot+"/subsystems/*/namespaces/*")
	if err != nil {
		return summary, err
	}
	// Disable first, then remove, so the kernel releases the backends
	// before the directories go away.
	for _, path := range namespaces {
		s.run(ctx, fmt.Sprintf("[ ! -f %s/enable ] || echo 0 > %s/enable", path, path))
	}
	for _, path := range namespaces {
		if s.remove(ctx, summary, path, fmt.Sprintf("[ ! -d %s ] || rmdir %s", path, path)) {
			summary.Namespaces++
		}
	}

	subsystems, err := s.list(ctx, nvmet.ConfigFSRoot+"/subsystems/*")
	if err != nil {
		return summary, err
	}
	for _, path := range subsystems {
		if s.remove(ctx, summary, path, fmt.Sprintf("[ ! -d %s ] || rmdir %s", path, path)) {
			summary.Subsystems++
		}
	}

	ports, err := s.list(ctx, nvmet.ConfigFSRoot+"/ports/*")
	if err != nil {
		return summary, err
	}
	for _, path := range ports {
		if s.remove(ctx, summary, path, fmt.Sprintf("[ ! -d %s ] || rmdir %s", path, path)) {
			summary.Ports++
		}
	}

	if len(summary.Failed) > 0 {
		return summary, &Incomplete{Nodes: summary.Failed}
	}
	return summary, nil
}

// list expands a configfs glob on the target. A glob with no matches is
// an empty listing, not an error.
func (s *Sweeper) list(ctx context.Context, pattern string) ([]string, error) {
	cmd := fmt.Sprintf("ls -1d %s 2>/dev/null", pattern)
	result, err := s.exec.Execute(ctx, config.RoleTarget, cmd, s.timeout)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		// An unexpanded glob means nothing matched.
		if line == "" || strings.Contains(line, "*") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, nil
}

// remove runs a teardown action and reports whether the object was
// actually removed. Failures are collected, not fatal.
func (s *Sweeper) remove(ctx context.Context, summary *Summary, path, command string) bool {
	result, err := s.exec.Execute(ctx, config.RoleTarget, command, s.timeout)
	if err != nil || !result.OK() {
		summary.Failed = append(summary.Failed, path)
		return false
	}
	return true
}

// run executes a best-effort command whose failure is acceptable.
func (s *Sweeper) run(ctx context.Context, command string) {
	_, _ = s.exec.Execute(ctx, config.RoleTarget, command, s.timeout)
}
