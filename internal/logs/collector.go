// Package logs gathers kernel diagnostics from the lab hosts after a
// run. Collection is best-effort: a host that cannot produce its log
// tail yields a warning, never a failed run.
package logs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/fabriclab/fabtest/internal/remote"
)

// Tail is the diagnostic log tail of one host.
type Tail struct {
	Host    string
	Content string
}

// Collector fetches a fixed-size tail of kernel messages per host.
type Collector struct {
	exec    remote.Executor
	lines   int
	timeout time.Duration
	log     logr.Logger
}

// New creates a collector that fetches the last n kernel log lines.
func New(exec remote.Executor, lines int, timeout time.Duration, log logr.Logger) *Collector {
	return &Collector{exec: exec, lines: lines, timeout: timeout, log: log}
}

// Collect fetches the kernel log tail from one host.
func (c *Collector) Collect(ctx context.Context, host string) (*Tail, error) {
	cmd := fmt.Sprintf("dmesg | tail -n %d", c.lines)
	result, err := c.exec.Execute(ctx, host, cmd, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to collect logs from %s: %w", host, err)
	}
	if !result.OK() {
		return nil, fmt.Errorf("dmesg exited %d on %s", result.ExitCode, host)
	}
	return &Tail{Host: host, Content: result.Stdout}, nil
}

// CollectAll fetches tails from every host, skipping failures with a
// warning. The returned slice holds whatever was collected.
func (c *Collector) CollectAll(ctx context.Context, hosts ...string) []*Tail {
	var tails []*Tail
	for _, host := range hosts {
		tail, err := c.Collect(ctx, host)
		if err != nil {
			c.log.Info("log collection failed", "host", host, "error", err.Error())
			continue
		}
		tails = append(tails, tail)
	}
	return tails
}
