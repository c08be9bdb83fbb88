// Package workload drives I/O against the exported subsystem from the
// initiator host: discover, connect, locate the local device, run fio
// jobs, disconnect. Connection teardown is best-effort even when a step
// in the middle fails.
package workload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/remote"
	"github.com/fabriclab/fabtest/internal/util/retry"
)

// Failure reports an aborted workload phase.
type Failure struct {
	Job    string
	Reason string
	Err    error
}

func (e *Failure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workload failure in %s: %s: %v", e.Job, e.Reason, e.Err)
	}
	return fmt.Sprintf("workload failure in %s: %s", e.Job, e.Reason)
}

func (e *Failure) Unwrap() error {
	return e.Err
}

// Driver runs the initiator-side sequence against one target.
type Driver struct {
	exec     remote.Executor
	cfg      *config.Config
	timeouts *config.Timeouts
	policy   retry.Policy
	log      logr.Logger

	device    string
	connected bool
}

// NewDriver creates a driver whose device-discovery retry policy comes
// from the workload configuration.
func NewDriver(exec remote.Executor, cfg *config.Config, timeouts *config.Timeouts, log logr.Logger) *Driver {
	delay := timeouts.DeviceRetryDelay
	if d, err := time.ParseDuration(cfg.Workload.DeviceRetryDelay); err == nil && d > 0 {
		delay = d
	}

	return &Driver{
		exec:     exec,
		cfg:      cfg,
		timeouts: timeouts,
		log:      log,
		policy: retry.Policy{
			MaxAttempts:  cfg.Workload.DeviceRetries,
			InitialDelay: delay,
			MaxDelay:     delay,
			Multiplier:   1.0,
		},
	}
}

// Device returns the local block device handle found after connect.
func (d *Driver) Device() string {
	return d.device
}

// Run executes the full workload sequence and returns the per-job
// results gathered before any failure.
func (d *Driver) Run(ctx context.Context, jobs []config.Job) ([]Result, error) {
	if err := d.discover(ctx); err != nil {
		return nil, err
	}
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	defer d.disconnect(ctx)

	if err := d.findDevice(ctx); err != nil {
		return nil, err
	}

	var results []Result
	for _, job := range jobs {
		d.log.Info("running fio job", "job", job.Name, "rw", job.RW, "bs", job.BlockSize)
		result, err := d.runJob(ctx, job)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// discover checks that the target advertises the expected subsystem.
func (d *Driver) discover(ctx context.Context) error {
	cmd := fmt.Sprintf("nvme discover -t tcp -a %s -s %s", d.cfg.DataIP, d.cfg.ServicePort)
	result, err := d.exec.Execute(ctx, config.RoleInitiator, cmd, d.timeouts.Command)
	if err != nil {
		return &Failure{Job: "discover", Reason: "discovery command failed", Err: err}
	}
	if !result.OK() {
		return &Failure{Job: "discover", Reason: fmt.Sprintf("nvme discover exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))}
	}
	if !strings.Contains(result.Stdout, d.cfg.SubsystemNQN) {
		return &Failure{Job: "discover", Reason: fmt.Sprintf("subsystem %s not advertised at %s:%s", d.cfg.SubsystemNQN, d.cfg.DataIP, d.cfg.ServicePort)}
	}
	d.log.Info("target discovered", "nqn", d.cfg.SubsystemNQN)
	return nil
}

// connect establishes the NVMe-TCP connection to the subsystem.
func (d *Driver) connect(ctx context.Context) error {
	cmd := fmt.Sprintf("nvme connect -t tcp -n %s -a %s -s %s", d.cfg.SubsystemNQN, d.cfg.DataIP, d.cfg.ServicePort)
	result, err := d.exec.Execute(ctx, config.RoleInitiator, cmd, d.timeouts.Command)
	if err != nil {
		return &Failure{Job: "connect", Reason: "connect command failed", Err: err}
	}
	if !result.OK() {
		return &Failure{Job: "connect", Reason: fmt.Sprintf("nvme connect exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))}
	}
	d.connected = true
	return nil
}

// findDevice locates the local block device for the new connection.
// The handle may not be enumerable immediately after connect, so the
// lookup retries under the bounded policy.
func (d *Driver) findDevice(ctx context.Context) error {
	cmd := "nvme list | grep tcp | head -1 | awk '{print $1}'"

	err := d.policy.Do(ctx, func() error {
		result, execErr := d.exec.Execute(ctx, config.RoleInitiator, cmd, d.timeouts.Command)
		if execErr != nil {
			return execErr
		}
		device := strings.TrimSpace(result.Stdout)
		if device == "" {
			return fmt.Errorf("connected device not yet listed")
		}
		d.device = device
		return nil
	})

	if err != nil {
		return &Failure{
			Job:    "device-discovery",
			Reason: fmt.Sprintf("exhausted %d retries waiting for device", d.policy.MaxAttempts),
			Err:    err,
		}
	}

	d.log.Info("connected device found", "device", d.device)
	return nil
}

// disconnect tears the connection down. Failures are logged, never
// returned: the target-side teardown must still proceed.
func (d *Driver) disconnect(ctx context.Context) {
	if !d.connected {
		return
	}
	cmd := fmt.Sprintf("nvme disconnect -n %s", d.cfg.SubsystemNQN)
	result, err := d.exec.Execute(ctx, config.RoleInitiator, cmd, d.timeouts.Command)
	switch {
	case err != nil:
		d.log.Info("disconnect failed", "error", err.Error())
	case !result.OK():
		d.log.Info("disconnect exited nonzero", "exit_code", result.ExitCode, "stderr", strings.TrimSpace(result.Stderr))
	default:
		d.connected = false
	}
}
