package workload

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fabriclab/fabtest/internal/config"
)

// Stats summarizes one direction of a fio job.
type Stats struct {
	Bytes         int64   `json:"io_bytes" yaml:"bytes"`
	BandwidthKiBs float64 `json:"bw" yaml:"bandwidth_kib_s"`
	IOPS          float64 `json:"iops" yaml:"iops"`
}

// BandwidthMBs converts fio's KiB/s bandwidth to MB/s for summaries.
func (s Stats) BandwidthMBs() float64 {
	return s.BandwidthKiBs / 1024
}

// Result holds the parsed outcome of one fio job.
type Result struct {
	Job    string          `yaml:"job"`
	Device string          `yaml:"device"`
	Read   Stats           `yaml:"read"`
	Write  Stats           `yaml:"write"`
	Raw    json.RawMessage `yaml:"-"`
}

// fioOutput mirrors the parts of fio's JSON output the driver reads.
type fioOutput struct {
	Jobs []struct {
		Jobname string `json:"jobname"`
		Read    Stats  `json:"read"`
		Write   Stats  `json:"write"`
	} `json:"jobs"`
}

// FioCommand renders the fio invocation for a job against a device.
func FioCommand(job config.Job, device string) string {
	parts := []string{
		fmt.Sprintf("fio --name=%s", job.Name),
		fmt.Sprintf("--filename=%s", device),
		fmt.Sprintf("--rw=%s", job.RW),
		fmt.Sprintf("--bs=%s", job.BlockSize),
		"--direct=1",
		"--output-format=json",
	}
	if job.Size != "" {
		parts = append(parts, fmt.Sprintf("--size=%s", job.Size))
	}
	if job.Runtime > 0 {
		parts = append(parts, fmt.Sprintf("--runtime=%d", job.Runtime), "--time_based")
	}
	if job.MixRatio > 0 && job.RW == "randrw" {
		parts = append(parts, fmt.Sprintf("--rwmixread=%d", job.MixRatio))
	}
	return strings.Join(parts, " ")
}

// runJob executes one fio job on the connected device and parses its
// JSON output.
func (d *Driver) runJob(ctx context.Context, job config.Job) (Result, error) {
	cmd := FioCommand(job, d.device)

	timeout := d.timeouts.Workload
	if job.Runtime > 0 {
		timeout += time.Duration(job.Runtime) * time.Second
	}

	result, err := d.exec.Execute(ctx, config.RoleInitiator, cmd, timeout)
	if err != nil {
		return Result{}, &Failure{Job: job.Name, Reason: "fio execution failed", Err: err}
	}
	if !result.OK() {
		return Result{}, &Failure{Job: job.Name, Reason: fmt.Sprintf("fio exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))}
	}

	var parsed fioOutput
	if err := json.Unmarshal([]byte(result.Stdout), &parsed); err != nil {
		return Result{}, &Failure{Job: job.Name, Reason: "failed to parse fio output", Err: err}
	}
	if len(parsed.Jobs) == 0 {
		return Result{}, &Failure{Job: job.Name, Reason: "fio output contains no jobs"}
	}

	return Result{
		Job:    job.Name,
		Device: d.device,
		Read:   parsed.Jobs[0].Read,
		Write:  parsed.Jobs[0].Write,
		Raw:    json.RawMessage(result.Stdout),
	}, nil
}
