// Package config defines the immutable run configuration and its YAML
// loader. Every stage reads its parameters from here; nothing is read
// back from remote state.
package config

import (
	"fmt"
	"strings"
)

// Host role names, used to address hosts through the executor.
const (
	RoleTarget    = "target"
	RoleInitiator = "initiator"
)

// Config holds the full configuration for one orchestration run.
// It is populated once at start and never mutated afterwards.
type Config struct {
	// Scenario is a free-form identifier stamped on the run's artifacts.
	Scenario string `mapstructure:"scenario" yaml:"scenario"`

	Target    Host `mapstructure:"target" yaml:"target"`
	Initiator Host `mapstructure:"initiator" yaml:"initiator"`

	// BackendDevice is the block device exported by the target.
	BackendDevice string `mapstructure:"backend_device" yaml:"backend_device"`

	// DataIP is the fabric-facing address the target listens on. It is
	// usually a different interface than the management address SSH uses.
	DataIP string `mapstructure:"data_ip" yaml:"data_ip"`

	// ServicePort is the NVMe-TCP service id (port number as string).
	ServicePort string `mapstructure:"service_port" yaml:"service_port"`

	// SubsystemNQN is the qualified name of the exported subsystem.
	SubsystemNQN string `mapstructure:"subsystem_nqn" yaml:"subsystem_nqn"`

	// NamespaceCount is how many namespaces to create on the subsystem.
	NamespaceCount int `mapstructure:"namespace_count" yaml:"namespace_count"`

	// PortID is the nvmet port identifier.
	PortID string `mapstructure:"port_id" yaml:"port_id"`

	Workload  Workload  `mapstructure:"workload" yaml:"workload"`
	Artifacts Artifacts `mapstructure:"artifacts" yaml:"artifacts"`
}

// Host describes how to reach one lab machine over SSH.
type Host struct {
	Address string `mapstructure:"address" yaml:"address"`
	User    string `mapstructure:"user" yaml:"user"`
	Port    int    `mapstructure:"port" yaml:"port,omitempty"`
	KeyFile string `mapstructure:"key_file" yaml:"key_file"`
}

// Workload configures the initiator-side I/O phase.
type Workload struct {
	// Jobs lists the fio jobs to run. Empty means the default suite.
	Jobs []Job `mapstructure:"jobs" yaml:"jobs,omitempty"`

	// DeviceRetries bounds the post-connect device discovery loop.
	DeviceRetries int `mapstructure:"device_retries" yaml:"device_retries"`

	// DeviceRetryDelay is the backoff between discovery attempts,
	// as a Go duration string (e.g. "2s").
	DeviceRetryDelay string `mapstructure:"device_retry_delay" yaml:"device_retry_delay"`
}

// Job is one fio workload description.
type Job struct {
	Name      string `mapstructure:"name" yaml:"name"`
	RW        string `mapstructure:"rw" yaml:"rw"`
	BlockSize string `mapstructure:"block_size" yaml:"block_size"`
	Size      string `mapstructure:"size" yaml:"size,omitempty"`
	Runtime   int    `mapstructure:"runtime" yaml:"runtime,omitempty"`
	// MixRatio is the read percentage for mixed workloads (fio rwmixread).
	MixRatio int `mapstructure:"mix_ratio" yaml:"mix_ratio,omitempty"`
}

// Artifacts configures where run output lands.
type Artifacts struct {
	// Dir is the parent directory for per-run artifact directories.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// LogTailLines is how many kernel log lines to collect per host.
	LogTailLines int `mapstructure:"log_tail_lines" yaml:"log_tail_lines"`

	S3 S3 `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3 configures optional upload of run artifacts to an S3-compatible
// object store.
type S3 struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Region    string `mapstructure:"region" yaml:"region,omitempty"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
}

// validRW lists the fio rw modes the driver accepts.
var validRW = map[string]bool{
	"read":      true,
	"write":     true,
	"randread":  true,
	"randwrite": true,
	"randrw":    true,
}

// Validate checks the configuration for the fields every command needs.
func (c *Config) Validate() error {
	var problems []string

	if c.Target.Address == "" {
		problems = append(problems, "target.address is required")
	}
	if c.Initiator.Address == "" {
		problems = append(problems, "initiator.address is required")
	}
	if c.Target.User == "" {
		problems = append(problems, "target.user is required")
	}
	if c.Initiator.User == "" {
		problems = append(problems, "initiator.user is required")
	}
	if c.SubsystemNQN == "" {
		problems = append(problems, "subsystem_nqn is required")
	}
	if !strings.HasPrefix(c.SubsystemNQN, "nqn.") {
		problems = append(problems, fmt.Sprintf("subsystem_nqn %q must start with nqn.", c.SubsystemNQN))
	}
	if c.DataIP == "" {
		problems = append(problems, "data_ip is required")
	}
	if c.NamespaceCount < 1 {
		problems = append(problems, "namespace_count must be at least 1")
	}
	for _, j := range c.Workload.Jobs {
		if j.Name == "" {
			problems = append(problems, "workload job name is required")
		}
		if !validRW[j.RW] {
			problems = append(problems, fmt.Sprintf("workload job %q: unknown rw mode %q", j.Name, j.RW))
		}
		if j.Size == "" && j.Runtime == 0 {
			problems = append(problems, fmt.Sprintf("workload job %q: size or runtime is required", j.Name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
