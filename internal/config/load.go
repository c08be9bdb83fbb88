package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Lab defaults matching the usual nvmet-tcp test bed.
const (
	DefaultBackendDevice  = "/dev/nvme0n1"
	DefaultServicePort    = "4420"
	DefaultSubsystemNQN   = "nqn.2026-01.lab:nvme:target1"
	DefaultPortID         = "1"
	DefaultNamespaceCount = 1
	DefaultArtifactsDir   = "fabtest-runs"
	DefaultLogTailLines   = 100
	DefaultDeviceRetries  = 5
	DefaultRetryDelay     = "2s"
)

// DefaultJobs is the standard workload suite: one sequential pass over
// the first gigabyte, then three timed 4k patterns.
func DefaultJobs() []Job {
	return []Job{
		{Name: "seq_read", RW: "read", BlockSize: "1M", Size: "1G"},
		{Name: "rand_read", RW: "randread", BlockSize: "4k", Runtime: 60},
		{Name: "rand_write", RW: "randwrite", BlockSize: "4k", Runtime: 60},
		{Name: "randrw", RW: "randrw", BlockSize: "4k", Runtime: 60, MixRatio: 50},
	}
}

// LoadFile reads, decodes, defaults, and validates a configuration file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Load(data)
}

// Load decodes a YAML document into a validated Config.
func Load(data []byte) (*Config, error) {
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BackendDevice == "" {
		cfg.BackendDevice = DefaultBackendDevice
	}
	if cfg.ServicePort == "" {
		cfg.ServicePort = DefaultServicePort
	}
	if cfg.SubsystemNQN == "" {
		cfg.SubsystemNQN = DefaultSubsystemNQN
	}
	if cfg.PortID == "" {
		cfg.PortID = DefaultPortID
	}
	if cfg.NamespaceCount == 0 {
		cfg.NamespaceCount = DefaultNamespaceCount
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = DefaultArtifactsDir
	}
	if cfg.Artifacts.LogTailLines == 0 {
		cfg.Artifacts.LogTailLines = DefaultLogTailLines
	}
	if cfg.Workload.DeviceRetries == 0 {
		cfg.Workload.DeviceRetries = DefaultDeviceRetries
	}
	if cfg.Workload.DeviceRetryDelay == "" {
		cfg.Workload.DeviceRetryDelay = DefaultRetryDelay
	}
	if len(cfg.Workload.Jobs) == 0 {
		cfg.Workload.Jobs = DefaultJobs()
	}
}
