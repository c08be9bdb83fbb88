package config

import (
	"os"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Command    time.Duration // Per-command bound for ordinary stage commands
	Workload   time.Duration // Extra headroom added on top of a job's runtime
	Cleanup    time.Duration // Per-command bound during teardown
	LogCollect time.Duration // Bound for diagnostic log collection

	DeviceRetryDelay time.Duration // Initial delay of the device discovery loop
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - FABTEST_TIMEOUT_COMMAND (default: 2m)
//   - FABTEST_TIMEOUT_WORKLOAD (default: 5m)
//   - FABTEST_TIMEOUT_CLEANUP (default: 1m)
//   - FABTEST_TIMEOUT_LOG_COLLECT (default: 30s)
//   - FABTEST_DEVICE_RETRY_DELAY (default: 2s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Command:          parseDuration("FABTEST_TIMEOUT_COMMAND", 2*time.Minute),
		Workload:         parseDuration("FABTEST_TIMEOUT_WORKLOAD", 5*time.Minute),
		Cleanup:          parseDuration("FABTEST_TIMEOUT_CLEANUP", 1*time.Minute),
		LogCollect:       parseDuration("FABTEST_TIMEOUT_LOG_COLLECT", 30*time.Second),
		DeviceRetryDelay: parseDuration("FABTEST_DEVICE_RETRY_DELAY", 2*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}
