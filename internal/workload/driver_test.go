package workload

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/remote"
)

const fioJSON = `{
  "jobs": [
    {
      "jobname": "seq_read",
      "read": {"io_bytes": 1073741824, "bw": 524288, "iops": 512},
      "write": {"io_bytes": 0, "bw": 0, "iops": 0}
    }
  ]
}`

func testConfig() *config.Config {
	return &config.Config{
		Target:         config.Host{Address: "10.0.0.1", User: "root"},
		Initiator:      config.Host{Address: "10.0.0.2", User: "root"},
		DataIP:         "192.168.1.49",
		ServicePort:    "4420",
		SubsystemNQN:   "nqn.2026-01.lab:nvme:target1",
		BackendDevice:  "/dev/nvme0n1",
		PortID:         "1",
		NamespaceCount: 1,
		Workload: config.Workload{
			DeviceRetries:    5,
			DeviceRetryDelay: "1ms",
		},
	}
}

func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		Command:          time.Second,
		Workload:         time.Second,
		DeviceRetryDelay: time.Millisecond,
	}
}

// healthyInitiator simulates an initiator where everything works.
func healthyInitiator(host, command string) (*remote.CommandResult, error) {
	res := &remote.CommandResult{Host: host, Command: command}
	switch {
	case strings.HasPrefix(command, "nvme discover"):
		res.Stdout = "subnqn:  nqn.2026-01.lab:nvme:target1\n"
	case strings.HasPrefix(command, "nvme list"):
		res.Stdout = "/dev/nvme1n1\n"
	case strings.HasPrefix(command, "fio"):
		res.Stdout = fioJSON
	}
	return res, nil
}

func TestDriver_FullSequence(t *testing.T) {
	t.Parallel()

	mock := &remote.Mock{Handler: healthyInitiator}
	driver := NewDriver(mock, testConfig(), testTimeouts(), logr.Discard())

	jobs := []config.Job{{Name: "seq_read", RW: "read", BlockSize: "1M", Size: "1G"}}
	results, err := driver.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "seq_read", results[0].Job)
	assert.Equal(t, "/dev/nvme1n1", results[0].Device)
	assert.Equal(t, int64(1073741824), results[0].Read.Bytes)
	assert.InDelta(t, 512.0, results[0].Read.BandwidthMBs(), 0.01)

	commands := mock.Commands()
	require.GreaterOrEqual(t, len(commands), 4)
	assert.Contains(t, commands[0], "nvme discover")
	assert.Contains(t, commands[1], "nvme connect")
	assert.Contains(t, commands[len(commands)-1], "nvme disconnect")

	// All workload commands run on the initiator.
	for _, call := range mock.Calls() {
		assert.Equal(t, config.RoleInitiator, call.Host)
	}
}

func TestDriver_DiscoveryDoesNotAdvertiseSubsystem(t *testing.T) {
	t.Parallel()

	mock := &remote.Mock{Handler: func(host, command string) (*remote.CommandResult, error) {
		res := &remote.CommandResult{Host: host, Command: command}
		if strings.HasPrefix(command, "nvme discover") {
			res.Stdout = "subnqn:  nqn.other\n"
		}
		return res, nil
	}}
	driver := NewDriver(mock, testConfig(), testTimeouts(), logr.Discard())

	_, err := driver.Run(context.Background(), nil)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "discover", failure.Job)

	// Never connected, so no disconnect should have been attempted.
	for _, cmd := range mock.Commands() {
		assert.NotContains(t, cmd, "disconnect")
	}
}

func TestDriver_DeviceDiscoveryRetryCeiling(t *testing.T) {
	t.Parallel()

	listCalls := 0
	mock := &remote.Mock{Handler: func(host, command string) (*remote.CommandResult, error) {
		res := &remote.CommandResult{Host: host, Command: command}
		switch {
		case strings.HasPrefix(command, "nvme discover"):
			res.Stdout = "nqn.2026-01.lab:nvme:target1\n"
		case strings.HasPrefix(command, "nvme list"):
			listCalls++
			// device never appears
		}
		return res, nil
	}}
	driver := NewDriver(mock, testConfig(), testTimeouts(), logr.Discard())

	_, err := driver.Run(context.Background(), nil)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "device-discovery", failure.Job)
	assert.Contains(t, failure.Reason, "exhausted 5 retries")
	assert.Equal(t, 5, listCalls, "device lookup must stop at the retry ceiling")

	// Disconnect is still attempted after the mid-sequence failure.
	last := mock.Commands()[len(mock.Commands())-1]
	assert.Contains(t, last, "nvme disconnect")
}

func TestDriver_FioFailureAbortsButDisconnects(t *testing.T) {
	t.Parallel()

	mock := &remote.Mock{Handler: func(host, command string) (*remote.CommandResult, error) {
		res := &remote.CommandResult{Host: host, Command: command}
		switch {
		case strings.HasPrefix(command, "nvme discover"):
			res.Stdout = "nqn.2026-01.lab:nvme:target1\n"
		case strings.HasPrefix(command, "nvme list"):
			res.Stdout = "/dev/nvme1n1\n"
		case strings.HasPrefix(command, "fio"):
			res.ExitCode = 1
			res.Stderr = "io_u error"
		}
		return res, nil
	}}
	driver := NewDriver(mock, testConfig(), testTimeouts(), logr.Discard())

	jobs := []config.Job{{Name: "rand_write", RW: "randwrite", BlockSize: "4k", Runtime: 1}}
	results, err := driver.Run(context.Background(), jobs)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "rand_write", failure.Job)
	assert.Empty(t, results)

	last := mock.Commands()[len(mock.Commands())-1]
	assert.Contains(t, last, "nvme disconnect")
}

func TestFioCommand(t *testing.T) {
	t.Parallel()

	cmd := FioCommand(config.Job{Name: "randrw", RW: "randrw", BlockSize: "4k", Runtime: 60, MixRatio: 70}, "/dev/nvme1n1")
	assert.Contains(t, cmd, "--name=randrw")
	assert.Contains(t, cmd, "--filename=/dev/nvme1n1")
	assert.Contains(t, cmd, "--runtime=60")
	assert.Contains(t, cmd, "--time_based")
	assert.Contains(t, cmd, "--rwmixread=70")
	assert.Contains(t, cmd, "--output-format=json")

	sized := FioCommand(config.Job{Name: "seq", RW: "read", BlockSize: "1M", Size: "10M"}, "/dev/nvme1n1")
	assert.Contains(t, sized, "--size=10M")
	assert.NotContains(t, sized, "--time_based")
	assert.NotContains(t, sized, "--rwmixread")
}

func TestDriver_ConnectTransportError(t *testing.T) {
	t.Parallel()

	mock := &remote.Mock{Handler: func(host, command string) (*remote.CommandResult, error) {
		if strings.HasPrefix(command, "nvme connect") {
			return nil, fmt.Errorf("%w: broken pipe", remote.ErrUnreachable)
		}
		res := &remote.CommandResult{Host: host, Command: command}
		if strings.HasPrefix(command, "nvme discover") {
			res.Stdout = "nqn.2026-01.lab:nvme:target1\n"
		}
		return res, nil
	}}
	driver := NewDriver(mock, testConfig(), testTimeouts(), logr.Discard())

	_, err := driver.Run(context.Background(), nil)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "connect", failure.Job)
	assert.ErrorIs(t, err, remote.ErrUnreachable)
}
