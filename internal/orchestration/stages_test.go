package orchestration

import (
	"context"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/probe"
	"github.com/fabriclab/fabtest/internal/remote"
	"github.com/fabriclab/fabtest/internal/report"
	"github.com/fabriclab/fabtest/internal/resource"
)

func stageConfig() *config.Config {
	return &config.Config{
		DataIP:         "192.168.1.49",
		ServicePort:    "4420",
		SubsystemNQN:   "nqn.2026-01.lab:nvme:target1",
		BackendDevice:  "/dev/nvme0n1",
		PortID:         "1",
		NamespaceCount: 1,
	}
}

func contextWithMock(t *testing.T, mock *remote.Mock) *Context {
	t.Helper()
	return NewContext(context.Background(), stageConfig(), mock, report.NewTestRun("test"), logr.Discard())
}

// healthyTarget answers probe reads the way a correctly configured
// target would; every other command succeeds silently.
func healthyTarget(host, command string) (*remote.CommandResult, error) {
	res := &remote.CommandResult{Host: host, Command: command}
	if strings.HasPrefix(command, "cat ") {
		switch {
		case strings.Contains(command, "attr_allow_any_host"):
			res.Stdout = "1\n"
		case strings.Contains(command, "namespaces/2/device_path"):
			res.Stdout = "/dev/nvme0n2\n"
		case strings.Contains(command, "device_path"):
			res.Stdout = "/dev/nvme0n1\n"
		case strings.Contains(command, "enable"):
			res.Stdout = "1\n"
		case strings.Contains(command, "addr_traddr"):
			res.Stdout = "192.168.1.49\n"
		case strings.Contains(command, "addr_trsvcid"):
			res.Stdout = "4420\n"
		}
	}
	return res, nil
}

func TestTargetStages_FullSetupSequence(t *testing.T) {
	t.Parallel()

	mock := &remote.Mock{Handler: healthyTarget}
	ctx := contextWithMock(t, mock)

	require.NoError(t, NewRunner(TargetStages()).Run(ctx))

	commands := mock.Commands()
	joined := strings.Join(commands, "\n")
	assert.Contains(t, commands[0], "modprobe nvmet")
	assert.Contains(t, joined, "modprobe nvmet-tcp")
	assert.Contains(t, joined, "mount -t configfs")
	assert.Contains(t, joined, "[ -b /dev/nvme0n1 ]")
	assert.Contains(t, joined, "mkdir -p /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1")
	assert.Contains(t, joined, "attr_allow_any_host")
	assert.Contains(t, joined, "echo -n /dev/nvme0n1 > /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1/namespaces/1/device_path")
	assert.Contains(t, joined, "namespaces/1/enable")
	assert.Contains(t, joined, "echo tcp > /sys/kernel/config/nvmet/ports/1/addr_trtype")
	assert.Contains(t, joined, "echo -n 192.168.1.49 > /sys/kernel/config/nvmet/ports/1/addr_traddr")
	assert.Contains(t, joined, "echo 4420 > /sys/kernel/config/nvmet/ports/1/addr_trsvcid")
	assert.Contains(t, joined, "ln -s /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1 /sys/kernel/config/nvmet/ports/1/subsystems/nqn.2026-01.lab:nvme:target1")

	// The subsystem is created strictly before the binding.
	mkdirIdx := indexContaining(commands, "mkdir -p /sys/kernel/config/nvmet/subsystems")
	linkIdx := indexContaining(commands, "ln -s")
	assert.Less(t, mkdirIdx, linkIdx)

	// Each object is confirmed on the target before it goes active.
	assert.Contains(t, joined, "lsmod | grep -q '^nvmet '")
	assert.Contains(t, joined, "cat /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1/attr_allow_any_host")
	portCatIdx := indexContaining(commands, "cat /sys/kernel/config/nvmet/ports/1/addr_trsvcid")
	require.GreaterOrEqual(t, portCatIdx, 0)
	assert.Less(t, indexContaining(commands, "echo 4420"), portCatIdx)
	assert.Less(t, portCatIdx, linkIdx)

	// Everything runs on the target host.
	for _, call := range mock.Calls() {
		assert.Equal(t, config.RoleTarget, call.Host)
	}

	// Two modules, mount, subsystem, namespace, port, binding all active.
	assert.Equal(t, 7, ctx.Tree.ActiveCount())
	binding := ctx.Tree.Find(resource.KindBinding, "1:nqn.2026-01.lab:nvme:target1")
	require.NotNil(t, binding)
	assert.Equal(t, resource.StateActive, binding.State())
}

func TestTargetStages_MidSequenceFailureUnwindsConfigfsOnly(t *testing.T) {
	t.Parallel()

	mock := &remote.Mock{Handler: func(host, command string) (*remote.CommandResult, error) {
		if strings.HasPrefix(command, "echo") && strings.Contains(command, "addr_trsvcid") {
			return &remote.CommandResult{Host: host, Command: command, ExitCode: 1, Stderr: "write error: Invalid argument"}, nil
		}
		return healthyTarget(host, command)
	}}
	ctx := contextWithMock(t, mock)

	err := NewRunner(TargetStages()).Run(ctx)
	require.Error(t, err)

	var failed *CommandFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "configure-port", failed.Stage)
	assert.Equal(t, 1, failed.Result.ExitCode)

	commands := mock.Commands()
	joined := strings.Join(commands, "\n")

	// Configfs objects unwind in reverse order; the binding was never
	// created and the subsystem goes last.
	disableIdx := indexContaining(commands, "echo 0 > /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1/namespaces/1/enable")
	nsIdx := indexContaining(commands, "rmdir /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1/namespaces/1")
	require.GreaterOrEqual(t, disableIdx, 0)
	require.GreaterOrEqual(t, nsIdx, 0)
	assert.Less(t, disableIdx, nsIdx)
	last := commands[len(commands)-1]
	assert.Equal(t, "[ ! -d /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1 ] || rmdir /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1", last)
	assert.NotContains(t, joined, "ln -s")

	// Shared facilities stay: no module unload, no configfs unmount.
	assert.NotContains(t, joined, "rmmod")
	assert.NotContains(t, joined, "modprobe -r")
	assert.NotContains(t, joined, "umount")

	// The rolled-back subsystem is absent again in the tree.
	subsystem := ctx.Tree.Find(resource.KindSubsystem, ctx.Config.SubsystemNQN)
	require.NotNil(t, subsystem)
	assert.Equal(t, resource.StateAbsent, subsystem.State())

	// Modules stay active through the rollback.
	for _, node := range ctx.Tree.FindAll(resource.KindModule) {
		assert.Equal(t, resource.StateActive, node.State())
	}
}

func TestTargetStages_MissingBackendDevice(t *testing.T) {
	t.Parallel()

	mock := &remote.Mock{Handler: func(host, command string) (*remote.CommandResult, error) {
		if strings.HasPrefix(command, "[ -b ") {
			return &remote.CommandResult{Host: host, Command: command, ExitCode: 1}, nil
		}
		return healthyTarget(host, command)
	}}
	ctx := contextWithMock(t, mock)

	err := NewRunner(TargetStages()).Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend device /dev/nvme0n1 missing")

	// Nothing under configfs was touched yet.
	assert.NotContains(t, strings.Join(mock.Commands(), "\n"), "mkdir -p /sys/kernel/config/nvmet")
}

func TestTargetStages_FirewallFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	mock := &remote.Mock{Handler: func(host, command string) (*remote.CommandResult, error) {
		if strings.HasPrefix(command, "firewall-cmd") {
			return &remote.CommandResult{Host: host, Command: command, ExitCode: 127, Stderr: "firewall-cmd: command not found"}, nil
		}
		return healthyTarget(host, command)
	}}
	ctx := contextWithMock(t, mock)

	require.NoError(t, NewRunner(TargetStages()).Run(ctx))
	require.NotEmpty(t, ctx.Run.Warnings)
	assert.Contains(t, ctx.Run.Warnings[0], "firewall port 4420/tcp")
}

func TestTargetStages_MultipleNamespaces(t *testing.T) {
	t.Parallel()

	mock := &remote.Mock{Handler: healthyTarget}
	cfg := stageConfig()
	cfg.NamespaceCount = 2
	ctx := NewContext(context.Background(), cfg, mock, report.NewTestRun("test"), logr.Discard())

	require.NoError(t, NewRunner(TargetStages()).Run(ctx))

	joined := strings.Join(mock.Commands(), "\n")
	assert.Contains(t, joined, "echo -n /dev/nvme0n1 > /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1/namespaces/1/device_path")
	assert.Contains(t, joined, "echo -n /dev/nvme0n2 > /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1/namespaces/2/device_path")
	assert.Len(t, ctx.Tree.FindAll(resource.KindNamespace), 2)
}

func TestTargetStages_PortMismatchRollsBack(t *testing.T) {
	t.Parallel()

	// Every write succeeds, but the port comes up on the discovery port
	// instead of the requested one.
	mock := &remote.Mock{Handler: func(host, command string) (*remote.CommandResult, error) {
		if strings.HasPrefix(command, "cat ") && strings.Contains(command, "addr_trsvcid") {
			return &remote.CommandResult{Host: host, Command: command, Stdout: "8009\n"}, nil
		}
		return healthyTarget(host, command)
	}}
	ctx := contextWithMock(t, mock)

	err := NewRunner(TargetStages()).Run(ctx)
	require.Error(t, err)

	var mismatch *probe.Mismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "port/1", mismatch.Node)

	joined := strings.Join(mock.Commands(), "\n")
	assert.NotContains(t, joined, "ln -s")
	assert.Contains(t, joined, "rmdir /sys/kernel/config/nvmet/subsystems/nqn.2026-01.lab:nvme:target1")

	port := ctx.Tree.Find(resource.KindPort, "1")
	require.NotNil(t, port)
	assert.Equal(t, resource.StateFailed, port.State())

	subsystem := ctx.Tree.Find(resource.KindSubsystem, ctx.Config.SubsystemNQN)
	require.NotNil(t, subsystem)
	assert.Equal(t, resource.StateAbsent, subsystem.State())
}

func indexContaining(commands []string, substr string) int {
	for i, cmd := range commands {
		if strings.Contains(cmd, substr) {
			return i
		}
	}
	return -1
}
