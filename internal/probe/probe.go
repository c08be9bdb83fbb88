// Package probe implements read-only verification of the remote target
// configuration. Probes never mutate remote state; they are used after
// each stage and standalone for the verify-only mode.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/nvmet"
	"github.com/fabriclab/fabtest/internal/remote"
)

// Mismatch reports that a resource is not in the expected state.
type Mismatch struct {
	Node     string
	Expected string
	Actual   string
}

func (e *Mismatch) Error() string {
	return fmt.Sprintf("verification mismatch for %s: expected %q, got %q", e.Node, e.Expected, e.Actual)
}

// Prober runs existence and attribute checks against the target host.
type Prober struct {
	exec    remote.Executor
	cfg     *config.Config
	timeout time.Duration
}

// New creates a prober using the given executor and per-check timeout.
func New(exec remote.Executor, cfg *config.Config, timeout time.Duration) *Prober {
	return &Prober{exec: exec, cfg: cfg, timeout: timeout}
}

// check runs a command on the target and reports a mismatch when it
// exits nonzero. Transport errors pass through untouched.
func (p *Prober) check(ctx context.Context, command, node, expected, actual string) error {
	result, err := p.exec.Execute(ctx, config.RoleTarget, command, p.timeout)
	if err != nil {
		return err
	}
	if !result.OK() {
		return &Mismatch{Node: node, Expected: expected, Actual: actual}
	}
	return nil
}

// read runs a command and returns trimmed stdout, or a mismatch when the
// command fails (attribute file missing).
func (p *Prober) read(ctx context.Context, command, node string) (string, error) {
	result, err := p.exec.Execute(ctx, config.RoleTarget, command, p.timeout)
	if err != nil {
		return "", err
	}
	if !result.OK() {
		return "", &Mismatch{Node: node, Expected: "readable attribute", Actual: "absent"}
	}
	return strings.TrimSpace(result.Stdout), nil
}

// ModuleLoaded checks that a kernel module appears in lsmod.
func (p *Prober) ModuleLoaded(ctx context.Context, module string) error {
	listed := nvmet.ModuleListed(module)
	cmd := fmt.Sprintf("lsmod | grep -q '^%s '", listed)
	return p.check(ctx, cmd, "module/"+module, "loaded", "not listed in lsmod")
}

// ConfigFSMounted checks that configfs is mounted.
func (p *Prober) ConfigFSMounted(ctx context.Context) error {
	return p.check(ctx, "mount | grep -q configfs",
		"backend-mount/configfs", "mounted", "not mounted")
}

// BackendDevice checks that the backend block device exists.
func (p *Prober) BackendDevice(ctx context.Context) error {
	cmd := fmt.Sprintf("[ -b %s ]", p.cfg.BackendDevice)
	return p.check(ctx, cmd, "backend-mount/"+p.cfg.BackendDevice,
		"block device present", "absent")
}

// Subsystem checks the subsystem directory exists and accepts any host.
func (p *Prober) Subsystem(ctx context.Context) error {
	node := "subsystem/" + p.cfg.SubsystemNQN
	path := nvmet.SubsystemPath(p.cfg.SubsystemNQN)

	if err := p.check(ctx, fmt.Sprintf("[ -d %s ]", path), node, "present", "absent"); err != nil {
		return err
	}

	allow, err := p.read(ctx, fmt.Sprintf("cat %s/attr_allow_any_host", path), node)
	if err != nil {
		return err
	}
	if allow != "1" {
		return &Mismatch{Node: node, Expected: "attr_allow_any_host=1", Actual: "attr_allow_any_host=" + allow}
	}
	return nil
}

// Namespace checks that a namespace exists and is backed by the
// expected device.
func (p *Prober) Namespace(ctx context.Context, id int) error {
	node := fmt.Sprintf("namespace/%d", id)
	path := nvmet.NamespacePath(p.cfg.SubsystemNQN, id)
	want := nvmet.NamespaceDevice(p.cfg.BackendDevice, id, p.cfg.NamespaceCount)

	device, err := p.read(ctx, fmt.Sprintf("cat %s/device_path", path), node)
	if err != nil {
		return err
	}
	if device != want {
		return &Mismatch{Node: node, Expected: "device_path=" + want, Actual: "device_path=" + device}
	}
	return nil
}

// NamespaceEnabled checks that a namespace is enabled.
func (p *Prober) NamespaceEnabled(ctx context.Context, id int) error {
	node := fmt.Sprintf("namespace/%d", id)
	path := nvmet.NamespacePath(p.cfg.SubsystemNQN, id)

	enabled, err := p.read(ctx, fmt.Sprintf("cat %s/enable", path), node)
	if err != nil {
		return err
	}
	if enabled != "1" {
		return &Mismatch{Node: node, Expected: "enable=1", Actual: "enable=" + enabled}
	}
	return nil
}

// Port checks that the port's bound address and service id match the
// requested values.
func (p *Prober) Port(ctx context.Context) error {
	node := "port/" + p.cfg.PortID
	path := nvmet.PortPath(p.cfg.PortID)

	addr, err := p.read(ctx, fmt.Sprintf("cat %s/addr_traddr", path), node)
	if err != nil {
		return err
	}
	svc, err := p.read(ctx, fmt.Sprintf("cat %s/addr_trsvcid", path), node)
	if err != nil {
		return err
	}

	want := p.cfg.DataIP + ":" + p.cfg.ServicePort
	got := addr + ":" + svc
	if got != want {
		return &Mismatch{Node: node, Expected: want, Actual: got}
	}
	return nil
}

// Binding checks that the subsystem is linked to the port.
func (p *Prober) Binding(ctx context.Context) error {
	node := "binding/" + nvmet.BindingID(p.cfg.PortID, p.cfg.SubsystemNQN)
	path := nvmet.BindingPath(p.cfg.PortID, p.cfg.SubsystemNQN)
	return p.check(ctx, fmt.Sprintf("[ -L %s ]", path), node, "linked", "absent")
}

// VerifyAll runs every check for a fully configured target, in
// dependency order, returning the first mismatch.
func (p *Prober) VerifyAll(ctx context.Context) error {
	for _, module := range nvmet.Modules {
		if err := p.ModuleLoaded(ctx, module); err != nil {
			return err
		}
	}
	if err := p.ConfigFSMounted(ctx); err != nil {
		return err
	}
	if err := p.BackendDevice(ctx); err != nil {
		return err
	}
	if err := p.Subsystem(ctx); err != nil {
		return err
	}
	for id := 1; id <= p.cfg.NamespaceCount; id++ {
		if err := p.Namespace(ctx, id); err != nil {
			return err
		}
		if err := p.NamespaceEnabled(ctx, id); err != nil {
			return err
		}
	}
	if err := p.Port(ctx); err != nil {
		return err
	}
	return p.Binding(ctx)
}

// VerifyAbsent confirms that no configured objects remain: the inverse
// of VerifyAll, used to validate a completed teardown.
func (p *Prober) VerifyAbsent(ctx context.Context) error {
	checks := []struct {
		path string
		node string
	}{
		{nvmet.BindingPath(p.cfg.PortID, p.cfg.SubsystemNQN), "binding/" + nvmet.BindingID(p.cfg.PortID, p.cfg.SubsystemNQN)},
		{nvmet.SubsystemPath(p.cfg.SubsystemNQN), "subsystem/" + p.cfg.SubsystemNQN},
		{nvmet.PortPath(p.cfg.PortID), "port/" + p.cfg.PortID},
	}
	for _, c := range checks {
		if err := p.check(ctx, fmt.Sprintf("[ ! -e %s ]", c.path), c.node, "absent", "present"); err != nil {
			return err
		}
	}
	return nil
}
