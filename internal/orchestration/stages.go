package orchestration

import (
	"fmt"
	"strconv"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/nvmet"
	"github.com/fabriclab/fabtest/internal/remote"
	"github.com/fabriclab/fabtest/internal/resource"
)

// TargetStages returns the ordered setup stages for the target host.
// Each stage confirms its objects on the target through the probe
// before marking them active; a mismatch fails the stage exactly like
// a command failure and triggers rollback.
func TargetStages() []Stage {
	return []Stage{
		&loadModulesStage{},
		&prepareBackendStage{},
		&createSubsystemStage{},
		&createNamespacesStage{},
		&enableNamespacesStage{},
		&configurePortStage{},
		&bindSubsystemStage{},
		&openFirewallStage{},
	}
}

// execTarget runs a command on the target host and converts a nonzero
// exit into a CommandFailed for the stage.
func execTarget(ctx *Context, stage, command string) (*remote.CommandResult, error) {
	result, err := ctx.Exec.Execute(ctx, config.RoleTarget, command, ctx.Timeouts.Command)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", stage, err)
	}
	if !result.OK() {
		return nil, &CommandFailed{Stage: stage, Result: result}
	}
	return result, nil
}

// withParents drops nil entries so stages compose parent lists from
// Tree.Find without caring whether earlier stages ran.
func withParents(nodes ...*resource.Node) []*resource.Node {
	var out []*resource.Node
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// loadModulesStage loads the nvmet kernel modules. Modules are shared
// host facilities and are never unloaded on rollback.
type loadModulesStage struct{}

func (s *loadModulesStage) Name() string { return "load-modules" }

func (s *loadModulesStage) Apply(ctx *Context) error {
	for _, module := range nvmet.Modules {
		node, err := ctx.Tree.Add(resource.KindModule, module)
		if err != nil {
			return err
		}
		LogResourceCreating(ctx.Observer, s.Name(), node.String())
		if _, err := execTarget(ctx, s.Name(), "modprobe "+module); err != nil {
			ctx.Tree.Fail(node)
			LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
			return err
		}
		if err := ctx.Probe.ModuleLoaded(ctx, module); err != nil {
			ctx.Tree.Fail(node)
			LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
			return err
		}
		if err := ctx.Tree.Activate(node); err != nil {
			return err
		}
		LogResourceCreated(ctx.Observer, s.Name(), node.String())
	}
	return nil
}

func (s *loadModulesStage) Rollback(*Context) error { return nil }

// prepareBackendStage mounts configfs if needed and checks that the
// backing block device exists. The mount is a shared host facility and
// is never unmounted on rollback.
type prepareBackendStage struct{}

func (s *prepareBackendStage) Name() string { return "prepare-backend" }

func (s *prepareBackendStage) Apply(ctx *Context) error {
	node, err := ctx.Tree.Add(resource.KindBackendMount, "/sys/kernel/config")
	if err != nil {
		return err
	}

	mount := "mountpoint -q /sys/kernel/config || mount -t configfs none /sys/kernel/config"
	if _, err := execTarget(ctx, s.Name(), mount); err != nil {
		ctx.Tree.Fail(node)
		return err
	}
	if err := ctx.Probe.ConfigFSMounted(ctx); err != nil {
		ctx.Tree.Fail(node)
		return err
	}

	for id := 1; id <= ctx.Config.NamespaceCount; id++ {
		device := nvmet.NamespaceDevice(ctx.Config.BackendDevice, id, ctx.Config.NamespaceCount)
		if _, err := execTarget(ctx, s.Name(), fmt.Sprintf("[ -b %s ]", device)); err != nil {
			ctx.Tree.Fail(node)
			return fmt.Errorf("backend device %s missing on target: %w", device, err)
		}
	}
	return ctx.Tree.Activate(node)
}

func (s *prepareBackendStage) Rollback(*Context) error { return nil }

// createSubsystemStage creates the subsystem directory and opens it to
// any host.
type createSubsystemStage struct{}

func (s *createSubsystemStage) Name() string { return "create-subsystem" }

func (s *createSubsystemStage) Apply(ctx *Context) error {
	cfg := ctx.Config
	parents := withParents(ctx.Tree.Find(resource.KindModule, "nvmet"))
	node, err := ctx.Tree.Add(resource.KindSubsystem, cfg.SubsystemNQN, parents...)
	if err != nil {
		return err
	}
	LogResourceCreating(ctx.Observer, s.Name(), node.String())

	path := nvmet.SubsystemPath(cfg.SubsystemNQN)
	commands := []string{
		fmt.Sprintf("mkdir -p %s", path),
		fmt.Sprintf("echo 1 > %s/attr_allow_any_host", path),
	}
	for _, cmd := range commands {
		if _, err := execTarget(ctx, s.Name(), cmd); err != nil {
			ctx.Tree.Fail(node)
			LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
			return err
		}
	}
	if err := ctx.Probe.Subsystem(ctx); err != nil {
		ctx.Tree.Fail(node)
		LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
		return err
	}
	if err := ctx.Tree.Activate(node); err != nil {
		return err
	}
	LogResourceCreated(ctx.Observer, s.Name(), node.String())
	return nil
}

func (s *createSubsystemStage) Rollback(ctx *Context) error {
	path := nvmet.SubsystemPath(ctx.Config.SubsystemNQN)
	if _, err := execTarget(ctx, s.Name(), fmt.Sprintf("[ ! -d %s ] || rmdir %s", path, path)); err != nil {
		return err
	}
	if node := ctx.Tree.Find(resource.KindSubsystem, ctx.Config.SubsystemNQN); node != nil {
		ctx.Tree.Remove(node)
		LogResourceRemoved(ctx.Observer, s.Name(), node.String())
	}
	return nil
}

// createNamespacesStage creates one namespace per configured count and
// points each at its backing device.
type createNamespacesStage struct{}

func (s *createNamespacesStage) Name() string { return "create-namespaces" }

func (s *createNamespacesStage) Apply(ctx *Context) error {
	cfg := ctx.Config
	parents := withParents(ctx.Tree.Find(resource.KindSubsystem, cfg.SubsystemNQN))

	for id := 1; id <= cfg.NamespaceCount; id++ {
		node, err := ctx.Tree.Add(resource.KindNamespace, strconv.Itoa(id), parents...)
		if err != nil {
			return err
		}
		LogResourceCreating(ctx.Observer, s.Name(), node.String())

		path := nvmet.NamespacePath(cfg.SubsystemNQN, id)
		device := nvmet.NamespaceDevice(cfg.BackendDevice, id, cfg.NamespaceCount)
		commands := []string{
			fmt.Sprintf("mkdir -p %s", path),
			fmt.Sprintf("echo -n %s > %s/device_path", device, path),
		}
		for _, cmd := range commands {
			if _, err := execTarget(ctx, s.Name(), cmd); err != nil {
				ctx.Tree.Fail(node)
				LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
				return err
			}
		}
		if err := ctx.Probe.Namespace(ctx, id); err != nil {
			ctx.Tree.Fail(node)
			LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
			return err
		}
		if err := ctx.Tree.Activate(node); err != nil {
			return err
		}
		LogResourceCreated(ctx.Observer, s.Name(), node.String())
	}
	return nil
}

func (s *createNamespacesStage) Rollback(ctx *Context) error {
	cfg := ctx.Config
	for id := cfg.NamespaceCount; id >= 1; id-- {
		path := nvmet.NamespacePath(cfg.SubsystemNQN, id)
		if _, err := execTarget(ctx, s.Name(), fmt.Sprintf("[ ! -d %s ] || rmdir %s", path, path)); err != nil {
			return err
		}
		if node := ctx.Tree.Find(resource.KindNamespace, strconv.Itoa(id)); node != nil {
			ctx.Tree.Remove(node)
		}
	}
	return nil
}

// enableNamespacesStage flips every created namespace live. It creates
// no tree nodes of its own.
type enableNamespacesStage struct{}

func (s *enableNamespacesStage) Name() string { return "enable-namespaces" }

func (s *enableNamespacesStage) Apply(ctx *Context) error {
	cfg := ctx.Config
	for id := 1; id <= cfg.NamespaceCount; id++ {
		path := nvmet.NamespacePath(cfg.SubsystemNQN, id)
		if _, err := execTarget(ctx, s.Name(), fmt.Sprintf("echo 1 > %s/enable", path)); err != nil {
			return err
		}
		if err := ctx.Probe.NamespaceEnabled(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *enableNamespacesStage) Rollback(ctx *Context) error {
	cfg := ctx.Config
	for id := cfg.NamespaceCount; id >= 1; id-- {
		path := nvmet.NamespacePath(cfg.SubsystemNQN, id)
		cmd := fmt.Sprintf("[ ! -f %s/enable ] || echo 0 > %s/enable", path, path)
		if _, err := execTarget(ctx, s.Name(), cmd); err != nil {
			return err
		}
	}
	return nil
}

// configurePortStage creates the TCP port and sets its address
// attributes.
type configurePortStage struct{}

func (s *configurePortStage) Name() string { return "configure-port" }

func (s *configurePortStage) Apply(ctx *Context) error {
	cfg := ctx.Config
	parents := withParents(ctx.Tree.Find(resource.KindModule, "nvmet-tcp"))
	node, err := ctx.Tree.Add(resource.KindPort, cfg.PortID, parents...)
	if err != nil {
		return err
	}
	LogResourceCreating(ctx.Observer, s.Name(), node.String())

	path := nvmet.PortPath(cfg.PortID)
	commands := []string{
		fmt.Sprintf("mkdir -p %s", path),
		fmt.Sprintf("echo tcp > %s/addr_trtype", path),
		fmt.Sprintf("echo ipv4 > %s/addr_adrfam", path),
		fmt.Sprintf("echo -n %s > %s/addr_traddr", cfg.DataIP, path),
		fmt.Sprintf("echo %s > %s/addr_trsvcid", cfg.ServicePort, path),
	}
	for _, cmd := range commands {
		if _, err := execTarget(ctx, s.Name(), cmd); err != nil {
			ctx.Tree.Fail(node)
			LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
			return err
		}
	}
	if err := ctx.Probe.Port(ctx); err != nil {
		ctx.Tree.Fail(node)
		LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
		return err
	}
	if err := ctx.Tree.Activate(node); err != nil {
		return err
	}
	LogResourceCreated(ctx.Observer, s.Name(), node.String())
	return nil
}

func (s *configurePortStage) Rollback(ctx *Context) error {
	path := nvmet.PortPath(ctx.Config.PortID)
	if _, err := execTarget(ctx, s.Name(), fmt.Sprintf("[ ! -d %s ] || rmdir %s", path, path)); err != nil {
		return err
	}
	if node := ctx.Tree.Find(resource.KindPort, ctx.Config.PortID); node != nil {
		ctx.Tree.Remove(node)
		LogResourceRemoved(ctx.Observer, s.Name(), node.String())
	}
	return nil
}

// bindSubsystemStage symlinks the subsystem under the port, making the
// export reachable. Both parents must be active for the binding to be
// admitted to the tree.
type bindSubsystemStage struct{}

func (s *bindSubsystemStage) Name() string { return "bind-subsystem" }

func (s *bindSubsystemStage) Apply(ctx *Context) error {
	cfg := ctx.Config
	subsystem := ctx.Tree.Find(resource.KindSubsystem, cfg.SubsystemNQN)
	port := ctx.Tree.Find(resource.KindPort, cfg.PortID)
	if subsystem == nil || port == nil {
		return fmt.Errorf("stage %s: subsystem and port must be staged before binding", s.Name())
	}

	node, err := ctx.Tree.Add(resource.KindBinding, nvmet.BindingID(cfg.PortID, cfg.SubsystemNQN), subsystem, port)
	if err != nil {
		return err
	}
	LogResourceCreating(ctx.Observer, s.Name(), node.String())

	cmd := fmt.Sprintf("ln -s %s %s", nvmet.SubsystemPath(cfg.SubsystemNQN), nvmet.BindingPath(cfg.PortID, cfg.SubsystemNQN))
	if _, err := execTarget(ctx, s.Name(), cmd); err != nil {
		ctx.Tree.Fail(node)
		LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
		return err
	}
	if err := ctx.Probe.Binding(ctx); err != nil {
		ctx.Tree.Fail(node)
		LogResourceFailed(ctx.Observer, s.Name(), node.String(), err)
		return err
	}
	if err := ctx.Tree.Activate(node); err != nil {
		return err
	}
	LogResourceCreated(ctx.Observer, s.Name(), node.String())
	return nil
}

func (s *bindSubsystemStage) Rollback(ctx *Context) error {
	cfg := ctx.Config
	path := nvmet.BindingPath(cfg.PortID, cfg.SubsystemNQN)
	if _, err := execTarget(ctx, s.Name(), fmt.Sprintf("[ ! -L %s ] || unlink %s", path, path)); err != nil {
		return err
	}
	if node := ctx.Tree.Find(resource.KindBinding, nvmet.BindingID(cfg.PortID, cfg.SubsystemNQN)); node != nil {
		ctx.Tree.Remove(node)
		LogResourceRemoved(ctx.Observer, s.Name(), node.String())
	}
	return nil
}

// openFirewallStage opens the NVMe/TCP service port. Best-effort: labs
// without firewalld just log a warning and move on.
type openFirewallStage struct{}

func (s *openFirewallStage) Name() string { return "open-firewall" }

func (s *openFirewallStage) Apply(ctx *Context) error {
	cmd := fmt.Sprintf("firewall-cmd --add-port=%s/tcp", ctx.Config.ServicePort)
	if _, err := execTarget(ctx, s.Name(), cmd); err != nil {
		ctx.Observer.Event(Event{
			Type:    EventWarning,
			Stage:   s.Name(),
			Message: fmt.Sprintf("could not open firewall port: %v", err),
		})
		ctx.Run.AddWarning(fmt.Sprintf("firewall port %s/tcp not opened: %v", ctx.Config.ServicePort, err))
	}
	return nil
}

func (s *openFirewallStage) Rollback(*Context) error { return nil }
