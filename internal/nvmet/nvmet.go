// Package nvmet holds the configfs layout of the kernel NVMe target and
// small helpers shared by the stages, probes, and the cleanup sweeper.
package nvmet

import (
	"fmt"
	"strconv"
	"strings"
)

// ConfigFSRoot is where the nvmet driver exposes its object tree.
const ConfigFSRoot = "/sys/kernel/config/nvmet"

// Modules required on the target host, in load order.
var Modules = []string{"nvmet", "nvmet-tcp"}

// ModuleListed returns the name a module appears under in lsmod output
// (dashes become underscores).
func ModuleListed(module string) string {
	return strings.ReplaceAll(module, "-", "_")
}

// SubsystemPath returns the configfs directory for a subsystem.
func SubsystemPath(nqn string) string {
	return fmt.Sprintf("%s/subsystems/%s", ConfigFSRoot, nqn)
}

// NamespacePath returns the configfs directory for a namespace.
func NamespacePath(nqn string, id int) string {
	return fmt.Sprintf("%s/namespaces/%d", SubsystemPath(nqn), id)
}

// PortPath returns the configfs directory for a port.
func PortPath(portID string) string {
	return fmt.Sprintf("%s/ports/%s", ConfigFSRoot, portID)
}

// BindingPath returns the symlink that binds a subsystem to a port.
func BindingPath(portID, nqn string) string {
	return fmt.Sprintf("%s/subsystems/%s", PortPath(portID), nqn)
}

// BindingID names a binding node after its port and subsystem.
func BindingID(portID, nqn string) string {
	return portID + ":" + nqn
}

// NamespaceDevice derives the backing device for a namespace. A single
// namespace exports the backend device as-is; multiple namespaces map
// index i to the device with trailing "1" replaced by i, matching how
// the lab partitions its backends.
func NamespaceDevice(backend string, id, count int) string {
	if count <= 1 {
		return backend
	}
	return strings.TrimRight(backend, "1") + strconv.Itoa(id)
}
