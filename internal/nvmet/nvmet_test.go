package nvmet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/sys/kernel/config/nvmet/subsystems/nqn.a", SubsystemPath("nqn.a"))
	assert.Equal(t, "/sys/kernel/config/nvmet/subsystems/nqn.a/namespaces/2", NamespacePath("nqn.a", 2))
	assert.Equal(t, "/sys/kernel/config/nvmet/ports/1", PortPath("1"))
	assert.Equal(t, "/sys/kernel/config/nvmet/ports/1/subsystems/nqn.a", BindingPath("1", "nqn.a"))
}

func TestModuleListed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "nvmet", ModuleListed("nvmet"))
	assert.Equal(t, "nvmet_tcp", ModuleListed("nvmet-tcp"))
}

func TestNamespaceDevice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/dev/nvme0n1", NamespaceDevice("/dev/nvme0n1", 1, 1))
	assert.Equal(t, "/dev/nvme0n2", NamespaceDevice("/dev/nvme0n1", 2, 3))
	assert.Equal(t, "/dev/nvme0n3", NamespaceDevice("/dev/nvme0n1", 3, 3))
}
