package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_AddAndActivate(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	mod, err := tree.Add(KindModule, "nvmet")
	require.NoError(t, err)
	assert.Equal(t, StateCreating, mod.State())

	require.NoError(t, tree.Activate(mod))
	assert.Equal(t, StateActive, mod.State())
	assert.Equal(t, 1, tree.ActiveCount())
}

func TestTree_DuplicateNode(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	_, err := tree.Add(KindModule, "nvmet")
	require.NoError(t, err)
	_, err = tree.Add(KindModule, "nvmet")
	assert.Error(t, err)
}

func TestTree_ActivateRequiresActiveAncestors(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	mod, err := tree.Add(KindModule, "nvmet")
	require.NoError(t, err)
	subsys, err := tree.Add(KindSubsystem, "nqn.2026-01.lab:nvme:target1", mod)
	require.NoError(t, err)

	// Module never went active, so the subsystem may not.
	err = tree.Activate(subsys)
	require.Error(t, err)
	assert.Equal(t, StateCreating, subsys.State())

	require.NoError(t, tree.Activate(mod))
	require.NoError(t, tree.Activate(subsys))
}

func TestTree_BindingRequiresActiveSubsystemAndPort(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	mod, _ := tree.Add(KindModule, "nvmet")
	require.NoError(t, tree.Activate(mod))
	subsys, _ := tree.Add(KindSubsystem, "nqn.a", mod)
	port, _ := tree.Add(KindPort, "1", mod)

	// Neither parent is active yet.
	_, err := tree.Add(KindBinding, "1:nqn.a", subsys, port)
	require.Error(t, err)

	require.NoError(t, tree.Activate(subsys))
	_, err = tree.Add(KindBinding, "1:nqn.a", subsys, port)
	require.Error(t, err, "port still creating")

	require.NoError(t, tree.Activate(port))
	binding, err := tree.Add(KindBinding, "1:nqn.a", subsys, port)
	require.NoError(t, err)
	require.NoError(t, tree.Activate(binding))
}

func TestTree_BindingParentArity(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	mod, _ := tree.Add(KindModule, "nvmet")
	require.NoError(t, tree.Activate(mod))

	_, err := tree.Add(KindBinding, "b", mod)
	assert.Error(t, err)
}

func TestTree_CreatedOrderAndFail(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	mod, _ := tree.Add(KindModule, "nvmet")
	require.NoError(t, tree.Activate(mod))
	subsys, _ := tree.Add(KindSubsystem, "nqn.a", mod)
	require.NoError(t, tree.Activate(subsys))
	port, _ := tree.Add(KindPort, "1", mod)

	tree.Fail(port)

	created := tree.Created()
	require.Len(t, created, 2)
	assert.Equal(t, KindModule, created[0].Kind)
	assert.Equal(t, KindSubsystem, created[1].Kind)
}

func TestTree_RemoveLeavesZeroActive(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	mod, _ := tree.Add(KindModule, "nvmet")
	require.NoError(t, tree.Activate(mod))
	subsys, _ := tree.Add(KindSubsystem, "nqn.a", mod)
	require.NoError(t, tree.Activate(subsys))

	tree.Remove(subsys)
	tree.Remove(mod)

	assert.Equal(t, 0, tree.ActiveCount())
	assert.Empty(t, tree.Created())
	assert.Equal(t, 2, tree.Len())
}

func TestTree_FindAll(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	mod, _ := tree.Add(KindModule, "nvmet")
	require.NoError(t, tree.Activate(mod))
	subsys, _ := tree.Add(KindSubsystem, "nqn.a", mod)
	require.NoError(t, tree.Activate(subsys))
	for _, id := range []string{"1", "2", "3"} {
		_, err := tree.Add(KindNamespace, id, subsys)
		require.NoError(t, err)
	}

	namespaces := tree.FindAll(KindNamespace)
	require.Len(t, namespaces, 3)
	assert.Equal(t, "1", namespaces[0].ID)
	assert.Equal(t, "3", namespaces[2].ID)
	assert.Nil(t, tree.Find(KindBinding, "x"))
}
