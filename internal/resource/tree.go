// Package resource models the staged remote objects as a tree of typed
// nodes with an explicit lifecycle. The tree only tracks what this run
// created; cleanup never trusts it as the source of truth for remote
// state.
package resource

import (
	"fmt"
)

// Kind identifies the type of remote object a node stands for.
type Kind string

const (
	KindModule       Kind = "module"
	KindBackendMount Kind = "backend-mount"
	KindSubsystem    Kind = "subsystem"
	KindNamespace    Kind = "namespace"
	KindPort         Kind = "port"
	KindBinding      Kind = "binding"
)

// State is the lifecycle state of a node.
//
// absent -> creating -> active, with failed reachable from creating.
// Terminal states are active and absent.
type State string

const (
	StateAbsent   State = "absent"
	StateCreating State = "creating"
	StateActive   State = "active"
	StateFailed   State = "failed"
)

// Node is one staged remote object. Parents lists every node this one
// depends on: none for modules and the backend mount, the module for
// subsystems and ports, the subsystem for namespaces, and exactly the
// subsystem plus the port for bindings.
type Node struct {
	Kind    Kind
	ID      string
	Parents []*Node

	state State
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	return n.state
}

// String renders the node as kind/id for error messages and reports.
func (n *Node) String() string {
	return fmt.Sprintf("%s/%s", n.Kind, n.ID)
}

// parentsActive reports whether every ancestor is active.
func (n *Node) parentsActive() bool {
	for _, p := range n.Parents {
		if p.state != StateActive {
			return false
		}
		if !p.parentsActive() {
			return false
		}
	}
	return true
}

// Tree holds the nodes created during one run, in creation order.
// It is owned by a single orchestration and is not safe for concurrent
// use; independent runs own independent trees.
type Tree struct {
	nodes []*Node
}

// NewTree creates an empty resource tree.
func NewTree() *Tree {
	return &Tree{}
}

// Add registers a new node in creating state. A binding may only be
// added while its subsystem and port are both active; every other kind
// only requires that its parents exist in the tree.
func (t *Tree) Add(kind Kind, id string, parents ...*Node) (*Node, error) {
	if t.Find(kind, id) != nil {
		return nil, fmt.Errorf("node %s/%s already exists", kind, id)
	}
	if kind == KindBinding {
		if len(parents) != 2 {
			return nil, fmt.Errorf("binding %s requires exactly a subsystem and a port parent", id)
		}
		for _, p := range parents {
			if p.state != StateActive {
				return nil, fmt.Errorf("binding %s requires active parent, %s is %s", id, p, p.state)
			}
		}
	}

	n := &Node{Kind: kind, ID: id, Parents: parents, state: StateCreating}
	t.nodes = append(t.nodes, n)
	return n, nil
}

// Activate transitions a node from creating to active. It enforces the
// invariant that a node may not be active while any ancestor is not.
func (t *Tree) Activate(n *Node) error {
	if n.state != StateCreating {
		return fmt.Errorf("cannot activate %s from state %s", n, n.state)
	}
	if !n.parentsActive() {
		return fmt.Errorf("cannot activate %s: not all ancestors are active", n)
	}
	n.state = StateActive
	return nil
}

// Fail marks a node that did not survive creation or verification.
func (t *Tree) Fail(n *Node) {
	if n.state == StateCreating {
		n.state = StateFailed
	}
}

// Remove transitions a node to absent once its remote object is
// confirmed gone. The node stays in the slice so creation order is
// preserved for reporting.
func (t *Tree) Remove(n *Node) {
	n.state = StateAbsent
}

// Created returns the nodes that reached creating or active during this
// run, in creation order. Rollback walks this list backwards.
func (t *Tree) Created() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.state == StateCreating || n.state == StateActive {
			out = append(out, n)
		}
	}
	return out
}

// Find returns the node with the given kind and id, or nil.
func (t *Tree) Find(kind Kind, id string) *Node {
	for _, n := range t.nodes {
		if n.Kind == kind && n.ID == id {
			return n
		}
	}
	return nil
}

// FindAll returns every node of the given kind in creation order.
func (t *Tree) FindAll(kind Kind) []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// ActiveCount returns the number of active nodes.
func (t *Tree) ActiveCount() int {
	count := 0
	for _, n := range t.nodes {
		if n.state == StateActive {
			count++
		}
	}
	return count
}

// Len returns the total number of nodes ever added.
func (t *Tree) Len() int {
	return len(t.nodes)
}
