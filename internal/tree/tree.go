// Package tree implements the shared, branching history of simulation
// states. Nodes form a tree rooted at the initial state; every node except
// the root is tagged with the step profile that produced it.
//
// The tree's Lock guards all structural mutation. The crunching manager
// holds it in write mode for the whole of a sync pass; readers (UI, export)
// take it in read mode. The tree itself does no locking, so that the manager
// can batch many mutations under one acquisition.
package tree

import (
	"sync"

	"github.com/google/uuid"

	"github.com/haldane/simtree/internal/sim"
)

// Tree is a branching history of states.
type Tree struct {
	// Lock guards all structural access to the tree. Writers (the crunching
	// manager's sync) hold it exclusively; readers hold it shared.
	Lock sync.RWMutex

	root  *Node
	count int
}

// New creates a tree containing a single root node for the initial state.
// The root carries no step profile: nothing produced it.
func New(initial sim.State) *Tree {
	t := &Tree{}
	t.root = &Node{
		ID:    uuid.NewString(),
		State: initial,
		tree:  t,
	}
	t.count = 1
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Len returns the number of nodes in the tree.
// Callers must hold the tree lock.
func (t *Tree) Len() int { return t.count }

// AddState appends state as a child of parent, tagged with the step profile
// that produced it, and returns the new node.
// Callers must hold the tree lock in write mode.
func (t *Tree) AddState(state sim.State, parent *Node, profile *sim.StepProfile) *Node {
	if parent == nil || parent.tree != t {
		panic("tree: AddState with a parent from another tree")
	}
	node := &Node{
		ID:          uuid.NewString(),
		State:       state,
		Parent:      parent,
		StepProfile: profile,
		tree:        t,
	}
	parent.Children = append(parent.Children, node)
	t.count++
	return node
}

// MakeEnd marks node as a terminal end of its branch: the simulation ended
// there under the given step profile, and no child may extend that timeline.
// Callers must hold the tree lock in write mode.
func (t *Tree) MakeEnd(node *Node, profile *sim.StepProfile) {
	node.Ends = append(node.Ends, profile)
}

// Walk visits every node in depth-first order, parents before children.
// Callers must hold the tree lock (read mode suffices).
func (t *Tree) Walk(visit func(*Node)) {
	var rec func(*Node)
	rec = func(n *Node) {
		visit(n)
		for _, c := range n.Children {
			rec(c)
		}
	}
	rec(t.root)
}

// Leaves returns every node with no children, in depth-first order.
// Callers must hold the tree lock (read mode suffices).
func (t *Tree) Leaves() []*Node {
	var out []*Node
	t.Walk(func(n *Node) {
		if len(n.Children) == 0 {
			out = append(out, n)
		}
	})
	return out
}
