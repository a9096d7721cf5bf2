package tree

import (
	"github.com/haldane/simtree/internal/sim"
)

// Node is a single state in the history tree.
//
// Fields are exported for the manager and UI layers, but all access is
// governed by the owning tree's lock; a Node is never shared outside it.
type Node struct {
	// ID is a stable identifier for logging, events, and export.
	ID string
	// State is the simulation state this node holds.
	State sim.State
	// Parent is nil only for the root.
	Parent *Node
	// Children are the timelines branching off this node, in creation order.
	Children []*Node
	// StepProfile is the profile that produced State; nil for the root and
	// for states created by hand (e.g. an edited node).
	StepProfile *sim.StepProfile
	// Ends records the step profiles under which the simulation terminated
	// at this node. A node with ends may still grow children under other
	// profiles.
	Ends []*sim.StepProfile
	// StillInEditing is set while a user is interactively modifying this
	// node's state. Background crunching must not fork such a node.
	StillInEditing bool

	tree *Tree
}

// Clock returns the node's simulation time.
func (n *Node) Clock() float64 { return n.State.Clock() }

// IsEnd reports whether the simulation ended at this node under the given
// profile. A nil profile asks whether it ended under any profile.
func (n *Node) IsEnd(profile *sim.StepProfile) bool {
	for _, p := range n.Ends {
		if profile == nil || p.Equal(profile) {
			return true
		}
	}
	return false
}

// Snapshot is a read-only summary of a node, for export and display.
type Snapshot struct {
	ID       string     `yaml:"id"`
	ParentID string     `yaml:"parent_id,omitempty"`
	Clock    float64    `yaml:"clock"`
	Profile  string     `yaml:"step_profile,omitempty"`
	End      bool       `yaml:"end,omitempty"`
	Children []Snapshot `yaml:"children,omitempty"`
}

// Snapshot returns a recursive summary of the subtree rooted at n.
// Callers must hold the tree lock (read mode suffices).
func (n *Node) Snapshot() Snapshot {
	s := Snapshot{
		ID:    n.ID,
		Clock: n.Clock(),
		End:   len(n.Ends) > 0,
	}
	if n.Parent != nil {
		s.ParentID = n.Parent.ID
	}
	if n.StepProfile != nil {
		s.Profile = n.StepProfile.String()
	}
	for _, c := range n.Children {
		s.Children = append(s.Children, c.Snapshot())
	}
	return s
}
