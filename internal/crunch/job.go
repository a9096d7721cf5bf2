package crunch

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/haldane/simtree/internal/tree"
)

// Job is one unit of requested crunching: advance the simulation from Node
// according to Profile. Jobs are created by the project (or tests) and given
// to the Manager; the Manager moves Node forward as it merges crunched
// states into the tree, and drops the job once it is done.
type Job struct {
	// ID identifies the job in logs and events.
	ID string

	// Node is the current starting point. Only the Manager mutates it,
	// while holding the tree's write lock.
	Node *tree.Node

	// Profile says how far and how to crunch. The job's owner may mutate it
	// in place; the Manager observes mutation through its change tracker.
	Profile *CrunchingProfile

	// ResultedInEnd is set by the Manager when the job's branch reached an
	// end of the simulated world.
	ResultedInEnd bool
}

// NewJob creates a job starting at node with the given profile.
func NewJob(node *tree.Node, profile *CrunchingProfile) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Node:    node,
		Profile: profile,
	}
}

// Done reports whether there is nothing left to crunch: the branch ended,
// or the job's node reached the profile's clock target.
func (j *Job) Done() bool {
	return j.ResultedInEnd || j.Profile.DoneWith(j.Node.Clock())
}

// String returns a readable form for logs.
func (j *Job) String() string {
	return fmt.Sprintf("Job(%s, clock=%v, %v)", j.ID[:8], j.Node.Clock(), j.Profile)
}
