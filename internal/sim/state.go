// Package sim defines the simulation-facing contracts of simtree: world
// states, step functions, simulation packages (simpacks), and step profiles.
//
// A simpack bundles the step functions for one kind of simulation together
// with the cruncher backends it is compatible with. A step profile pairs one
// of those step functions with a concrete set of arguments; every state in
// the history tree is tagged with the profile that produced it.
package sim

import (
	"context"

	"github.com/haldane/simtree/internal/errors"
)

// State is a single moment of a simulated world. Implementations are
// immutable by contract: a step function returns a new State rather than
// mutating its input.
type State interface {
	// Clock returns the simulation time of this state. Step functions must
	// return states with monotonically non-decreasing clocks.
	Clock() float64
}

// ErrWorldEnded is returned by a step function when the simulated world has
// reached a terminal state and no further states can be computed. Crunchers
// translate it into an end marker on their work queue.
var ErrWorldEnded = errors.New("world ended")

// StepFunc advances a state by one step. The args and kwargs carry the
// profile's parameters; implementations must not retain or mutate them.
type StepFunc func(ctx context.Context, s State, args []any, kwargs map[string]any) (State, error)
