// Package walk is a small demonstration simpack: a biased one-dimensional
// random walk. It exists so the CLI has something real to crunch and so the
// project layer can be exercised end to end in tests.
package walk

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/haldane/simtree/internal/sim"
)

// State is one moment of the walk.
type State struct {
	Time     float64
	Position float64
}

// Clock returns the simulation time.
func (s State) Clock() float64 { return s.Time }

// Initial is the walk's starting state.
func Initial() State { return State{} }

// New builds the walk simpack. Step "walk" takes a biased random step each
// tick; step "drift" moves deterministically. Both honor these kwargs:
//
//	bias      float64  mean displacement per tick (default 0)
//	step_size float64  scale of each move (default 1)
//	end_at    float64  position at which the world ends (default none)
func New() *sim.Simpack {
	sp := sim.NewSimpack("walk", "local", "pooled")
	sp.RegisterStep("walk", stepWalk)
	sp.RegisterStep("drift", stepDrift)
	return sp
}

func stepWalk(_ context.Context, s sim.State, _ []any, kwargs map[string]any) (sim.State, error) {
	w := s.(State)
	move := floatKwarg(kwargs, "bias", 0) + floatKwarg(kwargs, "step_size", 1)*(2*rand.Float64()-1)
	return advance(w, move, kwargs)
}

func stepDrift(_ context.Context, s sim.State, _ []any, kwargs map[string]any) (sim.State, error) {
	w := s.(State)
	return advance(w, floatKwarg(kwargs, "bias", 0)+floatKwarg(kwargs, "step_size", 1), kwargs)
}

func advance(w State, move float64, kwargs map[string]any) (sim.State, error) {
	next := State{Time: w.Time + 1, Position: w.Position + move}
	if end, ok := kwargs["end_at"]; ok {
		if limit, ok := toFloat(end); ok && math.Abs(next.Position) >= math.Abs(limit) {
			return nil, sim.ErrWorldEnded
		}
	}
	return next, nil
}

func floatKwarg(kwargs map[string]any, key string, fallback float64) float64 {
	if v, ok := kwargs[key]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return fallback
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
