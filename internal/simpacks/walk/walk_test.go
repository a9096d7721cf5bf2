package walk

import (
	"context"
	"math"
	"testing"

	"github.com/haldane/simtree/internal/errors"
	"github.com/haldane/simtree/internal/sim"
)

func TestSimpackShape(t *testing.T) {
	sp := New()
	if sp.Name() != "walk" {
		t.Errorf("Name() = %q, want %q", sp.Name(), "walk")
	}
	if got := sp.DefaultStep().Name; got != "walk" {
		t.Errorf("default step = %q, want %q", got, "walk")
	}
	if _, ok := sp.Step("drift"); !ok {
		t.Error("step drift should be registered")
	}
	backends := sp.CompatibleBackends()
	if len(backends) != 2 || backends[0] != "local" || backends[1] != "pooled" {
		t.Errorf("CompatibleBackends() = %v, want [local pooled]", backends)
	}
}

func TestWalkAdvancesClockByOne(t *testing.T) {
	sp := New()
	step, _ := sp.Step("walk")
	next, err := step.Fn(context.Background(), State{Time: 3, Position: 0.5}, nil, nil)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if next.Clock() != 4 {
		t.Errorf("clock = %v, want 4", next.Clock())
	}
}

func TestWalkBoundedByStepSize(t *testing.T) {
	sp := New()
	step, _ := sp.Step("walk")
	kwargs := map[string]any{"step_size": 0.25}
	s := sim.State(State{})
	for i := 0; i < 50; i++ {
		next, err := step.Fn(context.Background(), s, nil, kwargs)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		moved := next.(State).Position - s.(State).Position
		if math.Abs(moved) > 0.25 {
			t.Fatalf("step %d moved %v, want at most 0.25", i, moved)
		}
		s = next
	}
}

func TestDriftIsDeterministic(t *testing.T) {
	sp := New()
	step, _ := sp.Step("drift")
	kwargs := map[string]any{"bias": 2.0, "step_size": 0.5}
	next, err := step.Fn(context.Background(), State{}, nil, kwargs)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := next.(State).Position; got != 2.5 {
		t.Errorf("position = %v, want 2.5", got)
	}
}

func TestEndAtEndsTheWorld(t *testing.T) {
	sp := New()
	step, _ := sp.Step("drift")
	kwargs := map[string]any{"bias": 1.0, "step_size": 0, "end_at": 3.0}
	s := sim.State(State{})
	var err error
	steps := 0
	for {
		var next sim.State
		next, err = step.Fn(context.Background(), s, nil, kwargs)
		if err != nil {
			break
		}
		s = next
		if steps++; steps > 10 {
			t.Fatal("world never ended")
		}
	}
	if !errors.Is(err, sim.ErrWorldEnded) {
		t.Fatalf("err = %v, want ErrWorldEnded", err)
	}
	if s.Clock() != 2 {
		t.Errorf("last surviving clock = %v, want 2", s.Clock())
	}
}
