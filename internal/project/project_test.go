package project

import (
	"context"
	"testing"
	"time"

	"github.com/haldane/simtree/internal/crunch"
	_ "github.com/haldane/simtree/internal/crunch/local"
	"github.com/haldane/simtree/internal/errors"
	"github.com/haldane/simtree/internal/sim"
	"github.com/haldane/simtree/internal/simpacks/walk"
)

func newWalkProject(t *testing.T) *Project {
	t.Helper()
	p, err := New(walk.New(), walk.Initial())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// syncUntil drives Sync until cond holds or the deadline passes.
func syncUntil(t *testing.T, p *Project, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := p.Sync(); err != nil {
			t.Fatalf("Sync: %v", err)
		}
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestNewResolvesRegisteredBackendsOnly(t *testing.T) {
	// The walk simpack is compatible with local and pooled, but only the
	// local backend is linked into this test binary.
	p := newWalkProject(t)
	backends := p.AvailableBackends()
	if len(backends) != 1 || backends[0].Name() != "local" {
		t.Fatalf("AvailableBackends() = %v, want just local", backends)
	}
	if got := p.Manager().Backend(); got != "local" {
		t.Errorf("manager backend = %q, want %q", got, "local")
	}
}

func TestNewFailsWithoutBackends(t *testing.T) {
	sp := sim.NewSimpack(t.Name(), "no-such-backend")
	sp.RegisterStep("noop", func(_ context.Context, s sim.State, _ []any, _ map[string]any) (sim.State, error) {
		return s, nil
	})
	_, err := New(sp, walk.Initial())
	if !errors.Is(err, errors.ErrNoBackends) {
		t.Fatalf("err = %v, want ErrNoBackends", err)
	}
}

func TestCrunchToClockTarget(t *testing.T) {
	p := newWalkProject(t)
	job, err := p.BeginCrunching(p.Tree().Root(), 3, nil, nil)
	if err != nil {
		t.Fatalf("BeginCrunching: %v", err)
	}

	syncUntil(t, p, job.Done)

	p.Tree().Lock.RLock()
	leaves := p.Tree().Leaves()
	if len(leaves) != 1 {
		t.Fatalf("got %d leaves, want 1", len(leaves))
	}
	if leaves[0].Clock() < 3 {
		t.Errorf("leaf clock = %v, want >= 3", leaves[0].Clock())
	}
	if leaves[0].StepProfile == nil {
		t.Error("crunched nodes should carry the step profile that made them")
	}
	p.Tree().Lock.RUnlock()

	// The finished job leaves the roster once synced.
	syncUntil(t, p, func() bool { return len(p.Manager().Jobs()) == 0 })
}

func TestBeginCrunchingCoalescesSameProfile(t *testing.T) {
	p := newWalkProject(t)
	root := p.Tree().Root()

	first, err := p.BeginCrunching(root, 2, nil, nil)
	if err != nil {
		t.Fatalf("BeginCrunching: %v", err)
	}
	second, err := p.BeginCrunching(root, 5, nil, nil)
	if err != nil {
		t.Fatalf("BeginCrunching: %v", err)
	}
	if first != second {
		t.Fatal("same node and step profile should coalesce into one job")
	}
	if got := first.Profile.ClockTarget(); got != 5 {
		t.Errorf("clock target = %v, want 5", got)
	}

	// A different step profile on the same node is a separate job.
	third, err := p.BeginCrunching(root, 5, []any{"drift"}, nil)
	if err != nil {
		t.Fatalf("BeginCrunching: %v", err)
	}
	if third == first {
		t.Fatal("different step profile should get its own job")
	}
	if got := len(p.Manager().JobsByNode(root)); got != 2 {
		t.Errorf("jobs on root = %d, want 2", got)
	}
}

func TestBeginCrunchingRejectsBadStep(t *testing.T) {
	p := newWalkProject(t)
	_, err := p.BeginCrunching(p.Tree().Root(), 3, nil, map[string]any{"step_function": "levitate"})
	if !errors.Is(err, errors.ErrUnknownStep) {
		t.Fatalf("err = %v, want ErrUnknownStep", err)
	}
}

func TestStopCrunchingRetiresTheCruncher(t *testing.T) {
	p := newWalkProject(t)
	job, err := p.BeginCrunching(p.Tree().Root(), crunch.Unbounded(), nil, nil)
	if err != nil {
		t.Fatalf("BeginCrunching: %v", err)
	}

	// Hire the cruncher and let it produce something.
	syncUntil(t, p, func() bool { return p.Tree().Len() > 1 })

	if !p.StopCrunching(job) {
		t.Fatal("StopCrunching should report a live job")
	}
	if p.StopCrunching(job) {
		t.Error("second StopCrunching should report the job gone")
	}

	if _, err := p.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := len(p.Manager().Jobs()); got != 0 {
		t.Errorf("jobs after cancel = %d, want 0", got)
	}
}

func TestRunReturnsWhenAllJobsDone(t *testing.T) {
	p := newWalkProject(t)
	if _, err := p.BeginCrunching(p.Tree().Root(), 3, nil, nil); err != nil {
		t.Fatalf("BeginCrunching: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), time.Millisecond) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the job finished")
	}

	p.Tree().Lock.RLock()
	defer p.Tree().Lock.RUnlock()
	if got := p.Tree().Leaves()[0].Clock(); got < 3 {
		t.Errorf("leaf clock = %v, want >= 3", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := newWalkProject(t)
	if _, err := p.BeginCrunching(p.Tree().Root(), crunch.Unbounded(), nil, nil); err != nil {
		t.Fatalf("BeginCrunching: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, time.Millisecond) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p.Tree().Lock.RLock()
		n := p.Tree().Len()
		p.Tree().Lock.RUnlock()
		if n > 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if got := len(p.Manager().Jobs()); got != 0 {
		t.Errorf("jobs after shutdown = %d, want 0", got)
	}
}
