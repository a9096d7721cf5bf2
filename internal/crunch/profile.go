package crunch

import (
	"fmt"
	"math"
	"sync"

	"github.com/haldane/simtree/internal/sim"
)

// CrunchingProfile describes how far and how to crunch: a clock target and a
// step profile. It is owned by whoever created the job and may be mutated in
// place (e.g. a user asking to simulate further); every mutation bumps an
// internal version so the manager's ChangeTracker can observe it between
// sync passes.
//
// A CrunchingProfile is safe for concurrent use.
type CrunchingProfile struct {
	mu          sync.Mutex
	clockTarget float64
	stepProfile *sim.StepProfile
	version     uint64
}

// Unbounded is the clock target of a profile that crunches forever (until
// the world ends or the job is cancelled).
func Unbounded() float64 { return math.Inf(1) }

// NewCrunchingProfile creates a profile with the given clock target and step
// profile.
func NewCrunchingProfile(clockTarget float64, stepProfile *sim.StepProfile) *CrunchingProfile {
	return &CrunchingProfile{
		clockTarget: clockTarget,
		stepProfile: stepProfile,
	}
}

// ClockTarget returns the clock value at which crunching should stop.
func (p *CrunchingProfile) ClockTarget() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clockTarget
}

// StepProfile returns the step profile to crunch with.
func (p *CrunchingProfile) StepProfile() *sim.StepProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stepProfile
}

// SetClockTarget changes the clock target.
func (p *CrunchingProfile) SetClockTarget(target float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if target != p.clockTarget {
		p.clockTarget = target
		p.version++
	}
}

// RaiseClockTarget raises the clock target if target exceeds the current
// one; lowering is ignored.
func (p *CrunchingProfile) RaiseClockTarget(target float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if target > p.clockTarget {
		p.clockTarget = target
		p.version++
	}
}

// SetStepProfile changes the step profile.
func (p *CrunchingProfile) SetStepProfile(sp *sim.StepProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !sp.Equal(p.stepProfile) {
		p.stepProfile = sp
		p.version++
	}
}

// Version returns the mutation counter.
func (p *CrunchingProfile) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// DoneWith reports whether a state with the given clock satisfies the
// profile's target.
func (p *CrunchingProfile) DoneWith(clock float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clock >= p.clockTarget
}

// Snapshot returns an immutable copy for handing to a cruncher.
func (p *CrunchingProfile) Snapshot() ProfileSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProfileSnapshot{
		ClockTarget: p.clockTarget,
		StepProfile: p.stepProfile,
	}
}

// String returns a readable form for logs.
func (p *CrunchingProfile) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("CrunchingProfile(target=%v, %v)", p.clockTarget, p.stepProfile)
}

// ProfileSnapshot is the immutable view of a CrunchingProfile that crunchers
// work from. The manager pushes a fresh snapshot to a live cruncher when the
// profile mutates.
type ProfileSnapshot struct {
	ClockTarget float64
	StepProfile *sim.StepProfile
}

// DoneWith reports whether a state with the given clock satisfies the
// snapshot's target.
func (s ProfileSnapshot) DoneWith(clock float64) bool {
	return clock >= s.ClockTarget
}

// ChangeTracker remembers the last-seen version of each crunching profile so
// the manager can ask "has this profile mutated since I last looked?". It
// replaces hidden per-object version state with an explicit map; entries
// must be dropped with Forget when their job goes away.
//
// ChangeTracker is not safe for concurrent use; the manager only touches it
// under the tree lock.
type ChangeTracker struct {
	seen map[*CrunchingProfile]uint64
}

// NewChangeTracker creates an empty tracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{seen: make(map[*CrunchingProfile]uint64)}
}

// CheckIn reports whether p has mutated since the previous CheckIn, and
// records the current version. A profile never seen before counts as
// changed.
func (t *ChangeTracker) CheckIn(p *CrunchingProfile) bool {
	version := p.Version()
	last, ok := t.seen[p]
	t.seen[p] = version
	return !ok || version != last
}

// Forget drops the tracked entry for p.
func (t *ChangeTracker) Forget(p *CrunchingProfile) {
	delete(t.seen, p)
}

// Len returns the number of tracked profiles.
func (t *ChangeTracker) Len() int { return len(t.seen) }
