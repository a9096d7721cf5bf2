// Package local provides the goroutine-backed cruncher backend. Each
// cruncher runs its step function in a dedicated goroutine, pushing every
// computed state onto its work queue until it reaches its clock target,
// the world ends, or it is retired.
package local

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/haldane/simtree/internal/crunch"
	"github.com/haldane/simtree/internal/errors"
	"github.com/haldane/simtree/internal/logging"
	"github.com/haldane/simtree/internal/sim"
)

// BackendName is the name the backend registers under.
const BackendName = "local"

func init() {
	crunch.RegisterBackend(Backend{})
}

// Backend spawns goroutine-backed crunchers.
type Backend struct{}

// Name returns "local".
func (Backend) Name() string { return BackendName }

// Spawn creates an unstarted cruncher for the given state and profile.
func (Backend) Spawn(initial sim.State, profile crunch.ProfileSnapshot, opts crunch.Options) crunch.Cruncher {
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	id := BackendName + "-" + uuid.NewString()[:8]
	return &Cruncher{
		id:        id,
		initial:   initial,
		profile:   profile,
		queue:     crunch.NewWorkQueue(opts.QueueCapacity),
		profileCh: make(chan crunch.ProfileSnapshot, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       log.WithCruncher(id),
	}
}

// Cruncher is a goroutine-backed worker. It communicates with the manager
// only through its work queue and honors cooperative retirement: a retired
// cruncher stops at the next opportunity, even when blocked on a full queue.
type Cruncher struct {
	id      string
	initial sim.State
	profile crunch.ProfileSnapshot

	queue     *crunch.WorkQueue
	profileCh chan crunch.ProfileSnapshot
	stop      chan struct{}
	done      chan struct{}

	retireOnce sync.Once
	log        *logging.Logger
}

// Start launches the crunching goroutine.
func (c *Cruncher) Start() {
	go c.run()
}

// Retire asks the goroutine to stop. Idempotent; a no-op on a dead worker.
func (c *Cruncher) Retire() {
	c.retireOnce.Do(func() { close(c.stop) })
}

// Alive reports whether the crunching goroutine is still running.
func (c *Cruncher) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// UpdateProfile hands the worker a new crunching profile. Only the latest
// pending update is kept; the manager pushes a fresh snapshot per sync, so
// intermediate ones carry no information.
func (c *Cruncher) UpdateProfile(p crunch.ProfileSnapshot) {
	for {
		select {
		case c.profileCh <- p:
			return
		default:
			select {
			case <-c.profileCh:
			default:
			}
		}
	}
}

// Queue returns the worker's output queue.
func (c *Cruncher) Queue() *crunch.WorkQueue { return c.queue }

// ID returns the worker's identifier.
func (c *Cruncher) ID() string { return c.id }

// BackendName returns "local".
func (c *Cruncher) BackendName() string { return BackendName }

// run is the crunching loop.
func (c *Cruncher) run() {
	defer close(c.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stop
		cancel()
	}()

	state := c.initial
	profile := c.profile

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		// Absorb a pending profile update. A changed step profile is
		// announced on the queue so the manager tags later states with it.
		select {
		case p := <-c.profileCh:
			if !p.StepProfile.Equal(profile.StepProfile) {
				if !c.queue.Put(crunch.ProfileItem{Profile: p.StepProfile}, c.stop) {
					return
				}
			}
			profile = p
		default:
		}

		if profile.DoneWith(state.Clock()) {
			// Target reached. Idle until new orders or retirement; the
			// manager keeps us hired in case the target is raised.
			select {
			case <-c.stop:
				return
			case p := <-c.profileCh:
				if !p.StepProfile.Equal(profile.StepProfile) {
					if !c.queue.Put(crunch.ProfileItem{Profile: p.StepProfile}, c.stop) {
						return
					}
				}
				profile = p
				continue
			}
		}

		next, err := c.step(ctx, state, profile)
		if err != nil {
			if errors.Is(err, sim.ErrWorldEnded) {
				c.queue.Put(crunch.EndItem{}, c.stop)
				c.log.Debug("world ended", "clock", state.Clock())
			} else if !errors.Is(err, context.Canceled) {
				c.log.Error("step function failed", "error", err, "clock", state.Clock())
			}
			return
		}

		if !c.queue.Put(crunch.StateItem{State: next}, c.stop) {
			return
		}
		state = next
	}
}

// step invokes the profile's step function.
func (c *Cruncher) step(ctx context.Context, state sim.State, profile crunch.ProfileSnapshot) (sim.State, error) {
	sp := profile.StepProfile
	return sp.Step().Fn(ctx, state, sp.Args(), sp.Kwargs())
}
