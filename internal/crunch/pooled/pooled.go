// Package pooled provides a cruncher backend that bounds aggregate
// crunching parallelism. Crunchers spawned by one pooled backend share a
// weighted semaphore and acquire a slot per step, so a project with many
// jobs cannot oversubscribe the machine the way unbounded local crunchers
// can.
package pooled

import (
	"context"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/haldane/simtree/internal/crunch"
	"github.com/haldane/simtree/internal/errors"
	"github.com/haldane/simtree/internal/logging"
	"github.com/haldane/simtree/internal/sim"
)

// BackendName is the name the backend registers under.
const BackendName = "pooled"

func init() {
	crunch.RegisterBackend(NewBackend(int64(runtime.GOMAXPROCS(0))))
}

// Backend spawns crunchers sharing one pool of step slots. The pool itself
// is created on the first Spawn, so SetSlots can resize an idle backend
// (the registered one in particular, before any crunching starts).
type Backend struct {
	mu    sync.Mutex
	slots int64
	sem   *semaphore.Weighted
}

// NewBackend creates a backend whose crunchers share slots step slots.
func NewBackend(slots int64) *Backend {
	if slots < 1 {
		slots = 1
	}
	return &Backend{slots: slots}
}

// SetSlots resizes the pool. It has no effect once a cruncher has been
// spawned.
func (b *Backend) SetSlots(slots int64) {
	if slots < 1 {
		slots = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sem == nil {
		b.slots = slots
	}
}

func (b *Backend) pool() *semaphore.Weighted {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sem == nil {
		b.sem = semaphore.NewWeighted(b.slots)
	}
	return b.sem
}

// Name returns "pooled".
func (*Backend) Name() string { return BackendName }

// Spawn creates an unstarted cruncher that draws on the shared pool.
func (b *Backend) Spawn(initial sim.State, profile crunch.ProfileSnapshot, opts crunch.Options) crunch.Cruncher {
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	id := BackendName + "-" + uuid.NewString()[:8]
	return &Cruncher{
		id:        id,
		sem:       b.pool(),
		initial:   initial,
		profile:   profile,
		queue:     crunch.NewWorkQueue(opts.QueueCapacity),
		profileCh: make(chan crunch.ProfileSnapshot, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       log.WithCruncher(id),
	}
}

// Cruncher is a pool-gated worker: identical in contract to the local
// backend's cruncher, but every step first acquires a slot on the backend's
// shared semaphore.
type Cruncher struct {
	id      string
	sem     *semaphore.Weighted
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

// UpdateProfile hands the worker a new crunching profile; only the latest
// pending update is kept.
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

// BackendName returns "pooled".
func (c *Cruncher) BackendName() string { return BackendName }

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

// step acquires a pool slot, invokes the profile's step function, and
// releases the slot.
func (c *Cruncher) step(ctx context.Context, state sim.State, profile crunch.ProfileSnapshot) (sim.State, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	sp := profile.StepProfile
	return sp.Step().Fn(ctx, state, sp.Args(), sp.Kwargs())
}
