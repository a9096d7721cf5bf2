// Package project ties one simulation together: a simpack, the branching
// history tree grown from an initial state, and the crunching manager that
// keeps background workers feeding that tree.
package project

import (
	"context"
	"time"

	"github.com/haldane/simtree/internal/crunch"
	"github.com/haldane/simtree/internal/event"
	"github.com/haldane/simtree/internal/logging"
	"github.com/haldane/simtree/internal/sim"
	"github.com/haldane/simtree/internal/tree"
)

// Project owns a tree, a simpack, and the manager crunching for it. Create
// projects with New.
//
// A project is single-driver: one goroutine calls BeginCrunching,
// StopCrunching, Sync, and Run. Tree readers in other goroutines take the
// tree's lock in read mode.
type Project struct {
	simpack  *sim.Simpack
	tr       *tree.Tree
	bus      *event.Bus
	log      *logging.Logger
	queueCap int
	backends []crunch.Backend
	manager  *crunch.Manager
}

// Option configures a Project.
type Option func(*Project)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *logging.Logger) Option {
	return func(p *Project) { p.log = log }
}

// WithBus sets the event bus shared with the manager. Defaults to a fresh bus.
func WithBus(bus *event.Bus) Option {
	return func(p *Project) { p.bus = bus }
}

// WithQueueCapacity sets the per-cruncher work queue capacity.
func WithQueueCapacity(capacity int) Option {
	return func(p *Project) { p.queueCap = capacity }
}

// New creates a project around the simpack and grows a tree from the initial
// state. The simpack's compatible backends are resolved against the backend
// registry in order; unregistered names are skipped. Construction fails if
// none resolve.
func New(sp *sim.Simpack, initial sim.State, opts ...Option) (*Project, error) {
	p := &Project{
		simpack:  sp,
		tr:       tree.New(initial),
		bus:      event.NewBus(),
		log:      logging.NopLogger(),
		queueCap: crunch.DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, name := range sp.CompatibleBackends() {
		if b, ok := crunch.LookupBackend(name); ok {
			p.backends = append(p.backends, b)
		}
	}

	manager, err := crunch.NewManager(p,
		crunch.WithLogger(p.log),
		crunch.WithBus(p.bus),
		crunch.WithQueueCapacity(p.queueCap),
	)
	if err != nil {
		return nil, err
	}
	p.manager = manager
	return p, nil
}

// Tree returns the project's history tree.
func (p *Project) Tree() *tree.Tree { return p.tr }

// AvailableBackends returns the resolved compatible backends in preference
// order.
func (p *Project) AvailableBackends() []crunch.Backend { return p.backends }

// Simpack returns the project's simpack.
func (p *Project) Simpack() *sim.Simpack { return p.simpack }

// Bus returns the project's event bus.
func (p *Project) Bus() *event.Bus { return p.bus }

// Manager returns the crunching manager.
func (p *Project) Manager() *crunch.Manager { return p.manager }

// BeginCrunching asks for the simulation to be crunched from node up to
// clockTarget. args and kwargs select and parameterize the step function the
// way ParseStepProfile does; pass nil for the simpack default.
//
// If a job already crunches from the same node with the same step profile,
// its clock target is raised instead and the existing job is returned.
func (p *Project) BeginCrunching(node *tree.Node, clockTarget float64, args []any, kwargs map[string]any) (*crunch.Job, error) {
	stepProfile, err := p.simpack.ParseStepProfile(p.simpack.DefaultStep(), args, kwargs)
	if err != nil {
		return nil, err
	}

	for _, job := range p.manager.JobsByNode(node) {
		if job.Profile.StepProfile().Equal(stepProfile) {
			job.Profile.RaiseClockTarget(clockTarget)
			p.log.Debug("raised clock target of existing job",
				"job", job.ID, "clock_target", clockTarget)
			return job, nil
		}
	}

	job := crunch.NewJob(node, crunch.NewCrunchingProfile(clockTarget, stepProfile))
	p.manager.AddJob(job)
	p.log.Info("began crunching",
		"job", job.ID, "node", node.ID, "clock_target", clockTarget,
		"step_profile", stepProfile.String())
	return job, nil
}

// StopCrunching cancels the job. The cruncher it may have hired is retired
// on the next Sync, after its queued work is merged into the tree. Reports
// whether the job was live.
func (p *Project) StopCrunching(job *crunch.Job) bool {
	return p.manager.CancelJob(job)
}

// Sync merges all queued cruncher work into the tree and reconciles the
// cruncher workforce with the current jobs. Returns the number of states
// merged.
func (p *Project) Sync() (int, error) {
	return p.manager.Sync()
}

// Run drives Sync on the given interval until every job has finished, ctx is
// cancelled, or a sync fails. Cancellation is not an error.
func (p *Project) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Shutdown()
			return nil
		case <-ticker.C:
			if _, err := p.manager.Sync(); err != nil {
				p.Shutdown()
				return err
			}
			if len(p.manager.Jobs()) == 0 {
				return nil
			}
		}
	}
}

// Shutdown cancels every live job and runs a final sync so their crunchers
// are drained and retired.
func (p *Project) Shutdown() {
	for _, job := range p.manager.Jobs() {
		p.manager.CancelJob(job)
	}
	if _, err := p.manager.Sync(); err != nil {
		p.log.Warn("final sync failed", "error", err)
	}
}
