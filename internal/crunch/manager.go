package crunch

import (
	"fmt"
	"slices"

	"github.com/haldane/simtree/internal/errors"
	"github.com/haldane/simtree/internal/event"
	"github.com/haldane/simtree/internal/logging"
	"github.com/haldane/simtree/internal/sim"
	"github.com/haldane/simtree/internal/tree"
)

// Project is the manager's view of the project that owns it: the history
// tree to merge work into, and the cruncher backends the project's simpack
// is compatible with (in preference order).
type Project interface {
	Tree() *tree.Tree
	AvailableBackends() []Backend
}

// Manager supervises the background crunching for a project: it hires a
// cruncher per job, drains their work queues into the tree, and retires or
// replaces crunchers as jobs finish, profiles change, or the selected
// backend changes.
//
// All of the manager's maps are private to it. By contract Sync is driven by
// a single loop and AddJob/CancelJob/SetBackend are not called concurrently
// with it; the only lock involved is the tree's, which Sync holds in write
// mode for its full duration.
type Manager struct {
	project Project
	tree    *tree.Tree

	// jobs is the live job list, in insertion order. A done job never
	// survives a Sync call.
	jobs []*Job

	// crunchers maps each job to the one cruncher working on it.
	crunchers map[*Job]Cruncher

	// stepProfiles maps each live cruncher to the step profile its drained
	// states are tagged with. Tracked separately from the job's profile
	// because a running cruncher cannot change step profile: when the job's
	// changes, the cruncher is replaced, and when the cruncher itself
	// switches profile it announces it on its queue.
	stepProfiles map[Cruncher]*sim.StepProfile

	// backend is the kind of cruncher currently being hired. Changing it
	// retires every cruncher of the old kind on the next Sync.
	backend   Backend
	available []Backend

	tracker *ChangeTracker

	queueCapacity int
	log           *logging.Logger
	bus           *event.Bus
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger. Defaults to a no-op logger.
func WithLogger(log *logging.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithBus sets the event bus the manager publishes lifecycle events to.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithQueueCapacity sets the work-queue capacity for newly hired crunchers.
func WithQueueCapacity(capacity int) Option {
	return func(m *Manager) { m.queueCapacity = capacity }
}

// NewManager creates a manager for the given project. It fails with a
// ConfigurationError when the project's simpack is compatible with none of
// the registered backends; otherwise the first available backend becomes
// the initial one.
func NewManager(project Project, opts ...Option) (*Manager, error) {
	available := project.AvailableBackends()
	if len(available) == 0 {
		return nil, errors.NewConfigurationError(
			"simpack is not compatible with any registered cruncher backend",
			errors.ErrNoBackends)
	}

	m := &Manager{
		project:      project,
		tree:         project.Tree(),
		crunchers:    make(map[*Job]Cruncher),
		stepProfiles: make(map[Cruncher]*sim.StepProfile),
		backend:      available[0],
		available:    available,
		tracker:      NewChangeTracker(),
		log:          logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("manager")
	return m, nil
}

// Backend returns the name of the currently selected cruncher backend.
func (m *Manager) Backend() string { return m.backend.Name() }

// SetBackend switches the cruncher backend by name. Crunchers of the old
// kind keep running until the next Sync, which drains and replaces them.
func (m *Manager) SetBackend(name string) error {
	for _, b := range m.available {
		if b.Name() == name {
			if b == m.backend {
				return nil
			}
			old := m.backend.Name()
			m.backend = b
			m.log.Info("cruncher backend switched", "old", old, "new", name)
			m.publish(event.NewBackendChangedEvent(old, name))
			return nil
		}
	}
	return fmt.Errorf("backend %q is not available to this project: %w",
		name, errors.ErrUnknownBackend)
}

// AddJob hands a job to the manager. The job gets a cruncher on the next
// Sync call (unless its node is being edited).
func (m *Manager) AddJob(job *Job) {
	m.jobs = append(m.jobs, job)
	m.log.Debug("job added", "job_id", job.ID, "profile", job.Profile.String())
}

// CancelJob removes a job from the live list. Its cruncher, if any, is
// reaped on the next Sync call, not synchronously. Returns false if the job
// was not in the list.
func (m *Manager) CancelJob(job *Job) bool {
	for i, j := range m.jobs {
		if j == job {
			m.jobs = slices.Delete(m.jobs, i, i+1)
			m.log.Debug("job cancelled", "job_id", job.ID)
			return true
		}
	}
	return false
}

// Jobs returns the live job list.
func (m *Manager) Jobs() []*Job {
	return slices.Clone(m.jobs)
}

// JobsByNode returns every live job whose current node is the given node.
func (m *Manager) JobsByNode(node *tree.Node) []*Job {
	var out []*Job
	for _, job := range m.jobs {
		if job.Node == node {
			out = append(out, job)
		}
	}
	return out
}

// action is the per-job reconciliation decision, computed once and then
// executed. Keeping it explicit pins the tie-break order: a step-profile
// mismatch always wins over a mere crunching-profile mutation.
type action int

const (
	// actionKeep leaves the cruncher running untouched.
	actionKeep action = iota
	// actionFinish removes a done job and retires its cruncher.
	actionFinish
	// actionReplaceForProfile retires a cruncher whose step profile no
	// longer matches the job's and hires a replacement.
	actionReplaceForProfile
	// actionReplaceForType retires a cruncher that died or is of a stale
	// backend kind and hires a replacement.
	actionReplaceForType
	// actionUpdateProfile pushes a mutated crunching profile to the live
	// cruncher.
	actionUpdateProfile
)

// decide picks the reconciliation action for a job whose cruncher's queue
// has just been drained.
func (m *Manager) decide(job *Job, cr Cruncher) action {
	if job.Done() {
		return actionFinish
	}
	if !cr.Alive() || cr.BackendName() != m.backend.Name() {
		return actionReplaceForType
	}
	if !job.Profile.StepProfile().Equal(m.stepProfiles[cr]) {
		return actionReplaceForProfile
	}
	if m.tracker.CheckIn(job.Profile) {
		return actionUpdateProfile
	}
	return actionKeep
}

// Sync takes work from the crunchers and gives them new instructions as
// needed: it merges every queued state into the tree, retires crunchers
// whose jobs were cancelled or finished, and hires or replaces crunchers so
// that every live unfinished job has one of the current backend kind.
//
// Sync holds the tree's write lock for its entire duration and returns the
// total number of nodes added. An error from draining (a queue-contract
// violation) aborts the pass; the maps stay consistent and the next Sync
// resumes from them.
func (m *Manager) Sync() (int, error) {
	m.tree.Lock.Lock()
	defer m.tree.Lock.Unlock()

	total := 0

	// First pass: crunchers whose jobs were cancelled by their owner. Take
	// their remaining work, put it in the tree, and retire them. This runs
	// before job reconciliation so every map entry has a live job below.
	live := make(map[*Job]bool, len(m.jobs))
	for _, job := range m.jobs {
		live[job] = true
	}
	for job, cr := range m.crunchers {
		if live[job] {
			continue
		}
		added, _, err := m.drain(cr, job, true)
		total += added
		if err != nil {
			return total, err
		}
		m.dropCruncher(job, cr)
		m.tracker.Forget(job.Profile)
		m.log.Debug("orphaned cruncher reaped", "job_id", job.ID, "cruncher_id", cr.ID())
		m.publish(event.NewCruncherRetiredEvent(job.ID, cr.ID(), "job_cancelled"))
	}

	// Second pass: every live job, in order.
	for _, job := range slices.Clone(m.jobs) {
		cr, hasCruncher := m.crunchers[job]

		if !hasCruncher {
			if job.Done() {
				m.removeJob(job)
			} else {
				m.conditionalCreate(job)
			}
			continue
		}

		added, leaf, err := m.drain(cr, job, false)
		total += added
		if err != nil {
			return total, err
		}
		job.Node = leaf

		switch m.decide(job, cr) {
		case actionFinish:
			m.removeJob(job)
			cr.Retire()
			m.dropCruncher(job, cr)
			m.publish(event.NewCruncherRetiredEvent(job.ID, cr.ID(), "job_done"))

		case actionReplaceForProfile:
			// Crunchers cannot change step profile on the fly; replace.
			cr.Retire()
			m.dropCruncher(job, cr)
			m.log.Info("step profile changed, replacing cruncher",
				"job_id", job.ID, "cruncher_id", cr.ID())
			m.publish(event.NewCruncherRetiredEvent(job.ID, cr.ID(), "profile_changed"))
			m.conditionalCreate(job)

		case actionReplaceForType:
			// Either the cruncher died on its own, or the user switched
			// backend kinds mid-run. Retire and replace.
			reason := "backend_changed"
			if !cr.Alive() {
				reason = "died"
			}
			cr.Retire()
			m.dropCruncher(job, cr)
			m.log.Info("replacing cruncher", "job_id", job.ID,
				"cruncher_id", cr.ID(), "reason", reason)
			m.publish(event.NewCruncherRetiredEvent(job.ID, cr.ID(), reason))
			m.conditionalCreate(job)

		case actionUpdateProfile:
			cr.UpdateProfile(job.Profile.Snapshot())
			m.log.Debug("crunching profile pushed to cruncher",
				"job_id", job.ID, "cruncher_id", cr.ID())

		case actionKeep:
			// Leave it running.
		}
	}

	m.publish(event.NewSyncCompletedEvent(total, len(m.jobs)))
	return total, nil
}

// drain consumes every item currently available on the cruncher's work
// queue and merges it into the tree, starting at the job's node. It never
// waits for the producer. If retire is set, or the cruncher announced the
// end of the simulation, the cruncher is retired.
//
// Returns the number of nodes added and the new leaf of the job's branch.
func (m *Manager) drain(cr Cruncher, job *Job, retire bool) (int, *tree.Node, error) {
	current := job.Node
	count := 0
	profile := m.stepProfiles[cr]

	for {
		item, ok := cr.Queue().TryNext()
		if !ok {
			break
		}
		switch it := item.(type) {
		case StateItem:
			current = m.tree.AddState(it.State, current, profile)
			count++

		case EndItem:
			m.tree.MakeEnd(current, profile)
			job.ResultedInEnd = true

		case ProfileItem:
			// States after this marker were computed with a new profile.
			profile = it.Profile
			m.stepProfiles[cr] = it.Profile

		default:
			return count, current, fmt.Errorf("draining cruncher %s: %w",
				cr.ID(), errors.NewUnexpectedQueueItem(item))
		}
	}

	if retire || job.ResultedInEnd {
		cr.Retire()
	}
	return count, current, nil
}

// conditionalCreate hires a cruncher for the job, unless the job's node is
// being edited, in which case the job silently waits for a later Sync.
func (m *Manager) conditionalCreate(job *Job) {
	if job.Node.StillInEditing {
		m.log.Debug("node in editing, not hiring", "job_id", job.ID)
		return
	}

	snapshot := job.Profile.Snapshot()
	cr := m.backend.Spawn(job.Node.State, snapshot, Options{
		QueueCapacity: m.queueCapacity,
		Logger:        m.log,
	})
	cr.Start()

	m.crunchers[job] = cr
	m.tracker.CheckIn(job.Profile) // establish the baseline version
	m.stepProfiles[cr] = snapshot.StepProfile

	m.log.Debug("cruncher hired", "job_id", job.ID, "cruncher_id", cr.ID(),
		"backend", cr.BackendName())
	m.publish(event.NewCruncherStartedEvent(job.ID, cr.ID(), cr.BackendName(), job.Node.ID))
}

// removeJob drops a done job from the live list.
func (m *Manager) removeJob(job *Job) {
	for i, j := range m.jobs {
		if j == job {
			m.jobs = slices.Delete(m.jobs, i, i+1)
			break
		}
	}
	m.tracker.Forget(job.Profile)
	m.log.Info("job finished", "job_id", job.ID,
		"clock", job.Node.Clock(), "resulted_in_end", job.ResultedInEnd)
	m.publish(event.NewJobCompletedEvent(job.ID, job.Node.ID, job.ResultedInEnd))
}

// dropCruncher forgets a retired cruncher's map entries.
func (m *Manager) dropCruncher(job *Job, cr Cruncher) {
	delete(m.crunchers, job)
	delete(m.stepProfiles, cr)
}

func (m *Manager) publish(ev event.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}
