package crunch

import (
	"sort"
	"sync"

	"github.com/haldane/simtree/internal/logging"
	"github.com/haldane/simtree/internal/sim"
)

// Cruncher is a background worker crunching one job. Implementations run
// concurrently with the manager and communicate only through their work
// queue; they never touch the tree.
type Cruncher interface {
	// Start launches the worker. Called exactly once, by the manager.
	Start()

	// Retire asks the worker to stop cooperatively. It must be idempotent
	// and must be a no-op on a worker that already died.
	Retire()

	// Alive reports whether the worker is still running. A retired or
	// crashed worker reports false once it has wound down.
	Alive() bool

	// UpdateProfile pushes a new crunching profile to a running worker.
	// Workers may not change step function mid-run by manager order (the
	// manager replaces them instead), but they honor clock-target changes
	// and may themselves switch profile, announcing it with a ProfileItem.
	UpdateProfile(ProfileSnapshot)

	// Queue returns the worker's output queue. The manager is its only
	// consumer.
	Queue() *WorkQueue

	// ID identifies the worker in logs and events.
	ID() string

	// BackendName returns the name of the backend that spawned this worker.
	// The manager uses it to detect workers of a stale backend kind.
	BackendName() string
}

// Options carries the spawn-time knobs a backend needs.
type Options struct {
	// QueueCapacity bounds the work queue; zero means the default.
	QueueCapacity int
	// Logger receives the worker's own log output; nil means discard.
	Logger *logging.Logger
}

// Backend creates crunchers of one kind. Backends register themselves in an
// init function; simpacks declare which backend names they are compatible
// with, and the manager spawns from whichever backend is currently selected.
type Backend interface {
	// Name returns the unique backend name (e.g. "local").
	Name() string

	// Spawn creates an unstarted cruncher that will advance initial
	// according to profile.
	Spawn(initial sim.State, profile ProfileSnapshot, opts Options) Cruncher
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// RegisterBackend makes a backend available by name. It panics on a
// duplicate name, mirroring database/sql driver registration.
func RegisterBackend(b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, dup := backends[b.Name()]; dup {
		panic("crunch: RegisterBackend called twice for backend " + b.Name())
	}
	backends[b.Name()] = b
}

// LookupBackend returns the registered backend with the given name.
func LookupBackend(name string) (Backend, bool) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	return b, ok
}

// Backends returns the names of all registered backends, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
