// Package event defines events for decoupling simtree components.
// The crunching manager publishes lifecycle events here so that front-ends
// and the CLI can observe progress without a direct dependency on the
// manager's internals.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "cruncher.started", "job.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Cruncher Lifecycle Events
// -----------------------------------------------------------------------------

// CruncherStartedEvent is emitted when a cruncher begins working on a job.
type CruncherStartedEvent struct {
	baseEvent
	JobID      string // Job the cruncher was hired for
	CruncherID string // Identifier of the new cruncher
	Backend    string // Backend kind (e.g. "local", "pooled")
	NodeID     string // Tree node the cruncher starts from
}

// NewCruncherStartedEvent creates a CruncherStartedEvent.
func NewCruncherStartedEvent(jobID, cruncherID, backend, nodeID string) CruncherStartedEvent {
	return CruncherStartedEvent{
		baseEvent:  newBaseEvent("cruncher.started"),
		JobID:      jobID,
		CruncherID: cruncherID,
		Backend:    backend,
		NodeID:     nodeID,
	}
}

// CruncherRetiredEvent is emitted when a cruncher is retired, whatever the
// reason: its job finished or was cancelled, its step profile changed, its
// backend kind was switched, or it died on its own.
type CruncherRetiredEvent struct {
	baseEvent
	JobID      string
	CruncherID string
	Reason     string // "job_done", "job_cancelled", "profile_changed", "backend_changed", "died"
}

// NewCruncherRetiredEvent creates a CruncherRetiredEvent.
func NewCruncherRetiredEvent(jobID, cruncherID, reason string) CruncherRetiredEvent {
	return CruncherRetiredEvent{
		baseEvent:  newBaseEvent("cruncher.retired"),
		JobID:      jobID,
		CruncherID: cruncherID,
		Reason:     reason,
	}
}

// -----------------------------------------------------------------------------
// Job and Sync Events
// -----------------------------------------------------------------------------

// JobCompletedEvent is emitted when a job is removed from the live list
// because it reached its clock target or its branch ended.
type JobCompletedEvent struct {
	baseEvent
	JobID         string
	NodeID        string // Final leaf of the job's branch
	ResultedInEnd bool   // True if the simulation ended rather than hitting the target
}

// NewJobCompletedEvent creates a JobCompletedEvent.
func NewJobCompletedEvent(jobID, nodeID string, resultedInEnd bool) JobCompletedEvent {
	return JobCompletedEvent{
		baseEvent:     newBaseEvent("job.completed"),
		JobID:         jobID,
		NodeID:        nodeID,
		ResultedInEnd: resultedInEnd,
	}
}

// SyncCompletedEvent is emitted at the end of every sync pass.
type SyncCompletedEvent struct {
	baseEvent
	NodesAdded int // Nodes added to the tree during this pass
	LiveJobs   int // Jobs remaining in the live list afterwards
}

// NewSyncCompletedEvent creates a SyncCompletedEvent.
func NewSyncCompletedEvent(nodesAdded, liveJobs int) SyncCompletedEvent {
	return SyncCompletedEvent{
		baseEvent:  newBaseEvent("sync.completed"),
		NodesAdded: nodesAdded,
		LiveJobs:   liveJobs,
	}
}

// BackendChangedEvent is emitted when the manager's cruncher backend is
// switched at runtime.
type BackendChangedEvent struct {
	baseEvent
	OldBackend string
	NewBackend string
}

// NewBackendChangedEvent creates a BackendChangedEvent.
func NewBackendChangedEvent(oldBackend, newBackend string) BackendChangedEvent {
	return BackendChangedEvent{
		baseEvent:  newBaseEvent("backend.changed"),
		OldBackend: oldBackend,
		NewBackend: newBackend,
	}
}
