package crunch

import (
	"github.com/haldane/simtree/internal/sim"
)

// QueueItem is one element of a cruncher's work queue. The contract is
// closed: a cruncher may push states, one end marker, and step-profile
// updates, nothing else. The manager treats any other payload as a fatal
// protocol violation.
type QueueItem interface {
	queueItem()
}

// StateItem carries one freshly computed state.
type StateItem struct {
	State sim.State
}

// EndItem marks the end of the simulated world: no state can follow the one
// pushed before it.
type EndItem struct{}

// ProfileItem announces that states pushed after it were computed with a new
// step profile. It does not carry a state.
type ProfileItem struct {
	Profile *sim.StepProfile
}

func (StateItem) queueItem()   {}
func (EndItem) queueItem()     {}
func (ProfileItem) queueItem() {}

// WorkQueue is the single-producer/single-consumer FIFO between one cruncher
// (producer) and the manager (consumer). The producer blocks when the queue
// is full; the consumer never blocks.
type WorkQueue struct {
	ch chan QueueItem
}

// DefaultQueueCapacity bounds how far a cruncher can run ahead of the
// manager between sync passes.
const DefaultQueueCapacity = 1024

// NewWorkQueue creates a queue with the given capacity; zero or negative
// means DefaultQueueCapacity.
func NewWorkQueue(capacity int) *WorkQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &WorkQueue{ch: make(chan QueueItem, capacity)}
}

// Put appends item to the queue, blocking while the queue is full. It
// returns false if stop is closed before space frees up, so a retiring
// cruncher blocked on a full queue can still exit.
func (q *WorkQueue) Put(item QueueItem, stop <-chan struct{}) bool {
	select {
	case q.ch <- item:
		return true
	case <-stop:
		return false
	}
}

// TryNext pops the next item without blocking. It returns ok=false when no
// item is currently available; it never waits for the producer.
func (q *WorkQueue) TryNext() (QueueItem, bool) {
	select {
	case item := <-q.ch:
		return item, true
	default:
		return nil, false
	}
}

// Len returns the number of items currently buffered.
func (q *WorkQueue) Len() int { return len(q.ch) }
