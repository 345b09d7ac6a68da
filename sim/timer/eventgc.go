package timer

import (
	"sync"

	"github.com/sarchlab/tokei/sim"
)

// Cleanup thresholds for the tracked-event list. The threshold doubles
// up to chunkMaxSize and grows linearly from there, so a collector that
// tracks many live events does not rescan them on every insert.
const (
	chunkInitSize = 8
	chunkMaxSize  = 128
)

// An EventGarbageCollector tracks scheduled events and cancels the ones
// still pending when it is released. It suits objects that schedule
// many events of the same kind and want them bounded by the object's
// lifetime.
type EventGarbageCollector struct {
	lock  sync.Mutex
	sched Scheduler

	nextCleanupSize int
	events          []sim.EventID
}

// NewEventGarbageCollector creates an empty collector.
func NewEventGarbageCollector(sched Scheduler) *EventGarbageCollector {
	return &EventGarbageCollector{
		sched:           sched,
		nextCleanupSize: chunkInitSize,
	}
}

// Track adds an event to the collector.
func (gc *EventGarbageCollector) Track(id sim.EventID) {
	gc.lock.Lock()
	defer gc.lock.Unlock()

	gc.events = append(gc.events, id)

	if len(gc.events) >= gc.nextCleanupSize {
		gc.cleanup()
	}
}

// Len returns the number of tracked events, expired ones included.
func (gc *EventGarbageCollector) Len() int {
	gc.lock.Lock()
	defer gc.lock.Unlock()

	return len(gc.events)
}

// Release cancels every tracked event that has not expired yet and
// forgets them all. The collector can be reused afterwards.
func (gc *EventGarbageCollector) Release() {
	gc.lock.Lock()
	defer gc.lock.Unlock()

	for _, id := range gc.events {
		gc.sched.Cancel(id)
	}

	gc.events = nil
	gc.nextCleanupSize = chunkInitSize
}

func (gc *EventGarbageCollector) cleanup() {
	kept := gc.events[:0]
	for _, id := range gc.events {
		if !gc.sched.IsExpired(id) {
			kept = append(kept, id)
		}
	}

	// Clear the tail so dropped ids do not pin their handlers.
	for i := len(kept); i < len(gc.events); i++ {
		gc.events[i] = sim.EventID{}
	}
	gc.events = kept

	if len(gc.events) >= gc.nextCleanupSize {
		gc.grow()
	} else {
		gc.shrink()
	}
}

func (gc *EventGarbageCollector) grow() {
	if gc.nextCleanupSize < chunkMaxSize {
		gc.nextCleanupSize += gc.nextCleanupSize
	} else {
		gc.nextCleanupSize += chunkMaxSize
	}
}

func (gc *EventGarbageCollector) shrink() {
	for gc.nextCleanupSize > chunkInitSize && gc.nextCleanupSize > len(gc.events) {
		gc.nextCleanupSize >>= 1
	}

	gc.grow()
}
