package tracing

import (
	"sync"

	"github.com/eapache/queue"
)

// RingTracer keeps the most recent dispatch records in memory, so that the
// monitor can show what a simulator is doing right now.
type RingTracer struct {
	mu       sync.Mutex
	capacity int
	records  *queue.Queue
}

// NewRingTracer creates a RingTracer that remembers up to capacity records.
func NewRingTracer(capacity int) *RingTracer {
	if capacity <= 0 {
		panic("ring tracer capacity must be positive")
	}

	return &RingTracer{
		capacity: capacity,
		records:  queue.New(),
	}
}

// RunStart does nothing.
func (t *RingTracer) RunStart(_ Run) {
	// Do nothing
}

// Dispatch appends the record, dropping the oldest one when the ring is
// full.
func (t *RingTracer) Dispatch(record Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records.Add(record)

	for t.records.Length() > t.capacity {
		t.records.Remove()
	}
}

// RunEnd does nothing.
func (t *RingTracer) RunEnd(_ Run) {
	// Do nothing
}

// Records returns the buffered records, oldest first.
func (t *RingTracer) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, 0, t.records.Length())
	for i := 0; i < t.records.Length(); i++ {
		out = append(out, t.records.Get(i).(Record))
	}

	return out
}

// Capacity returns the maximum number of records the tracer remembers.
func (t *RingTracer) Capacity() int {
	return t.capacity
}
