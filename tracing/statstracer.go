package tracing

import (
	"sync"
	"time"

	"github.com/sarchlab/tokei/sim"
)

// StatsTracer accumulates summary statistics over the dispatch stream: how
// many events ran, how long their handlers took, and how far the simulator
// drifted behind the wall clock.
type StatsTracer struct {
	lock sync.Mutex

	count          uint64
	averageHandler time.Duration
	averageJitter  sim.VTime
	maxJitter      sim.VTime
}

// NewStatsTracer creates a StatsTracer.
func NewStatsTracer() *StatsTracer {
	return &StatsTracer{}
}

// Count returns the number of records seen so far.
func (t *StatsTracer) Count() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count
}

// AverageHandlerTime returns the average wall time spent in handlers.
func (t *StatsTracer) AverageHandlerTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageHandler
}

// AverageJitter returns the average dispatch jitter.
func (t *StatsTracer) AverageJitter() sim.VTime {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageJitter
}

// MaxJitter returns the largest dispatch jitter seen so far.
func (t *StatsTracer) MaxJitter() sim.VTime {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.maxJitter
}

// RunStart does nothing.
func (t *StatsTracer) RunStart(_ Run) {
	// Do nothing
}

// Dispatch folds the record into the running averages.
func (t *StatsTracer) Dispatch(record Record) {
	t.lock.Lock()
	defer t.lock.Unlock()

	n := float64(t.count)

	t.averageHandler = time.Duration(
		(float64(t.averageHandler)*n + float64(record.Handler)) / (n + 1))
	t.averageJitter = sim.VTime(
		(float64(t.averageJitter)*n + float64(record.Jitter)) / (n + 1))

	if record.Jitter > t.maxJitter {
		t.maxJitter = record.Jitter
	}

	t.count++
}

// RunEnd does nothing.
func (t *StatsTracer) RunEnd(_ Run) {
	// Do nothing
}
