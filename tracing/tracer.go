// Package tracing collects per-event dispatch records from a simulator and
// forwards them to storage, file, or in-memory backends.
package tracing

import (
	"time"

	"github.com/sarchlab/tokei/sim"
)

// A Record describes one dispatched event.
type Record struct {
	// Ts is the virtual time the event was scheduled for.
	Ts sim.VTime

	// UID orders the record among records with the same Ts.
	UID uint64

	// Context is the partition the event belongs to.
	Context uint32

	// Realtime is the wall-clock time of the dispatch, normalized to the
	// run origin. It equals Ts when the simulator runs unpaced.
	Realtime sim.VTime

	// Jitter is how far behind the wall clock the dispatch was.
	Jitter sim.VTime

	// Handler is the wall time the handler took to return.
	Handler time.Duration
}

// A Run summarizes one Run call of a simulator. The totals are only filled
// in when the run completes.
type Run struct {
	ID        string
	Policy    string
	HardLimit sim.VTime

	Events  uint64
	Virtual sim.VTime
	Wall    time.Duration
}

// A Tracer can collect the dispatch stream of a simulator.
type Tracer interface {
	// RunStart tells the tracer that a run begins.
	RunStart(run Run)

	// Dispatch hands one dispatched event to the tracer.
	Dispatch(record Record)

	// RunEnd hands the completed run summary to the tracer.
	RunEnd(run Run)
}
