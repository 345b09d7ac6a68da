package sim

import "time"

// A Synchronizer paces the simulator against an external clock. The
// wall-clock implementation makes virtual time advance no faster than
// real time; the null implementation lets events run back to back.
//
// Signal and SetCondition form a level-triggered interrupt: a Signal
// delivered before the next Synchronize still makes that Synchronize
// return immediately, until SetCondition(false) rearms the wait. The
// simulator signals on every insertion so that an in-progress wait
// re-evaluates the queue head.
type Synchronizer interface {
	// Realtime reports whether the synchronizer tracks wall time.
	Realtime() bool

	// SetOrigin binds virtual time ts to the current wall-clock
	// instant. Subsequent CurrentRealtime readings are expressed
	// relative to this binding.
	SetOrigin(ts VTime)

	// CurrentRealtime returns the current wall-clock reading mapped
	// onto the virtual timeline: origin ts plus the wall time elapsed
	// since SetOrigin.
	CurrentRealtime() VTime

	// Synchronize blocks until delay of wall-clock time has passed
	// beyond now on the virtual timeline, or until Signal interrupts
	// the wait. It returns true if the full delay elapsed and false
	// if it was interrupted.
	Synchronize(now, delay VTime) bool

	// Signal interrupts an in-progress or upcoming Synchronize. Safe
	// to call from any goroutine.
	Signal()

	// SetCondition overwrites the interrupt flag. The simulator calls
	// SetCondition(false) before each paced wait to rearm it.
	SetCondition(v bool)

	// EventStart marks the beginning of a handler invocation.
	EventStart()

	// EventEnd marks the end of a handler invocation and returns the
	// wall time the handler consumed.
	EventEnd() time.Duration
}
