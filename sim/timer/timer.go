// Package timer provides virtual-time timer utilities built on the
// simulator's insertion API: a watchdog, a periodic ticker, an event
// garbage collector, and an RFC 6206 trickle timer.
package timer

import (
	"github.com/sarchlab/tokei/sim"
)

// A Scheduler is the slice of the simulator the timers need. It is
// satisfied by *sim.Simulator.
type Scheduler interface {
	Now() sim.VTime
	Schedule(delay sim.VTime, fn func()) (sim.EventID, error)
	Cancel(id sim.EventID)
	IsExpired(id sim.EventID) bool
}

var _ Scheduler = (*sim.Simulator)(nil)
