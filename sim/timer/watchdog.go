package timer

import (
	"log"
	"sync"

	"github.com/sarchlab/tokei/sim"
)

// A Watchdog fires a function when it has not been pinged for long
// enough. Ping arms the watchdog, or pushes the deadline further out if
// it is already armed; the deadline never moves closer. After firing,
// the watchdog is idle until the next ping.
//
// The deadline event is lazy: pinging does not reschedule it. When the
// queued event fires before the extended deadline, it reschedules
// itself for the remainder.
type Watchdog struct {
	lock  sync.Mutex
	sched Scheduler
	fn    func()

	event sim.EventID
	end   sim.VTime
}

// NewWatchdog creates an idle watchdog.
func NewWatchdog(sched Scheduler) *Watchdog {
	return &Watchdog{sched: sched}
}

// SetFunction sets the function to fire when the watchdog expires.
func (w *Watchdog) SetFunction(fn func()) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.fn = fn
}

// Ping keeps the watchdog quiet for at least the given delay from now.
func (w *Watchdog) Ping(delay sim.VTime) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.fn == nil {
		log.Panic("pinging a watchdog with no function set")
	}

	now := w.sched.Now()
	if end := now + delay; end > w.end {
		w.end = end
	}

	if w.sched.IsExpired(w.event) {
		w.event, _ = w.sched.Schedule(w.end-now, w.expire)
	}
}

func (w *Watchdog) expire() {
	w.lock.Lock()

	now := w.sched.Now()
	if now < w.end {
		w.event, _ = w.sched.Schedule(w.end-now, w.expire)
		w.lock.Unlock()
		return
	}

	fn := w.fn
	w.lock.Unlock()

	fn()
}
