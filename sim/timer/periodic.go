package timer

import (
	"log"
	"sync"

	"github.com/sarchlab/tokei/sim"
)

// A Periodic fires a function at a fixed period, like a clock line.
// Each tick schedules the next one before the function runs, so the
// function can stop the timer without losing the current tick.
type Periodic struct {
	lock   sync.Mutex
	sched  Scheduler
	period sim.VTime
	fn     func()

	event   sim.EventID
	running bool
}

// NewPeriodic creates a stopped periodic timer.
func NewPeriodic(sched Scheduler, period sim.VTime, fn func()) *Periodic {
	if period <= 0 {
		log.Panic("periodic timer needs a positive period")
	}

	return &Periodic{
		sched:  sched,
		period: period,
		fn:     fn,
	}
}

// Start schedules the first tick one period from now. Starting a
// running timer does nothing.
func (p *Periodic) Start() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.event, _ = p.sched.Schedule(p.period, p.tick)
}

// Stop cancels the pending tick. Stopping a stopped timer does nothing.
func (p *Periodic) Stop() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.running {
		return
	}

	p.running = false
	p.sched.Cancel(p.event)
}

func (p *Periodic) tick() {
	p.lock.Lock()

	if !p.running {
		p.lock.Unlock()
		return
	}

	p.event, _ = p.sched.Schedule(p.period, p.tick)
	fn := p.fn
	p.lock.Unlock()

	fn()
}
