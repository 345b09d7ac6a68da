package timer

import (
	"log"
	"math/bits"
	"math/rand"
	"sync"

	"github.com/sarchlab/tokei/sim"
)

// A TrickleTimer implements the Trickle algorithm from RFC 6206. It
// fires a function at a point chosen uniformly in the second half of
// its current interval, doubles the interval up to a maximum while the
// network stays consistent, and falls back to the minimum interval on
// an inconsistency. When redundancy is positive, the firing is
// suppressed in intervals that saw at least that many consistent
// events.
type TrickleTimer struct {
	lock  sync.Mutex
	sched Scheduler
	fn    func()

	minInterval sim.VTime
	maxInterval sim.VTime
	redundancy  int

	interval sim.VTime
	counter  int
	enabled  bool

	timerEvent    sim.EventID
	intervalEvent sim.EventID
}

// NewTrickleTimer creates a disabled trickle timer. The maximum
// interval is the minimum doubled the given number of times; a
// redundancy of zero disables suppression.
func NewTrickleTimer(
	sched Scheduler,
	minInterval sim.VTime,
	doublings int,
	redundancy int,
) *TrickleTimer {
	if minInterval <= 0 {
		log.Panic("trickle timer needs a positive minimum interval")
	}

	if doublings < 0 || doublings > 62 ||
		minInterval > sim.MaxSimulationTime>>uint(doublings) {
		log.Panic("trickle timer doublings out of the 64-bit timeline")
	}

	if redundancy < 0 {
		log.Panic("trickle timer redundancy must not be negative")
	}

	return &TrickleTimer{
		sched:       sched,
		minInterval: minInterval,
		maxInterval: minInterval << doublings,
		redundancy:  redundancy,
	}
}

// SetFunction sets the function to fire.
func (t *TrickleTimer) SetFunction(fn func()) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.fn = fn
}

// IntervalMin returns the minimum interval.
func (t *TrickleTimer) IntervalMin() sim.VTime {
	return t.minInterval
}

// IntervalMax returns the maximum interval.
func (t *TrickleTimer) IntervalMax() sim.VTime {
	return t.maxInterval
}

// Doublings returns the number of interval doublings between the
// minimum and the maximum interval.
func (t *TrickleTimer) Doublings() int {
	return bits.TrailingZeros64(uint64(t.maxInterval / t.minInterval))
}

// Redundancy returns the suppression threshold.
func (t *TrickleTimer) Redundancy() int {
	return t.redundancy
}

// Enable starts the timer. As RFC 6206 prescribes for a node joining a
// steady network, the first interval is picked uniformly from
// [IntervalMin, IntervalMax].
func (t *TrickleTimer) Enable() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.fn == nil {
		log.Panic("enabling a trickle timer with no function set")
	}

	if t.enabled {
		return
	}

	t.enabled = true
	t.interval = t.minInterval +
		sim.VTime(rand.Int63n(int64(t.maxInterval-t.minInterval)+1))
	t.startIntervalLocked()
}

// Stop cancels the pending events and disables the timer.
func (t *TrickleTimer) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.cancelEventsLocked()
	t.counter = 0
	t.enabled = false
}

// Reset restarts the timer at the minimum interval.
func (t *TrickleTimer) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.enabled {
		log.Panic("resetting a disabled trickle timer")
	}

	t.resetLocked()
}

// ConsistentEvent counts a consistent transmission heard from the
// network. Reaching the redundancy threshold suppresses the firing for
// the rest of the interval.
func (t *TrickleTimer) ConsistentEvent() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.counter++
}

// InconsistentEvent resets the timer to the minimum interval, unless it
// is already there.
func (t *TrickleTimer) InconsistentEvent() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.enabled || t.interval <= t.minInterval {
		return
	}

	t.resetLocked()
}

func (t *TrickleTimer) resetLocked() {
	t.cancelEventsLocked()
	t.interval = t.minInterval
	t.startIntervalLocked()
}

func (t *TrickleTimer) cancelEventsLocked() {
	t.sched.Cancel(t.timerEvent)
	t.sched.Cancel(t.intervalEvent)
}

// startIntervalLocked opens a new interval: the counter restarts, the
// firing point lands uniformly in [I/2, I), and the interval expiration
// closes the interval.
func (t *TrickleTimer) startIntervalLocked() {
	t.counter = 0

	point := t.interval / 2
	if spread := t.interval - point; spread > 0 {
		point += sim.VTime(rand.Int63n(int64(spread)))
	}

	t.timerEvent, _ = t.sched.Schedule(point, t.timerExpire)
	t.intervalEvent, _ = t.sched.Schedule(t.interval, t.intervalExpire)
}

func (t *TrickleTimer) timerExpire() {
	t.lock.Lock()
	fire := t.enabled && (t.redundancy == 0 || t.counter < t.redundancy)
	fn := t.fn
	t.lock.Unlock()

	if fire {
		fn()
	}
}

func (t *TrickleTimer) intervalExpire() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.enabled {
		return
	}

	t.interval *= 2
	if t.interval > t.maxInterval {
		t.interval = t.maxInterval
	}

	t.startIntervalLocked()
}
