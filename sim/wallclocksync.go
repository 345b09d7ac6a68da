package sim

import (
	"runtime"
	"sync"
	"time"
)

// Waits shorter than the spin window burn the remaining time in a yield
// loop instead of arming a timer, since timer wakeups are only accurate
// to roughly a scheduling quantum.
const spinWindow = 100 * Microsecond

// WallClockSynchronizer paces the simulator against the host's
// monotonic clock.
type WallClockSynchronizer struct {
	mu        sync.Mutex
	condition bool
	wake      chan struct{}

	originTs   VTime
	wallOrigin time.Time

	eventStart time.Time
}

// NewWallClockSynchronizer creates a synchronizer that tracks the
// host's monotonic clock.
func NewWallClockSynchronizer() *WallClockSynchronizer {
	s := new(WallClockSynchronizer)
	s.wake = make(chan struct{}, 1)
	s.wallOrigin = time.Now()

	return s
}

// Realtime returns true.
func (s *WallClockSynchronizer) Realtime() bool {
	return true
}

// SetOrigin binds virtual time ts to the current wall-clock instant.
func (s *WallClockSynchronizer) SetOrigin(ts VTime) {
	s.mu.Lock()
	s.originTs = ts
	s.wallOrigin = time.Now()
	s.mu.Unlock()
}

// CurrentRealtime returns the wall-clock reading mapped onto the
// virtual timeline.
func (s *WallClockSynchronizer) CurrentRealtime() VTime {
	s.mu.Lock()
	originTs, wallOrigin := s.originTs, s.wallOrigin
	s.mu.Unlock()

	return originTs + FromDuration(time.Since(wallOrigin))
}

// Synchronize blocks until the virtual timeline reading now+delay is
// reached on the wall clock, or until Signal interrupts the wait.
// Recomputing the remaining wait from the absolute target each round
// absorbs the drift accumulated by earlier waits.
func (s *WallClockSynchronizer) Synchronize(now, delay VTime) bool {
	target := now + delay

	for {
		if s.conditionSet() {
			return false
		}

		remaining := target - s.CurrentRealtime()
		if remaining <= 0 {
			return true
		}

		if remaining <= spinWindow {
			return s.spinWait(target)
		}

		timer := time.NewTimer((remaining - spinWindow).Duration())
		select {
		case <-s.wake:
			timer.Stop()
			if s.conditionSet() {
				return false
			}
			// Stale wakeup from an earlier, already-consumed signal.
		case <-timer.C:
		}
	}
}

// spinWait yields until the target is reached, watching the interrupt
// flag the whole way.
func (s *WallClockSynchronizer) spinWait(target VTime) bool {
	for s.CurrentRealtime() < target {
		if s.conditionSet() {
			return false
		}
		runtime.Gosched()
	}

	return true
}

// Signal raises the interrupt flag and wakes a blocked Synchronize.
func (s *WallClockSynchronizer) Signal() {
	s.mu.Lock()
	s.condition = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SetCondition overwrites the interrupt flag. Lowering it also drains
// a pending wakeup so the flag alone decides the next wait.
func (s *WallClockSynchronizer) SetCondition(v bool) {
	s.mu.Lock()
	s.condition = v
	s.mu.Unlock()

	if !v {
		select {
		case <-s.wake:
		default:
		}
	}
}

func (s *WallClockSynchronizer) conditionSet() bool {
	s.mu.Lock()
	c := s.condition
	s.mu.Unlock()

	return c
}

// EventStart records the wall-clock instant a handler begins.
func (s *WallClockSynchronizer) EventStart() {
	s.eventStart = time.Now()
}

// EventEnd returns the wall time spent since EventStart.
func (s *WallClockSynchronizer) EventEnd() time.Duration {
	return time.Since(s.eventStart)
}
