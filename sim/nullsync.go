package sim

import "time"

// NullSynchronizer never waits, so the simulator consumes its queue as
// fast as the host allows. It still keeps a wall-clock origin, which
// lets observers compare virtual progress against real elapsed time.
type NullSynchronizer struct {
	originTs   VTime
	wallOrigin time.Time

	eventStart time.Time
}

// NewNullSynchronizer creates a pacer that runs virtual time at full
// speed.
func NewNullSynchronizer() *NullSynchronizer {
	s := new(NullSynchronizer)
	s.wallOrigin = time.Now()

	return s
}

// Realtime returns false.
func (s *NullSynchronizer) Realtime() bool {
	return false
}

// SetOrigin binds virtual time ts to the current wall-clock instant.
func (s *NullSynchronizer) SetOrigin(ts VTime) {
	s.originTs = ts
	s.wallOrigin = time.Now()
}

// CurrentRealtime returns the wall-clock reading mapped onto the
// virtual timeline.
func (s *NullSynchronizer) CurrentRealtime() VTime {
	return s.originTs + FromDuration(time.Since(s.wallOrigin))
}

// Synchronize returns immediately, reporting the delay as elapsed.
func (s *NullSynchronizer) Synchronize(now, delay VTime) bool {
	return true
}

// Signal does nothing; there is never a wait to interrupt.
func (s *NullSynchronizer) Signal() {}

// SetCondition does nothing.
func (s *NullSynchronizer) SetCondition(v bool) {}

// EventStart records the wall-clock instant a handler begins.
func (s *NullSynchronizer) EventStart() {
	s.eventStart = time.Now()
}

// EventEnd returns the wall time spent since EventStart.
func (s *NullSynchronizer) EventEnd() time.Duration {
	return time.Since(s.eventStart)
}
