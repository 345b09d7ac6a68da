package sim

// Schedule runs fn the given delay after the current time, tagged with
// the current context. It returns the id of the scheduled event. Only
// the goroutine driving the simulation may call it; other goroutines
// use ScheduleWithContext, which picks a meaningful time base for
// external callers.
func (s *Simulator) Schedule(delay VTime, fn func()) (EventID, error) {
	if delay < 0 {
		return EventID{}, ErrInvalidDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(s.nowLocked()+delay, s.currentContext, fn), nil
}

// ScheduleNow runs fn at the current time, after the events already
// queued for this instant.
func (s *Simulator) ScheduleNow(fn func()) (EventID, error) {
	return s.Schedule(0, fn)
}

// ScheduleWithContext schedules fn on behalf of the given context. It
// may be called from any goroutine: calls from inside a handler (or
// before the run starts) measure the delay from the frozen virtual
// time, while calls from external goroutines during a real-time run
// measure it from the wall clock, so external work lands where real
// time says it should.
func (s *Simulator) ScheduleWithContext(
	context uint32,
	delay VTime,
	fn func(),
) (EventID, error) {
	if delay < 0 {
		return EventID{}, ErrInvalidDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ts VTime
	if s.fromMainLocked() {
		ts = s.currentTs + delay
	} else {
		ts = s.realtimeBaseLocked() + delay
	}

	if ts < s.currentTs {
		s.fatal("schedule with context lands at %s, before the current time %s",
			ts, s.currentTs)
	}

	return s.insertLocked(ts, context, fn), nil
}

// ScheduleRealtime aligns fn with the wall clock: the delay is measured
// from the synchronizer's current reading instead of the frozen virtual
// time. Outside a run the virtual clock is the only timeline, so the
// base falls back to it.
func (s *Simulator) ScheduleRealtime(delay VTime, fn func()) (EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scheduleRealtimeLocked(s.currentContext, delay, fn)
}

// ScheduleRealtimeWithContext is ScheduleRealtime with an explicit
// context tag carried into the event.
func (s *Simulator) ScheduleRealtimeWithContext(
	context uint32,
	delay VTime,
	fn func(),
) (EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scheduleRealtimeLocked(context, delay, fn)
}

// ScheduleRealtimeNow runs fn as soon as the wall clock allows.
func (s *Simulator) ScheduleRealtimeNow(fn func()) (EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scheduleRealtimeLocked(s.currentContext, 0, fn)
}

// ScheduleRealtimeNowWithContext is ScheduleRealtimeNow with an
// explicit context tag.
func (s *Simulator) ScheduleRealtimeNowWithContext(
	context uint32,
	fn func(),
) (EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scheduleRealtimeLocked(context, 0, fn)
}

func (s *Simulator) scheduleRealtimeLocked(
	context uint32,
	delay VTime,
	fn func(),
) (EventID, error) {
	if delay < 0 {
		return EventID{}, ErrInvalidDelay
	}

	ts := s.realtimeBaseLocked() + delay
	if ts < s.currentTs {
		s.fatal("real-time schedule lands at %s, before the current time %s",
			ts, s.currentTs)
	}

	return s.insertLocked(ts, context, fn), nil
}

// ScheduleDestroy queues fn to run once at Destroy time, outside the
// timed queue. Destroy events run in scheduling order.
func (s *Simulator) ScheduleDestroy(fn func()) EventID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := EventID{
		impl:    NewEventImpl(fn),
		ts:      s.currentTs,
		context: NoContext,
		uid:     UIDDestroy,
	}
	s.destroyEvents = append(s.destroyEvents, id)
	s.uidCounter++

	return id
}

// insertLocked allocates the uid, inserts the event, and signals the
// synchronizer so an in-progress wait re-evaluates the queue head. The
// caller holds the mutex.
func (s *Simulator) insertLocked(ts VTime, context uint32, fn func()) EventID {
	id := EventID{
		impl:    NewEventImpl(fn),
		ts:      ts,
		context: context,
		uid:     s.uidCounter,
	}

	s.uidCounter++
	s.unscheduledEvents++
	s.queue.Insert(id)
	s.synchronizer.Signal()

	return id
}

// fromMainLocked guesses whether the caller is the goroutine driving
// the simulation. Go offers no goroutine identity, so the driver's own
// calls are recognized by state: outside a run every caller counts as
// main, and during a dispatch the caller is almost certainly the
// handler being run. The one ambiguous case, an external goroutine
// scheduling while a handler runs, lands on the virtual-time base,
// which is earlier than the wall clock but still valid.
func (s *Simulator) fromMainLocked() bool {
	return s.state != stateRunning || s.inHandler
}

// realtimeBaseLocked returns the wall-normalized clock while a
// real-time run is in progress. Under a virtual-time pacer, and outside
// a run, the frozen virtual time is the only timeline there is.
func (s *Simulator) realtimeBaseLocked() VTime {
	return s.nowLocked()
}

// Cancel marks the event cancelled. It stays in the queue and is
// skipped at dispatch. Expired and unknown ids are ignored.
func (s *Simulator) Cancel(id EventID) {
	if !s.IsExpired(id) {
		id.impl.Cancel()
	}
}

// Remove erases the event from the queue, or from the destroy list for
// destroy events, and cancels it. Unlike Cancel it frees the queue slot
// immediately. Expired and unknown ids are ignored. Only the goroutine
// driving the simulation may call it.
func (s *Simulator) Remove(id EventID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.uid == UIDDestroy {
		for i, d := range s.destroyEvents {
			if d == id {
				s.destroyEvents = append(s.destroyEvents[:i], s.destroyEvents[i+1:]...)
				break
			}
		}

		return
	}

	if s.isExpiredLocked(id) {
		return
	}

	if s.queue.Remove(id) {
		s.unscheduledEvents--
		id.impl.Cancel()
	}
}

// IsExpired reports whether the event already ran, was cancelled, or
// never existed. A destroy event is expired once it is no longer on the
// destroy list.
func (s *Simulator) IsExpired(id EventID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isExpiredLocked(id)
}

func (s *Simulator) isExpiredLocked(id EventID) bool {
	if id.impl == nil || id.impl.IsCancelled() {
		return true
	}

	if id.uid == UIDDestroy {
		for _, d := range s.destroyEvents {
			if d == id {
				return false
			}
		}

		return true
	}

	if id.ts < s.currentTs {
		return true
	}

	return id.ts == s.currentTs && id.uid <= s.currentUID
}

// DelayLeft returns the remaining virtual time until the event fires,
// or zero once it has expired.
func (s *Simulator) DelayLeft(id EventID) VTime {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isExpiredLocked(id) {
		return 0
	}

	return id.ts - s.currentTs
}
