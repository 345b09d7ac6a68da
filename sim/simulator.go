package sim

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Errors reported by the caller-facing simulator operations. Invariant
// violations do not surface here; they go through the fatal handler.
var (
	ErrInvalidDelay = errors.New("negative delay")
	ErrNotRunning   = errors.New("simulator is not running")
	ErrDoubleRun    = errors.New("simulator is already running")
	ErrDestroyed    = errors.New("simulator has been destroyed")
	ErrEmptyQueue   = errors.New("event queue is empty")
)

// SyncPolicy selects how the simulator reacts when the wall clock and
// the event timeline drift apart.
type SyncPolicy int

const (
	// SyncBestEffort dispatches as fast as possible when the wall
	// clock falls behind the event timeline.
	SyncBestEffort SyncPolicy = iota

	// SyncHardLimit aborts the run when the dispatch jitter exceeds
	// the configured hard limit.
	SyncHardLimit
)

func (p SyncPolicy) String() string {
	switch p {
	case SyncBestEffort:
		return "BestEffort"
	case SyncHardLimit:
		return "HardLimit"
	}

	return fmt.Sprintf("SyncPolicy(%d)", int(p))
}

// DefaultHardLimit is the jitter bound used by SyncHardLimit when no
// other limit is configured.
const DefaultHardLimit = 100 * Millisecond

// idleWait bounds one round of the idle loop, so a stop request is
// noticed even if no insertion ever signals.
const idleWait = Second

type simState int

const (
	stateInit simState = iota
	stateRunning
	stateStopped
	stateDestroyed
)

// A Dispatch describes one delivered event. It rides on the after-event
// hook, so tracers can record timing without re-reading the clock.
type Dispatch struct {
	// ID identifies the dispatched event.
	ID EventID

	// Realtime is the wall-normalized time at which the handler
	// started, or the event's own timestamp under a virtual-time
	// pacer.
	Realtime VTime

	// Jitter is Realtime minus the event's timestamp, positive when
	// the event ran late.
	Jitter VTime

	// HandlerTime is the wall time the handler consumed.
	HandlerTime time.Duration
}

// A Simulator dispatches scheduled events in (timestamp, uid) order,
// paced by its synchronizer. All schedule operations are safe for
// concurrent use; handlers always run one at a time on the goroutine
// that called Run.
type Simulator struct {
	HookableBase

	synchronizer Synchronizer
	policy       SyncPolicy
	hardLimit    VTime

	fatalHandler func(format string, args ...interface{})

	mu                sync.Mutex
	queue             EventQueue
	destroyEvents     []EventID
	state             simState
	stop              bool
	pausePending      bool
	inHandler         bool
	currentTs         VTime
	currentUID        uint64
	currentContext    uint32
	uidCounter        uint64
	unscheduledEvents int
	eventCount        uint64

	stepLock sync.Mutex

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex
}

// SimulatorBuilder assembles a Simulator.
type SimulatorBuilder struct {
	synchronizer Synchronizer
	policy       SyncPolicy
	hardLimit    VTime
	queue        EventQueue
}

// MakeSimulatorBuilder returns a builder with the default
// configuration: wall-clock pacing, a heap queue, best-effort
// synchronization.
func MakeSimulatorBuilder() SimulatorBuilder {
	return SimulatorBuilder{
		policy:    SyncBestEffort,
		hardLimit: DefaultHardLimit,
	}
}

// WithSynchronizer sets the pacer that drives the simulator.
func (b SimulatorBuilder) WithSynchronizer(s Synchronizer) SimulatorBuilder {
	b.synchronizer = s
	return b
}

// WithSyncPolicy sets the synchronization policy.
func (b SimulatorBuilder) WithSyncPolicy(p SyncPolicy) SimulatorBuilder {
	b.policy = p
	return b
}

// WithHardLimit sets the jitter bound enforced under SyncHardLimit.
func (b SimulatorBuilder) WithHardLimit(limit VTime) SimulatorBuilder {
	if limit <= 0 {
		panic("hard limit must be positive")
	}

	b.hardLimit = limit

	return b
}

// WithEventQueue sets the queue backend.
func (b SimulatorBuilder) WithEventQueue(q EventQueue) SimulatorBuilder {
	b.queue = q
	return b
}

// Build creates the Simulator.
func (b SimulatorBuilder) Build() *Simulator {
	s := new(Simulator)

	s.synchronizer = b.synchronizer
	if s.synchronizer == nil {
		s.synchronizer = NewWallClockSynchronizer()
	}

	s.queue = b.queue
	if s.queue == nil {
		s.queue = NewHeapQueue()
	}

	s.policy = b.policy
	s.hardLimit = b.hardLimit

	if s.policy == SyncHardLimit && !s.synchronizer.Realtime() {
		panic("the hard-limit policy needs a real-time synchronizer")
	}

	s.fatalHandler = log.Panicf
	s.currentContext = NoContext
	s.currentUID = UIDInvalid
	s.uidCounter = UIDFirst

	return s
}

// NewSimulator creates a real-time simulator with the default
// configuration.
func NewSimulator() *Simulator {
	return MakeSimulatorBuilder().Build()
}

// SetFatalHandler replaces the routine that reports invariant
// violations, such as out-of-order dispatch or an exceeded hard limit.
// The default is log.Panicf. The handler must not return; embedders
// that need a graceful teardown can flush their state and exit there.
func (s *Simulator) SetFatalHandler(f func(format string, args ...interface{})) {
	s.fatalHandler = f
}

func (s *Simulator) fatal(format string, args ...interface{}) {
	s.fatalHandler(format, args...)
	panic("fatal handler returned: " + fmt.Sprintf(format, args...))
}

// Run dispatches events until the simulator is stopped. With a
// real-time synchronizer the call keeps pacing and serving external
// insertions even while the queue is empty, so it returns only after
// Stop. With a virtual-time synchronizer it returns once the queue
// drains. Re-running after a stop resumes from the current virtual
// time.
func (s *Simulator) Run() error {
	s.mu.Lock()

	switch s.state {
	case stateRunning:
		s.mu.Unlock()
		return ErrDoubleRun
	case stateDestroyed:
		s.mu.Unlock()
		return ErrDestroyed
	}

	s.state = stateRunning
	s.stop = false
	s.synchronizer.SetOrigin(s.currentTs)
	s.mu.Unlock()

	realtime := s.synchronizer.Realtime()

	for {
		s.pauseLock.Lock()
		s.mu.Lock()

		if s.stop || (!realtime && s.queue.IsEmpty()) {
			break
		}

		process := false
		idle := false
		var tsNow VTime

		if !s.queue.IsEmpty() {
			process = true
		} else if !s.pausePending {
			// Sample the clock and rearm the interrupt while still
			// holding the mutex: an insertion serialized after this
			// point raises the condition and cuts the wait short. A
			// pending pause skips the wait, so the iteration ends and
			// the pause takes over.
			tsNow = s.synchronizer.CurrentRealtime()
			s.synchronizer.SetCondition(false)
			idle = true
		}

		s.mu.Unlock()

		if process {
			s.stepLock.Lock()
			s.processOneEvent()
			s.stepLock.Unlock()
		} else if idle {
			s.synchronizer.Synchronize(tsNow, idleWait)
		}

		s.pauseLock.Unlock()
	}

	// The exit path still holds both the mutex and the pause lock.
	if s.queue.IsEmpty() && s.unscheduledEvents != 0 {
		pending := s.unscheduledEvents
		s.mu.Unlock()
		s.pauseLock.Unlock()
		s.fatal("run ended with an empty queue but %d events unaccounted for",
			pending)
	}

	s.state = stateStopped
	s.mu.Unlock()
	s.pauseLock.Unlock()

	return nil
}

// processOneEvent waits until the queue head is due, then dispatches
// it. A stop or pause request arriving during the wait abandons the
// dispatch; the event stays queued. The caller holds stepLock.
func (s *Simulator) processOneEvent() {
	for {
		s.mu.Lock()

		// Stop and Pause raise their flag under the mutex before
		// signalling, so a request is either visible here or
		// interrupts the wait armed below.
		if s.stop || s.pausePending {
			s.mu.Unlock()
			return
		}

		tsNow := s.synchronizer.CurrentRealtime()
		tsNext := s.queue.PeekNext().ts

		var tsDelay VTime
		if tsNext > tsNow {
			tsDelay = tsNext - tsNow
		}

		s.synchronizer.SetCondition(false)
		s.mu.Unlock()

		// A schedule operation issued after the mutex was released
		// interrupts this wait; the delay is then re-evaluated against
		// the possibly new queue head.
		if s.synchronizer.Synchronize(tsNow, tsDelay) {
			break
		}
	}

	s.mu.Lock()

	next := s.queue.RemoveNext()
	s.unscheduledEvents--
	s.eventCount++

	if next.ts < s.currentTs {
		ts, now := next.ts, s.currentTs
		s.mu.Unlock()
		s.fatal("event at %s is earlier than the current time %s (queue order broken)",
			ts, now)
	}

	s.currentTs = next.ts
	s.currentContext = next.context
	s.currentUID = next.uid

	if s.policy == SyncHardLimit {
		jitter := s.synchronizer.CurrentRealtime() - s.currentTs
		if jitter < 0 {
			jitter = -jitter
		}

		if jitter > s.hardLimit {
			limit := s.hardLimit
			s.mu.Unlock()
			s.fatal("real-time hard limit exceeded (jitter %s, limit %s)",
				jitter, limit)
		}
	}

	s.inHandler = true
	s.mu.Unlock()

	hookCtx := HookCtx{
		Domain: s,
		Pos:    HookPosBeforeEvent,
		Item:   next,
	}
	s.InvokeHook(hookCtx)

	// Unpaced runs report every dispatch as exactly on time.
	wallAt := next.ts
	if s.synchronizer.Realtime() {
		wallAt = s.synchronizer.CurrentRealtime()
	}
	s.synchronizer.EventStart()
	next.impl.Invoke()
	handlerTime := s.synchronizer.EventEnd()

	hookCtx.Pos = HookPosAfterEvent
	hookCtx.Detail = Dispatch{
		ID:          next,
		Realtime:    wallAt,
		Jitter:      wallAt - next.ts,
		HandlerTime: handlerTime,
	}
	s.InvokeHook(hookCtx)

	s.mu.Lock()
	s.inHandler = false
	s.mu.Unlock()
}

// ProcessOneEvent waits until the queue head is due and dispatches it.
// Run uses it as its unit of work; external tooling can also call it to
// single-step a paused simulator. It fails with ErrNotRunning before
// Run has started and with ErrEmptyQueue when there is nothing to
// dispatch. A stop request arriving during the wait makes it return
// before dispatching.
func (s *Simulator) ProcessOneEvent() error {
	s.stepLock.Lock()
	defer s.stepLock.Unlock()

	s.mu.Lock()

	if s.state != stateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}

	if s.queue.IsEmpty() {
		s.mu.Unlock()
		return ErrEmptyQueue
	}

	s.mu.Unlock()

	s.processOneEvent()

	return nil
}

// Stop makes Run return without dispatching further events. Events
// still queued stay queued, so a later Run picks up where this one
// stopped.
func (s *Simulator) Stop() {
	s.mu.Lock()
	s.stop = true
	s.synchronizer.Signal()
	s.mu.Unlock()
}

// StopAfter schedules a stop the given delay into the future.
func (s *Simulator) StopAfter(delay VTime) (EventID, error) {
	return s.Schedule(delay, s.Stop)
}

// Pause holds the simulator between two dispatches until Continue is
// called. The wall clock keeps moving, so a paused real-time run
// accumulates jitter.
func (s *Simulator) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.mu.Lock()
	s.pausePending = true
	s.mu.Unlock()

	s.synchronizer.Signal()
	s.pauseLock.Lock()

	// The driver is parked now. The flag drops so that
	// ProcessOneEvent can still dispatch while paused.
	s.mu.Lock()
	s.pausePending = false
	s.mu.Unlock()

	s.isPaused = true
}

// Continue releases a paused simulator.
func (s *Simulator) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

// Destroy runs the handlers queued with ScheduleDestroy in scheduling
// order, skipping cancelled ones. It is idempotent. Destroying a
// running simulator panics; stop the run and join any goroutines that
// still schedule events first. After Destroy, Run fails with
// ErrDestroyed.
func (s *Simulator) Destroy() {
	s.mu.Lock()

	if s.state == stateDestroyed {
		s.mu.Unlock()
		return
	}

	if s.state == stateRunning {
		s.mu.Unlock()
		log.Panic("destroying a running simulator")
	}

	s.state = stateDestroyed
	events := s.destroyEvents
	s.destroyEvents = nil
	s.mu.Unlock()

	for _, id := range events {
		if id.impl.IsCancelled() {
			continue
		}

		s.InvokeHook(HookCtx{
			Domain: s,
			Pos:    HookPosDestroyEvent,
			Item:   id,
		})

		id.impl.Invoke()
	}
}

// SetEventQueue swaps the queue backend, migrating all pending events.
func (s *Simulator) SetEventQueue(q EventQueue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue != nil {
		for !s.queue.IsEmpty() {
			q.Insert(s.queue.RemoveNext())
		}
	}

	s.queue = q
}

// Now returns the current virtual time. While a real-time run is in
// progress this is the wall-normalized clock; otherwise it is the
// timestamp of the last dispatched event.
func (s *Simulator) Now() VTime {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nowLocked()
}

func (s *Simulator) nowLocked() VTime {
	if s.state == stateRunning && s.synchronizer.Realtime() {
		return s.synchronizer.CurrentRealtime()
	}

	return s.currentTs
}

// CurrentTime implements TimeTeller.
func (s *Simulator) CurrentTime() VTime {
	return s.Now()
}

// RealtimeNow returns the synchronizer's wall-normalized reading,
// regardless of the run state.
func (s *Simulator) RealtimeNow() VTime {
	return s.synchronizer.CurrentRealtime()
}

// CurrentContext returns the context tag of the most recently
// dispatched event, or NoContext if nothing has been dispatched.
func (s *Simulator) CurrentContext() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentContext
}

// EventCount returns the number of events dispatched so far.
func (s *Simulator) EventCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.eventCount
}

// QueueLength returns the number of events waiting in the queue.
func (s *Simulator) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.Len()
}

// IsRunning returns true while Run is in progress.
func (s *Simulator) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == stateRunning
}

// IsFinished returns true when the queue is empty or a stop has been
// requested.
func (s *Simulator) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.IsEmpty() || s.stop
}

// Realtime reports whether the simulator paces against the wall clock.
func (s *Simulator) Realtime() bool {
	return s.synchronizer.Realtime()
}

// Policy returns the synchronization policy.
func (s *Simulator) Policy() SyncPolicy {
	return s.policy
}

// HardLimit returns the jitter bound enforced under SyncHardLimit.
func (s *Simulator) HardLimit() VTime {
	return s.hardLimit
}
