package sim

import (
	"sync/atomic"
)

// NoContext tags events that do not run on behalf of any particular
// execution context.
const NoContext uint32 = 0xffffffff

// Reserved event uids. Uids of scheduled events start at UIDFirst and
// grow monotonically, which makes the uid the tie-breaker among events
// that share a timestamp.
const (
	UIDInvalid uint64 = 0
	UIDValid   uint64 = 1
	UIDDestroy uint64 = 2
	UIDFirst   uint64 = 3
)

// An EventImpl is the body of a scheduled event: the handler to run and
// a cancellation flag shared by every EventID that refers to the event.
type EventImpl struct {
	fn        func()
	cancelled atomic.Bool
}

// NewEventImpl wraps a handler into an event body.
func NewEventImpl(fn func()) *EventImpl {
	return &EventImpl{fn: fn}
}

// Invoke runs the handler, unless the event has been cancelled.
func (e *EventImpl) Invoke() {
	if e.cancelled.Load() {
		return
	}

	e.fn()
}

// Cancel marks the event so that Invoke becomes a no-op. Safe to call
// from any goroutine, also while the event is still queued.
func (e *EventImpl) Cancel() {
	e.cancelled.Store(true)
}

// IsCancelled returns true if Cancel has been called on the event.
func (e *EventImpl) IsCancelled() bool {
	return e.cancelled.Load()
}

// An EventID identifies one scheduled event. It is a value type; the
// zero value is an invalid id. Two ids are equal when they carry the
// same body, timestamp, context, and uid, so ids can be compared with
// ==.
type EventID struct {
	impl    *EventImpl
	ts      VTime
	context uint32
	uid     uint64
}

// MakeEventID builds an EventID from its parts.
func MakeEventID(impl *EventImpl, ts VTime, context uint32, uid uint64) EventID {
	return EventID{impl: impl, ts: ts, context: context, uid: uid}
}

// Ts returns the timestamp the event is scheduled for.
func (id EventID) Ts() VTime {
	return id.ts
}

// UID returns the serial number that breaks ties among events sharing a
// timestamp.
func (id EventID) UID() uint64 {
	return id.uid
}

// Context returns the context tag the event was scheduled with.
func (id EventID) Context() uint32 {
	return id.context
}

// PeekImpl returns the event body, or nil for an invalid id.
func (id EventID) PeekImpl() *EventImpl {
	return id.impl
}

// A TimeTeller can report the current virtual time.
type TimeTeller interface {
	CurrentTime() VTime
}
