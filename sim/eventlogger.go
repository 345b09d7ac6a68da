package sim

import (
	"log"
)

// A LogHook is a hook that is responsible for recording information
// from the simulation
type LogHook interface {
	Hook
}

// LogHookBase provides the common logic for all LogHooks
type LogHookBase struct {
	*log.Logger
}

// EventLogger is a hook that prints a line per dispatched event.
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns an EventLogger that writes into the given
// logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger
	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosBeforeEvent:
		id, ok := ctx.Item.(EventID)
		if !ok {
			return
		}

		if id.Context() == NoContext {
			h.Printf("%s, uid %d", id.Ts(), id.UID())
		} else {
			h.Printf("%s, uid %d, ctx %d", id.Ts(), id.UID(), id.Context())
		}
	case HookPosDestroyEvent:
		id, ok := ctx.Item.(EventID)
		if !ok {
			return
		}

		h.Printf("destroy event, scheduled at %s", id.Ts())
	}
}
