package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/tokei/sim"
)

// Attach lets the tracer collect the dispatch stream of the simulator.
// Attaching the same tracer to the same simulator twice panics.
func Attach(s *sim.Simulator, tracer Tracer) {
	for _, hook := range s.Hooks {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf("simulator already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	h := &traceHook{t: tracer}
	s.AcceptHook(h)
}

// A traceHook forwards dispatched events to a tracer.
type traceHook struct {
	t Tracer
}

// Func calls the tracer when an event handler has returned.
func (h *traceHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent {
		return
	}

	h.t.Dispatch(recordFromDispatch(ctx.Detail.(sim.Dispatch)))
}

func recordFromDispatch(d sim.Dispatch) Record {
	return Record{
		Ts:       d.ID.Ts(),
		UID:      d.ID.UID(),
		Context:  d.ID.Context(),
		Realtime: d.Realtime,
		Jitter:   d.Jitter,
		Handler:  d.HandlerTime,
	}
}
