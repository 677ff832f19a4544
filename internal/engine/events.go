package engine

import (
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// Observer receives read/write notifications from the engine. Observers are
// purely informational: they must never be able to affect engine control
// flow, so callback panics are swallowed, not propagated.
type Observer interface {
	OnEvent(e memory.Event)
}

// NopObserver discards all events. It is the default when none is injected.
type NopObserver struct{}

// OnEvent implements Observer.
func (NopObserver) OnEvent(memory.Event) {}

// CallbackObserver adapts a plain function into an Observer, recovering any
// panic the callback raises.
type CallbackObserver struct {
	fn  func(memory.Event)
	log *zap.Logger
}

// NewCallbackObserver wraps fn. A nil logger falls back to zap.NewNop.
func NewCallbackObserver(fn func(memory.Event), log *zap.Logger) *CallbackObserver {
	if log == nil {
		log = zap.NewNop()
	}
	return &CallbackObserver{fn: fn, log: log}
}

// OnEvent implements Observer.
func (o *CallbackObserver) OnEvent(e memory.Event) {
	if o.fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.Warn("event observer panicked",
				zap.String("action", e.Action),
				zap.Any("panic", r))
		}
	}()
	o.fn(e)
}

func (s *Service) emit(eventType, action string, meta map[string]any) {
	s.observer.OnEvent(memory.Event{
		Type:   eventType,
		Action: action,
		At:     s.now(),
		Meta:   meta,
	})
}

func (s *Service) emitRead(action string, meta map[string]any) { s.emit("read", action, meta) }

func (s *Service) emitWrite(action string, meta map[string]any) { s.emit("write", action, meta) }
