package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSelect     EventType = "state_select"
	EventDeselect   EventType = "state_deselect"
	EventTransition EventType = "transition"
	EventError      EventType = "config_error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// StateEvent represents a state being selected or deselected.
type StateEvent struct {
	EventBase
	State string `json:"state"`
}

// TransitionEvent represents a completed SetState call.
type TransitionEvent struct {
	EventBase
	Request string   `json:"request"`
	From    string   `json:"from,omitempty"`
	To      string   `json:"to"`
	Path    []string `json:"path"`
}

// ErrorEvent represents a rejected SetState call.
type ErrorEvent struct {
	EventBase
	Request string `json:"request"`
	Err     error  `json:"-"`
}

// LifecycleHooks defines callbacks for machine observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnSelect     func(context.Context, *StateEvent)
	OnDeselect   func(context.Context, *StateEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnError      func(context.Context, *ErrorEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSelect:     chain(h.OnSelect, other.OnSelect),
		OnDeselect:   chain(h.OnDeselect, other.OnDeselect),
		OnTransition: chain(h.OnTransition, other.OnTransition),
		OnError:      chain(h.OnError, other.OnError),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
