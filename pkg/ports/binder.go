package ports

import "context"

// Binder is supplied by the embedding UI layer. The machine asks it once per
// declared state, during initialization, for the element that displays the state.
type Binder interface {
	// Bind returns the element for the named state.
	// Implementations return an error wrapping domain.ErrMissingElement when none exists.
	Bind(name string) (Element, error)
}

// Element is the visual container of a state (container plus title).
type Element interface {
	// SetSelected applies (true) or removes (false) the active styling of the container and title.
	SetSelected(selected bool)

	// Triggers returns the trigger elements found inside the state's trigger group.
	// A nil result means the element has none and declared triggers should be used.
	Triggers() []TriggerElement
}

// TriggerElement is a UI affordance that requests a transition when activated.
type TriggerElement interface {
	// Target is the request string ("NAME" or "recall(NAME)") carried by the trigger.
	Target() string

	// Label is a short human readable name, used to fire triggers by name.
	Label() string

	// SetSelected applies or removes the active styling.
	SetSelected(selected bool)

	// SetHandler installs the activation handler; nil removes it.
	// The handler runs with the context of the activation.
	SetHandler(handler func(ctx context.Context) error)
}

// Navigator moves the user's view to the anchor of a state without changing the machine.
type Navigator interface {
	Reveal(name string) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(name string) error

// Reveal calls f(name).
func (f NavigatorFunc) Reveal(name string) error { return f(name) }
