package domain

import "errors"

// ErrConfiguration is the umbrella for every error caused by a broken statechart declaration.
// Specific configuration errors wrap it, so errors.Is(err, ErrConfiguration) holds for all of them.
var ErrConfiguration = errors.New("statechart configuration error")

// ErrMissingName is returned when a state is declared without a name.
var ErrMissingName = configError("state is missing name attribute")

// ErrDuplicateState is returned when two states share the same name.
var ErrDuplicateState = configError("duplicate state")

// ErrUnknownState is returned when a name does not resolve to a declared state.
var ErrUnknownState = configError("no such state")

// ErrMissingElement is returned when the UI layer cannot supply the element bound to a state.
var ErrMissingElement = configError("missing element for state")

// ErrNoInitial is returned when a compound state is entered but has no initial child.
var ErrNoInitial = configError("no initial state specified for compound state")

// ErrNoHistory is returned when a compound state is recalled but has neither history nor an initial child.
var ErrNoHistory = configError("no history recorded for compound state")

// ErrInvalidRequest is returned when a transition request cannot be parsed.
var ErrInvalidRequest = configError("invalid state request")

// ErrNotInitialized is returned when a machine is driven before Initialize.
var ErrNotInitialized = errors.New("statechart not initialized")

// ErrTransport is returned when the feed endpoint cannot be reached or answers with a failure.
var ErrTransport = errors.New("server communication error")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

type configErr struct {
	msg string
}

func configError(msg string) error { return &configErr{msg: msg} }

func (e *configErr) Error() string { return e.msg }

func (e *configErr) Unwrap() error { return ErrConfiguration }
