package domain

// Snapshot is the serializable runtime view of a statechart machine.
// It is what stores persist between requests.
type Snapshot struct {
	// SessionID identifies the machine the snapshot belongs to (optional for single-machine hosts).
	SessionID string `json:"session_id,omitempty"`

	// Current is the name of the active leaf state.
	Current string `json:"current"`

	// History maps a compound state name to its most recently active child.
	History map[string]string `json:"history,omitempty"`

	// Transitions counts the successful SetState calls applied so far.
	Transitions int `json:"transitions"`
}

// NewSnapshot creates an empty snapshot for a session.
func NewSnapshot(sessionID string) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		History:   make(map[string]string),
	}
}

// Clone returns a deep copy so callers can mutate it freely.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.History = make(map[string]string, len(s.History))
	for k, v := range s.History {
		out.History[k] = v
	}
	return &out
}
