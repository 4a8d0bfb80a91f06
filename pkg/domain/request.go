package domain

import (
	"fmt"
	"strings"
)

const recallPrefix = "recall("

// RequestMode selects how a target state is resolved to a leaf.
type RequestMode int

const (
	// ModeEnter descends through initial children.
	ModeEnter RequestMode = iota
	// ModeRecall descends through the most recently active children.
	ModeRecall
)

func (m RequestMode) String() string {
	if m == ModeRecall {
		return "recall"
	}
	return "enter"
}

// Request is a parsed transition request.
type Request struct {
	Target string
	Mode   RequestMode
}

// Enter builds an enter request for name.
func Enter(name string) Request { return Request{Target: name, Mode: ModeEnter} }

// Recall builds a history request for name.
func Recall(name string) Request { return Request{Target: name, Mode: ModeRecall} }

// ParseRequest parses "NAME" or "recall(NAME)".
func ParseRequest(s string) (Request, error) {
	raw := strings.TrimSpace(s)
	mode := ModeEnter
	if strings.HasPrefix(raw, recallPrefix) {
		if !strings.HasSuffix(raw, ")") {
			return Request{}, fmt.Errorf("%w: unterminated recall in %q", ErrInvalidRequest, s)
		}
		raw = strings.TrimSpace(raw[len(recallPrefix) : len(raw)-1])
		mode = ModeRecall
	}
	if raw == "" {
		return Request{}, fmt.Errorf("%w: empty state name in %q", ErrInvalidRequest, s)
	}
	if strings.ContainsAny(raw, "() \t\n") {
		return Request{}, fmt.Errorf("%w: malformed state name in %q", ErrInvalidRequest, s)
	}
	return Request{Target: raw, Mode: mode}, nil
}

// String renders the request back into its textual form.
func (r Request) String() string {
	if r.Mode == ModeRecall {
		return recallPrefix + r.Target + ")"
	}
	return r.Target
}
