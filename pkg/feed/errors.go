package feed

import (
	"fmt"

	"github.com/aretw0/tops/pkg/domain"
)

// Status values reported in a TransportError.
const (
	StatusTimeout     = "timeout"
	StatusError       = "error"
	StatusParserError = "parsererror"
)

// TransportError describes a failed exchange with the feed endpoint.
// It wraps domain.ErrTransport.
type TransportError struct {
	// Status is one of the Status* constants.
	Status string
	// Thrown carries the underlying reason, e.g. the HTTP status text.
	Thrown string
	Err    error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s [status %q", domain.ErrTransport, e.Status)
	if e.Thrown != "" {
		msg += fmt.Sprintf("; error thrown %q", e.Thrown)
	}
	return msg + "]"
}

// Unwrap exposes both domain.ErrTransport and the underlying error.
func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrTransport}
	}
	return []error{domain.ErrTransport, e.Err}
}
