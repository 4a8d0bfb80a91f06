package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns the application logger. It writes to stderr so that the
// chart tree, the viewers and JSON-RPC on stdout stay clean.
func New(level slog.Level) *slog.Logger {
	return NewTo(os.Stderr, level)
}

// NewTo returns a text logger writing to w.
// Error attributes are logged under "err" and session attributes under "session_id".
func NewTo(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}))
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case "error":
		a.Key = "err"
	case "session", "sid":
		a.Key = "session_id"
	}
	return a
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
