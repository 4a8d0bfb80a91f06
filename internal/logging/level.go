package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseLevel maps a level name such as "debug" or "WARN" to a slog.Level.
// An empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}
