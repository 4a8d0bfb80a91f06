package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Level is the severity of a log record. Values follow the numeric levels used by the log producers.
type Level int

const (
	LevelLocal    Level = 0
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelCritical Level = 50
)

var levelNames = map[Level]string{
	LevelLocal:    "LOCAL",
	LevelDebug:    "DEBUG",
	LevelInfo:     "INFO",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelCritical: "CRITICAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level_%d", int(l))
}

// ParseLevel accepts a level name (case-insensitive) as sent by the options form.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARN" {
		name = "WARNING"
	}
	for lvl, n := range levelNames {
		if n == name {
			return lvl, nil
		}
	}
	// Producers emit unnamed numeric levels as "Level_NN".
	if rest, ok := strings.CutPrefix(name, "LEVEL_"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			return Level(n), nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText decodes a level from its name.
func (l *Level) UnmarshalText(b []byte) error {
	lvl, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}

// LogRecord is a single message returned by the log feed.
type LogRecord struct {
	Timestamp time.Time `json:"tstamp"`
	Level     Level     `json:"level"`
	Source    string    `json:"source"`
	Body      string    `json:"body"`
}

// LocalSource is the source name of records generated by the viewer itself.
const LocalSource = "(local)"

// NewLocalRecord creates a viewer-generated record.
func NewLocalRecord(body string) LogRecord {
	return LogRecord{
		Timestamp: time.Now(),
		Level:     LevelLocal,
		Source:    LocalSource,
		Body:      body,
	}
}

const (
	sourceElement  = `[A-Za-z]+`
	sourceWildcard = "*"
)

var (
	validSourceName    = regexp.MustCompile(`^` + sourceElement + `(\.` + sourceElement + `)*$`)
	validSourcePattern = regexp.MustCompile(`^(\*|` + sourceElement + `)(\.(\*|` + sourceElement + `))*$`)
	sourcePathPattern  = sourceElement + `(\.` + sourceElement + `)*`
)

// ValidSourceName reports whether name is a dotted list of alphabetic elements, e.g. "aaa.bbb".
func ValidSourceName(name string) bool {
	return validSourceName.MatchString(name)
}

// SourcePattern is a comma-separated list of source name patterns.
// A "*" element stands for any valid source name, so "aaa.*" matches
// "aaa.bbb" and "aaa.bbb.ccc" but not "aaa".
type SourcePattern struct {
	raw string
	re  *regexp.Regexp
}

// ParseSourcePattern validates and compiles a source pattern. An empty string means "*".
func ParseSourcePattern(s string) (*SourcePattern, error) {
	if strings.TrimSpace(s) == "" {
		s = sourceWildcard
	}
	parts := strings.Split(s, ",")
	alternatives := make([]string, 0, len(parts))
	for _, part := range parts {
		if !validSourcePattern.MatchString(part) {
			return nil, fmt.Errorf("illegal source pattern: %q", part)
		}
		expr := strings.ReplaceAll(part, ".", `\.`)
		expr = strings.ReplaceAll(expr, sourceWildcard, sourcePathPattern)
		alternatives = append(alternatives, "(?:"+expr+")")
	}
	re, err := regexp.Compile(`^(?:` + strings.Join(alternatives, "|") + `)$`)
	if err != nil {
		return nil, fmt.Errorf("compile source pattern %q: %w", s, err)
	}
	return &SourcePattern{raw: s, re: re}, nil
}

// Matches reports whether the source name is selected by the pattern.
func (p *SourcePattern) Matches(source string) bool {
	return p.re.MatchString(source)
}

func (p *SourcePattern) String() string { return p.raw }

// LogFilter is the per-session filter the viewer asks the feed to apply.
type LogFilter struct {
	Source   *SourcePattern
	MinLevel Level
}

// NewLogFilter validates the raw filter fields.
func NewLogFilter(source, minLevel string) (LogFilter, error) {
	pattern, err := ParseSourcePattern(source)
	if err != nil {
		return LogFilter{}, err
	}
	lvl, err := ParseLevel(minLevel)
	if err != nil {
		return LogFilter{}, err
	}
	return LogFilter{Source: pattern, MinLevel: lvl}, nil
}

// Selects reports whether the filter lets the record through.
// Local records are always selected.
func (f LogFilter) Selects(r LogRecord) bool {
	if r.Level == LevelLocal {
		return true
	}
	if r.Level < f.MinLevel {
		return false
	}
	return f.Source == nil || f.Source.Matches(r.Source)
}
