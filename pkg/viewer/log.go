package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/feed"
	"github.com/aretw0/tops/pkg/ports"
)

// Log viewer defaults.
const (
	DefaultInterval     = time.Second
	DefaultMaxMessages  = 1000
	DefaultSourceFilter = "*"
	DefaultMinLevel     = domain.LevelDebug
)

// ErrInvalidOptions is returned by LogOptions.Validate.
var ErrInvalidOptions = errors.New("invalid viewer options")

// LogOptions are the user-editable settings of a LogViewer.
type LogOptions struct {
	Interval time.Duration
	// MaxMessages caps the displayed rows; 0 means unlimited.
	MaxMessages  int
	SourceFilter string
	MinLevel     domain.Level
}

// DefaultLogOptions returns the options a viewer starts with.
func DefaultLogOptions() LogOptions {
	return LogOptions{
		Interval:     DefaultInterval,
		MaxMessages:  DefaultMaxMessages,
		SourceFilter: DefaultSourceFilter,
		MinLevel:     DefaultMinLevel,
	}
}

// Validate checks the options before they are sent to the feed.
func (o LogOptions) Validate() error {
	var errs []error
	if o.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: update interval must be positive", ErrInvalidOptions))
	}
	if o.MaxMessages < 0 {
		errs = append(errs, fmt.Errorf("%w: max messages must not be negative", ErrInvalidOptions))
	}
	if _, err := domain.ParseSourcePattern(o.SourceFilter); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidOptions, err))
	}
	return errors.Join(errs...)
}

// String is the body of the local record logged when options are applied.
func (o LogOptions) String() string {
	return fmt.Sprintf("Using OPTIONS: update interval = %ss, max messages = %d, source filter is %q, min level = %s",
		strconv.FormatFloat(o.Interval.Seconds(), 'f', -1, 64), o.MaxMessages, o.SourceFilter, o.MinLevel)
}

// LogRow is one displayed message.
type LogRow struct {
	Record domain.LogRecord
	// Zebra marks every second message for alternating styling.
	Zebra bool
}

// LogView renders a LogViewer. Calls are serialized by the viewer.
type LogView interface {
	AppendRow(row LogRow)
	RemoveOldestRow()
	SetCount(displayed int)
	SetLastUpdate(at time.Time, status string)
}

// Option configures a viewer.
type Option func(*settings)

type settings struct {
	logger   *slog.Logger
	observer PollObserver
	uid      string
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPollObserver reports every poll, e.g. to observability.Metrics.
func WithPollObserver(o PollObserver) Option {
	return func(s *settings) {
		s.observer = o
	}
}

// WithSessionID fixes the session id sent to the feed instead of generating one.
func WithSessionID(uid string) Option {
	return func(s *settings) {
		if uid != "" {
			s.uid = uid
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.uid == "" {
		s.uid = feed.NewSessionID()
	}
	return s
}

// LogViewer polls a LogFeed and renders its records.
type LogViewer struct {
	feed   ports.LogFeed
	view   LogView
	uid    string
	logger *slog.Logger
	poller *Poller

	mu        sync.Mutex
	opts      LogOptions
	total     int
	displayed int
}

// NewLogViewer creates a stopped viewer with the default options.
func NewLogViewer(f ports.LogFeed, view LogView, opts ...Option) *LogViewer {
	s := newSettings(opts)
	v := &LogViewer{
		feed:   f,
		view:   view,
		uid:    s.uid,
		logger: s.logger,
		opts:   DefaultLogOptions(),
	}
	v.poller = NewPoller("logwatch", v.Poll, v.handleError,
		WithObserver(s.observer), WithPollerLogger(s.logger))
	return v
}

// SessionID is the uid sent with every request.
func (v *LogViewer) SessionID() string { return v.uid }

// Options returns the options in effect.
func (v *LogViewer) Options() LogOptions {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.opts
}

// Counts returns the total number of messages received and the number displayed.
func (v *LogViewer) Counts() (total, displayed int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.total, v.displayed
}

// Running reports whether the viewer is polling.
func (v *LogViewer) Running() bool { return v.poller.Running() }

// Stop halts polling.
func (v *LogViewer) Stop() { v.poller.Stop() }

// Wait blocks until the polling loop has exited.
func (v *LogViewer) Wait() { v.poller.Wait() }

// UpdateOptions stops polling, logs the new options, sends the filter to the
// feed and restarts polling with the new interval.
// Invalid options leave the viewer stopped with its previous options.
func (v *LogViewer) UpdateOptions(ctx context.Context, o LogOptions) error {
	v.poller.Stop()
	if err := o.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	v.opts = o
	v.addRecord(domain.NewLocalRecord(o.String()))
	v.mu.Unlock()

	if err := v.feed.Configure(ctx, v.uid, o.SourceFilter, o.MinLevel); err != nil {
		v.handleError(err)
		return err
	}
	v.logger.Info("viewer options updated", "uid", v.uid, "interval", o.Interval,
		"max", o.MaxMessages, "filter", o.SourceFilter, "min_level", o.MinLevel)
	return v.poller.Start(ctx, o.Interval)
}

// Poll fetches and renders the pending records once.
func (v *LogViewer) Poll(ctx context.Context) (int, error) {
	records, err := v.feed.Records(ctx, v.uid)
	if err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range records {
		v.addRecord(r)
	}
	v.view.SetLastUpdate(time.Now(), "success")
	return len(records), nil
}

func (v *LogViewer) handleError(err error) {
	v.poller.Stop()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.addRecord(domain.NewLocalRecord(ErrorMessage(err)))
}

// addRecord must be called with v.mu held.
func (v *LogViewer) addRecord(r domain.LogRecord) {
	v.total++
	v.displayed++
	v.view.AppendRow(LogRow{Record: r, Zebra: v.total%2 == 0})
	for v.opts.MaxMessages > 0 && v.displayed > v.opts.MaxMessages {
		v.view.RemoveOldestRow()
		v.displayed--
	}
	v.view.SetCount(v.displayed)
}

// ErrorMessage is the body of the local record logged after a transport error.
func ErrorMessage(err error) string {
	te := &feed.TransportError{Status: feed.StatusError, Thrown: err.Error()}
	errors.As(err, &te)
	return fmt.Sprintf("Server communication error [status %q; error thrown %q]. Update OPTIONS to try reconnecting.",
		te.Status, te.Thrown)
}
