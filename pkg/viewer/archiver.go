package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/ports"
)

// DefaultPattern subscribes to every channel.
const DefaultPattern = "*"

// ChannelValue is one displayed channel.
type ChannelValue struct {
	Name  string
	Value string
}

// ChannelView renders an ArchiverViewer. Calls are serialized by the viewer.
type ChannelView interface {
	// ClearChannels drops the displayed channel list before a new subscription is shown.
	ClearChannels()
	AddChannel(name string)
	SetValues(values []ChannelValue)
	Alert(msg string)
	SetLastUpdate(at time.Time, status string)
}

// ArchiverViewer subscribes to channels by pattern and polls their values.
type ArchiverViewer struct {
	feed   ports.ChannelFeed
	view   ChannelView
	uid    string
	logger *slog.Logger
	poller *Poller

	mu       sync.Mutex
	pattern  string
	selector string
	channels []string
}

// NewArchiverViewer creates a stopped viewer with no subscription.
func NewArchiverViewer(f ports.ChannelFeed, view ChannelView, opts ...Option) *ArchiverViewer {
	s := newSettings(opts)
	v := &ArchiverViewer{
		feed:   f,
		view:   view,
		uid:    s.uid,
		logger: s.logger,
	}
	v.poller = NewPoller("archiver", v.Poll, v.handleError,
		WithObserver(s.observer), WithPollerLogger(s.logger))
	return v
}

// SessionID is the uid sent with every request.
func (v *ArchiverViewer) SessionID() string { return v.uid }

// Pattern returns the current subscription pattern.
func (v *ArchiverViewer) Pattern() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pattern
}

// Channels returns the subscribed channel names that are displayed.
func (v *ArchiverViewer) Channels() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.channels...)
}

// SetSelector narrows the displayed channels with a glob over the dotted
// names, where "*" spans one element, "**" any number of them and "{a,b}"
// lists alternatives. An empty selector shows every subscribed channel.
func (v *ArchiverViewer) SetSelector(glob string) error {
	if glob != "" && !doublestar.ValidatePattern(toPath(glob)) {
		return fmt.Errorf("%w: bad channel selector %q", ErrInvalidOptions, glob)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selector = glob
	return nil
}

// SetPattern subscribes to the channels matching pattern and lists them.
// An empty pattern means DefaultPattern.
func (v *ArchiverViewer) SetPattern(ctx context.Context, pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	if _, err := domain.ParseSourcePattern(pattern); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	names, err := v.feed.Subscribe(ctx, v.uid, pattern)
	if err != nil {
		v.handleError(err)
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pattern = pattern
	v.channels = names
	v.view.ClearChannels()
	for _, name := range names {
		if v.selected(name) {
			v.view.AddChannel(name)
		}
	}
	v.logger.Info("channels subscribed", "uid", v.uid, "pattern", pattern, "count", len(names))
	return nil
}

// Start polls channel values every interval.
func (v *ArchiverViewer) Start(ctx context.Context, interval time.Duration) error {
	return v.poller.Start(ctx, interval)
}

// Running reports whether the viewer is polling.
func (v *ArchiverViewer) Running() bool { return v.poller.Running() }

// Stop halts polling.
func (v *ArchiverViewer) Stop() { v.poller.Stop() }

// Wait blocks until the polling loop has exited.
func (v *ArchiverViewer) Wait() { v.poller.Wait() }

// Poll fetches and renders the channel values once.
// Values are matched to channels by subscription order.
func (v *ArchiverViewer) Poll(ctx context.Context) (int, error) {
	values, err := v.feed.Values(ctx, v.uid)
	if err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ChannelValue, 0, len(values))
	for i, value := range values {
		if i >= len(v.channels) {
			break
		}
		if !v.selected(v.channels[i]) {
			continue
		}
		out = append(out, ChannelValue{Name: v.channels[i], Value: value})
	}
	v.view.SetValues(out)
	v.view.SetLastUpdate(time.Now(), "success")
	return len(out), nil
}

func (v *ArchiverViewer) handleError(err error) {
	v.poller.Stop()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.Alert(ErrorMessage(err))
}

// selected must be called with v.mu held.
func (v *ArchiverViewer) selected(name string) bool {
	if v.selector == "" {
		return true
	}
	ok, err := doublestar.Match(toPath(v.selector), toPath(name))
	return err == nil && ok
}

func toPath(dotted string) string {
	return strings.ReplaceAll(dotted, ".", "/")
}
