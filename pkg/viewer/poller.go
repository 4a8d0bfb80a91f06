package viewer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tops/internal/logging"
)

// ErrInvalidInterval is returned when a poller is started with a non-positive interval.
var ErrInvalidInterval = errors.New("update interval must be positive")

// PollFunc performs one poll and reports how many items it rendered.
type PollFunc func(ctx context.Context) (int, error)

// PollObserver records poll outcomes, e.g. as metrics.
type PollObserver interface {
	ObservePoll(viewer string, d time.Duration, items int, err error)
}

// Poller calls a PollFunc on a fixed interval until stopped or until a poll fails.
// Stopping prevents further ticks; a poll already in flight still completes and renders.
type Poller struct {
	name     string
	poll     PollFunc
	onError  func(error)
	observer PollObserver
	logger   *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithObserver reports every poll to o.
func WithObserver(o PollObserver) PollerOption {
	return func(p *Poller) {
		p.observer = o
	}
}

// WithPollerLogger sets a custom structured logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPoller creates a stopped poller. onError receives the error that halted it.
func NewPoller(name string, poll PollFunc, onError func(error), opts ...PollerOption) *Poller {
	p := &Poller{
		name:    name,
		poll:    poll,
		onError: onError,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling every interval, replacing any running loop.
// The first poll happens after one interval, like a browser timer.
func (p *Poller) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.running = true
	go p.loop(ctx, interval, p.stop, p.done)
	p.logger.Debug("poller started", "viewer", p.name, "interval", interval)
	return nil
}

// Stop halts the timer. It does not wait for an in-flight poll.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// stopLocked must be called with p.mu held.
func (p *Poller) stopLocked() {
	if !p.running {
		return
	}
	close(p.stop)
	p.running = false
	p.logger.Debug("poller stopped", "viewer", p.name)
}

// Running reports whether the timer is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Wait blocks until the most recently started loop has exited.
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.halt(stop)
			return
		case <-stop:
			return
		case <-ticker.C:
		}

		start := time.Now()
		n, err := p.poll(ctx)
		if p.observer != nil {
			p.observer.ObservePoll(p.name, time.Since(start), n, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				p.halt(stop)
				return
			}
			p.logger.Warn("poll failed, halting updates", "viewer", p.name, "err", err)
			p.halt(stop)
			if p.onError != nil {
				p.onError(err)
			}
			return
		}
	}
}

// halt marks the loop owning stop as no longer running, unless it was already replaced.
func (p *Poller) halt(stop chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running && p.stop == stop {
		close(p.stop)
		p.running = false
	}
}
