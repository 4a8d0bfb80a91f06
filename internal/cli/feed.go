package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/internal/presentation/tui"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/feed"
	"github.com/aretw0/tops/pkg/observability"
	"github.com/aretw0/tops/pkg/viewer"
)

// shutdownTimeout bounds the graceful shutdown of the metrics server.
const shutdownTimeout = 5 * time.Second

// FeedOptions are shared by the log and archiver commands.
type FeedOptions struct {
	URL     string
	Timeout time.Duration
	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string
	// Lines carries user commands; nil disables them.
	Lines  <-chan string
	Out    io.Writer
	Plain  bool
	Logger *slog.Logger
}

func (o FeedOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.NewNop()
	}
	return o.Logger
}

// RunLogwatch polls the log feed with opts until ctx is cancelled.
// Each line read from feedOpts.Lines holds key=value option updates
// (interval, max, filter, level); an empty line reconnects with the current options.
func RunLogwatch(ctx context.Context, opts viewer.LogOptions, feedOpts FeedOptions) error {
	logger := feedOpts.logger()
	client, err := feed.New(feedOpts.URL, feed.WithTimeout(feedOpts.Timeout), feed.WithLogger(logger))
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	out := tui.NewOutput(feedOpts.Out, feedOpts.Plain)
	lv := viewer.NewLogViewer(client, tui.NewLogView(out),
		viewer.WithLogger(logger),
		viewer.WithPollObserver(metrics),
	)
	logger.Info("Starting log viewer", "endpoint", client.Endpoint(), "uid", lv.SessionID())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer lv.Stop()
		if err := lv.UpdateOptions(gctx, opts); err != nil {
			reportOptionsError(out, logger, err)
		}
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-feedOpts.Lines:
				if !ok {
					feedOpts.Lines = nil
					continue
				}
				next, err := ParseLogOptions(line, lv.Options())
				if err == nil {
					err = lv.UpdateOptions(gctx, next)
				}
				if err != nil {
					reportOptionsError(out, logger, err)
				}
			}
		}
	})
	if feedOpts.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, feedOpts.MetricsAddr, metrics, logger)
		})
	}
	return g.Wait()
}

// RunArchiver subscribes to the channels matching pattern and polls their
// values until ctx is cancelled. Each line read from feedOpts.Lines is a new
// pattern; an empty line reconnects with the current one.
func RunArchiver(ctx context.Context, pattern, selector string, interval time.Duration, feedOpts FeedOptions) error {
	logger := feedOpts.logger()
	client, err := feed.New(feedOpts.URL, feed.WithTimeout(feedOpts.Timeout), feed.WithLogger(logger))
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	out := tui.NewOutput(feedOpts.Out, feedOpts.Plain)
	av := viewer.NewArchiverViewer(client, tui.NewChannelView(out),
		viewer.WithLogger(logger),
		viewer.WithPollObserver(metrics),
	)
	if err := av.SetSelector(selector); err != nil {
		return err
	}
	logger.Info("Starting archiver viewer", "endpoint", client.Endpoint(), "uid", av.SessionID())

	subscribe := func(ctx context.Context, p string) {
		if err := av.SetPattern(ctx, p); err != nil {
			reportOptionsError(out, logger, err)
			return
		}
		if err := av.Start(ctx, interval); err != nil {
			reportOptionsError(out, logger, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer av.Stop()
		subscribe(gctx, pattern)
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-feedOpts.Lines:
				if !ok {
					feedOpts.Lines = nil
					continue
				}
				p := strings.TrimSpace(line)
				if p == "" {
					p = av.Pattern()
				}
				av.Stop()
				subscribe(gctx, p)
			}
		}
	})
	if feedOpts.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, feedOpts.MetricsAddr, metrics, logger)
		})
	}
	return g.Wait()
}

// ParseLogOptions applies "key=value" tokens to current.
// Keys are interval (a duration or seconds), max, filter and level.
func ParseLogOptions(line string, current viewer.LogOptions) (viewer.LogOptions, error) {
	next := current
	for _, tok := range strings.Fields(line) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return current, fmt.Errorf("%w: expected key=value, got %q", viewer.ErrInvalidOptions, tok)
		}
		switch strings.ToLower(key) {
		case "interval":
			d, err := parseInterval(value)
			if err != nil {
				return current, err
			}
			next.Interval = d
		case "max":
			n, err := strconv.Atoi(value)
			if err != nil {
				return current, fmt.Errorf("%w: max: %v", viewer.ErrInvalidOptions, err)
			}
			next.MaxMessages = n
		case "filter":
			next.SourceFilter = value
		case "level":
			lvl, err := domain.ParseLevel(value)
			if err != nil {
				return current, fmt.Errorf("%w: %w", viewer.ErrInvalidOptions, err)
			}
			next.MinLevel = lvl
		default:
			return current, fmt.Errorf("%w: unknown option %q", viewer.ErrInvalidOptions, key)
		}
	}
	return next, nil
}

func parseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: interval %q", viewer.ErrInvalidOptions, s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// reportOptionsError shows errors the viewer did not already display.
// Transport errors are rendered by the viewer itself.
func reportOptionsError(out *tui.Output, logger *slog.Logger, err error) {
	var te *feed.TransportError
	if errors.As(err, &te) {
		logger.Warn("feed unreachable", "err", err)
		return
	}
	logger.Warn("options rejected", "err", err)
	out.Println(out.Color("! "+err.Error(), "#ef4444"))
}

func serveMetrics(ctx context.Context, addr string, metrics *observability.Metrics, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
