package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/tops/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of a process.
type Metrics struct {
	registry *prometheus.Registry

	Selections   *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	ConfigErrors prometheus.Counter
	Polls        *prometheus.CounterVec
	PollFailures *prometheus.CounterVec
	PollDuration *prometheus.HistogramVec
	Records      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a private registry,
// together with the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tops_state_selections_total",
				Help: "Total number of times a state was selected",
			},
			[]string{"state"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tops_transitions_total",
				Help: "Total number of completed transitions by destination leaf",
			},
			[]string{"to"},
		),
		ConfigErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tops_config_errors_total",
				Help: "Total number of rejected transition requests",
			},
		),
		Polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tops_feed_polls_total",
				Help: "Total number of feed polls",
			},
			[]string{"viewer"},
		),
		PollFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tops_feed_poll_failures_total",
				Help: "Total number of feed polls that failed",
			},
			[]string{"viewer"},
		),
		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tops_feed_poll_duration_seconds",
				Help:    "Duration of feed polls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"viewer"},
		),
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tops_feed_items_total",
				Help: "Total number of items rendered by a viewer",
			},
			[]string{"viewer"},
		),
	}
	m.registry.MustRegister(
		m.Selections, m.Transitions, m.ConfigErrors,
		m.Polls, m.PollFailures, m.PollDuration, m.Records,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the private registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record machine activity.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSelect: func(_ context.Context, e *domain.StateEvent) {
			m.Selections.WithLabelValues(e.State).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.To).Inc()
		},
		OnError: func(context.Context, *domain.ErrorEvent) {
			m.ConfigErrors.Inc()
		},
	}
}

// ObservePoll records one feed poll of a viewer.
func (m *Metrics) ObservePoll(viewer string, d time.Duration, items int, err error) {
	m.Polls.WithLabelValues(viewer).Inc()
	m.PollDuration.WithLabelValues(viewer).Observe(d.Seconds())
	if err != nil {
		m.PollFailures.WithLabelValues(viewer).Inc()
		return
	}
	m.Records.WithLabelValues(viewer).Add(float64(items))
}
