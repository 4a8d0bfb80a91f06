package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/observability"
	"github.com/aretw0/tops/pkg/statechart"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decls = []domain.Declaration{
	{Name: "A", Initial: "B"},
	{Name: "B", Parent: "A"},
	{Name: "C", Parent: "A"},
}

func TestMetrics_Hooks(t *testing.T) {
	chart, err := statechart.Compile(decls)
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	m := statechart.NewMachine(chart, memory.NewDocumentFor(decls),
		statechart.WithLifecycleHooks(metrics.Hooks()))
	ctx := context.Background()

	require.NoError(t, m.Initialize(ctx, "A"))
	require.NoError(t, m.SetState(ctx, "C"))
	require.Error(t, m.SetState(ctx, "ghost"))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Selections.WithLabelValues("A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("C")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ConfigErrors))
}

func TestMetrics_ObservePoll(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.ObservePoll("log", 10*time.Millisecond, 3, nil)
	metrics.ObservePoll("log", 10*time.Millisecond, 0, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Polls.WithLabelValues("log")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PollFailures.WithLabelValues("log")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Records.WithLabelValues("log")))
}

func TestMetrics_Handler(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.ConfigErrors.Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tops_config_errors_total 1")
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	chart, err := statechart.Compile(decls)
	require.NoError(t, err)
	hooks := observability.LoggingHooks(logger)
	m := statechart.NewMachine(chart, memory.NewDocumentFor(decls),
		statechart.WithLifecycleHooks(hooks), statechart.WithSessionID("s1"))
	ctx := context.Background()

	require.NoError(t, m.Initialize(ctx, "A"))
	_ = m.SetState(ctx, "ghost")

	out := buf.String()
	assert.Contains(t, out, "msg=transition")
	assert.Contains(t, out, "session_id=s1")
	assert.Contains(t, out, "to=B")
	assert.Contains(t, out, "msg=config_error")
	assert.Contains(t, out, "request=ghost")
}
