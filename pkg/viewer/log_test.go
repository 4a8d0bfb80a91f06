package viewer_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/feed"
	"github.com/aretw0/tops/pkg/feed/feedtest"
	"github.com/aretw0/tops/pkg/viewer"
)

func newLogViewer(t *testing.T, opts ...viewer.Option) (*viewer.LogViewer, *logRecorder, *feedtest.Server) {
	t.Helper()
	srv := feedtest.New()
	t.Cleanup(srv.Close)
	client, err := feed.New(srv.URL)
	require.NoError(t, err)
	rec := &logRecorder{}
	v := viewer.NewLogViewer(client, rec, append([]viewer.Option{viewer.WithSessionID("u1")}, opts...)...)
	t.Cleanup(func() {
		v.Stop()
		v.Wait()
	})
	return v, rec, srv
}

func record(level domain.Level, source, body string) domain.LogRecord {
	return domain.LogRecord{Timestamp: time.UnixMilli(1700000000000), Level: level, Source: source, Body: body}
}

func TestLogOptions(t *testing.T) {
	o := viewer.DefaultLogOptions()
	require.NoError(t, o.Validate())
	assert.Equal(t, `Using OPTIONS: update interval = 1s, max messages = 1000, source filter is "*", min level = DEBUG`, o.String())

	o.Interval = 500 * time.Millisecond
	o.MaxMessages = 0
	o.SourceFilter = "tcc.*"
	o.MinLevel = domain.LevelWarning
	assert.Equal(t, `Using OPTIONS: update interval = 0.5s, max messages = 0, source filter is "tcc.*", min level = WARNING`, o.String())

	bad := viewer.LogOptions{Interval: 0, MaxMessages: -1, SourceFilter: "a b"}
	err := bad.Validate()
	assert.ErrorIs(t, err, viewer.ErrInvalidOptions)
}

func TestLogViewer_UpdateOptionsAndPoll(t *testing.T) {
	v, rec, srv := newLogViewer(t)
	ctx := context.Background()

	srv.AddRecord(record(domain.LevelInfo, "tcc.axis", "first"))
	srv.AddRecord(record(domain.LevelDebug, "tcc.axis", "noise"))
	srv.AddRecord(record(domain.LevelWarning, "apogee.ccd", "elsewhere"))
	srv.AddRecord(record(domain.LevelError, "tcc.axis", "second"))

	opts := viewer.LogOptions{Interval: time.Hour, MaxMessages: 100, SourceFilter: "tcc.*", MinLevel: domain.LevelInfo}
	require.NoError(t, v.UpdateOptions(ctx, opts))
	assert.True(t, v.Running())
	assert.Equal(t, opts, v.Options())

	filter, ok := srv.Filter("u1")
	require.True(t, ok)
	assert.Equal(t, "tcc.*", filter.Source.String())

	n, err := v.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{opts.String(), "first", "second"}, rec.bodies())
	assert.Equal(t, domain.LocalSource, rec.rows[0].Record.Source)
	assert.False(t, rec.rows[0].Zebra)
	assert.True(t, rec.rows[1].Zebra)
	assert.False(t, rec.rows[2].Zebra)
	assert.Equal(t, 3, rec.count)
	assert.Equal(t, 1, rec.updates)

	// Records are delivered once per session.
	n, err = v.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	total, displayed := v.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, displayed)
}

func TestLogViewer_TrimsToMax(t *testing.T) {
	v, rec, srv := newLogViewer(t)
	ctx := context.Background()

	opts := viewer.DefaultLogOptions()
	opts.Interval = time.Hour
	opts.MaxMessages = 2
	require.NoError(t, v.UpdateOptions(ctx, opts))

	for _, body := range []string{"a", "b", "c"} {
		srv.AddRecord(record(domain.LevelInfo, "tcc.axis", body))
	}
	_, err := v.Poll(ctx)
	require.NoError(t, err)

	total, displayed := v.Counts()
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, displayed)
	assert.Equal(t, []string{"b", "c"}, rec.bodies())
	assert.Equal(t, 2, rec.removed)
	assert.Equal(t, 2, rec.count)
}

func TestLogViewer_UnlimitedMax(t *testing.T) {
	v, rec, srv := newLogViewer(t)
	ctx := context.Background()

	opts := viewer.DefaultLogOptions()
	opts.Interval = time.Hour
	opts.MaxMessages = 0
	require.NoError(t, v.UpdateOptions(ctx, opts))
	for i := 0; i < 5; i++ {
		srv.AddRecord(record(domain.LevelInfo, "tcc.axis", "x"))
	}
	_, err := v.Poll(ctx)
	require.NoError(t, err)
	assert.Len(t, rec.bodies(), 6)
	assert.Zero(t, rec.removed)
}

func TestLogViewer_TransportErrorStopsPolling(t *testing.T) {
	obs := &countingObserver{}
	v, rec, srv := newLogViewer(t, viewer.WithPollObserver(obs))
	ctx := context.Background()

	opts := viewer.DefaultLogOptions()
	opts.Interval = 5 * time.Millisecond
	require.NoError(t, v.UpdateOptions(ctx, opts))
	srv.FailWith(http.StatusInternalServerError)

	assert.Eventually(t, func() bool { return !v.Running() }, time.Second, 5*time.Millisecond)
	v.Wait()

	assert.Equal(t, `Server communication error [status "error"; error thrown "Internal Server Error"]. Update OPTIONS to try reconnecting.`,
		rec.last().Record.Body)
	assert.Equal(t, domain.LevelLocal, rec.last().Record.Level)
	assert.Equal(t, 1, obs.failures())

	// Updating the options reconnects.
	srv.FailWith(0)
	opts.Interval = time.Hour
	require.NoError(t, v.UpdateOptions(ctx, opts))
	assert.True(t, v.Running())
}

func TestLogViewer_ConfigureFailure(t *testing.T) {
	v, rec, srv := newLogViewer(t)
	srv.FailWith(http.StatusBadGateway)

	opts := viewer.DefaultLogOptions()
	err := v.UpdateOptions(context.Background(), opts)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.False(t, v.Running())
	assert.Equal(t, []string{
		opts.String(),
		`Server communication error [status "error"; error thrown "Bad Gateway"]. Update OPTIONS to try reconnecting.`,
	}, rec.bodies())
}

func TestLogViewer_InvalidOptions(t *testing.T) {
	v, rec, _ := newLogViewer(t)
	opts := viewer.DefaultLogOptions()
	opts.SourceFilter = "not a pattern"

	err := v.UpdateOptions(context.Background(), opts)
	assert.ErrorIs(t, err, viewer.ErrInvalidOptions)
	assert.False(t, v.Running())
	assert.Empty(t, rec.bodies())
	assert.Equal(t, viewer.DefaultLogOptions(), v.Options())
}

func TestErrorMessage(t *testing.T) {
	msg := viewer.ErrorMessage(&feed.TransportError{Status: feed.StatusTimeout})
	assert.Equal(t, `Server communication error [status "timeout"; error thrown ""]. Update OPTIONS to try reconnecting.`, msg)

	msg = viewer.ErrorMessage(assert.AnError)
	assert.Contains(t, msg, `status "error"`)
	assert.Contains(t, msg, assert.AnError.Error())
}
