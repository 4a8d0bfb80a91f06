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

func newArchiver(t *testing.T) (*viewer.ArchiverViewer, *channelRecorder, *feedtest.Server) {
	t.Helper()
	srv := feedtest.New()
	t.Cleanup(srv.Close)
	srv.SetChannel("tcc.az", "12.5")
	srv.SetChannel("tcc.alt", "45.0")
	srv.SetChannel("tcc.rot.angle", "3.0")
	srv.SetChannel("apogee.temp", "80.1")

	client, err := feed.New(srv.URL)
	require.NoError(t, err)
	rec := &channelRecorder{}
	v := viewer.NewArchiverViewer(client, rec)
	t.Cleanup(func() {
		v.Stop()
		v.Wait()
	})
	return v, rec, srv
}

func TestArchiverViewer_SetPatternAndPoll(t *testing.T) {
	v, rec, srv := newArchiver(t)
	ctx := context.Background()
	assert.NotEmpty(t, v.SessionID())

	require.NoError(t, v.SetPattern(ctx, "tcc.*"))
	assert.Equal(t, "tcc.*", v.Pattern())
	assert.Equal(t, []string{"tcc.alt", "tcc.az", "tcc.rot.angle"}, rec.names)
	assert.Equal(t, rec.names, v.Channels())

	srv.SetChannel("tcc.az", "13.0")
	n, err := v.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []viewer.ChannelValue{
		{Name: "tcc.alt", Value: "45.0"},
		{Name: "tcc.az", Value: "13.0"},
		{Name: "tcc.rot.angle", Value: "3.0"},
	}, rec.values)
	assert.Equal(t, 1, rec.updates)

	// A new pattern replaces the listed channels.
	require.NoError(t, v.SetPattern(ctx, ""))
	assert.Equal(t, viewer.DefaultPattern, v.Pattern())
	assert.Len(t, rec.names, 4)
}

func TestArchiverViewer_InvalidPattern(t *testing.T) {
	v, rec, _ := newArchiver(t)
	err := v.SetPattern(context.Background(), "tcc..az")
	assert.ErrorIs(t, err, viewer.ErrInvalidOptions)
	assert.Empty(t, rec.names)
	assert.Empty(t, v.Pattern())
}

func TestArchiverViewer_Selector(t *testing.T) {
	v, rec, _ := newArchiver(t)
	ctx := context.Background()

	assert.ErrorIs(t, v.SetSelector("tcc.[a"), viewer.ErrInvalidOptions)

	require.NoError(t, v.SetSelector("tcc.*"))
	require.NoError(t, v.SetPattern(ctx, "*"))
	assert.Equal(t, []string{"tcc.alt", "tcc.az"}, rec.names)

	_, err := v.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, rec.values, 2)
	assert.Equal(t, "tcc.alt", rec.values[0].Name)

	require.NoError(t, v.SetSelector("{apogee,tcc}.**"))
	require.NoError(t, v.SetPattern(ctx, "*"))
	assert.Len(t, rec.names, 4)
}

func TestArchiverViewer_TransportErrorAlertsAndStops(t *testing.T) {
	v, rec, srv := newArchiver(t)
	ctx := context.Background()

	require.NoError(t, v.SetPattern(ctx, "tcc.*"))
	require.NoError(t, v.Start(ctx, 5*time.Millisecond))
	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.updates > 0
	}, time.Second, 5*time.Millisecond)

	srv.FailWith(http.StatusServiceUnavailable)
	assert.Eventually(t, func() bool { return !v.Running() }, time.Second, 5*time.Millisecond)
	v.Wait()
	require.Equal(t, 1, rec.alertCount())
	assert.Contains(t, rec.alerts[0], `error thrown "Service Unavailable"`)

	err := v.SetPattern(ctx, "tcc.*")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, 2, rec.alertCount())
}
