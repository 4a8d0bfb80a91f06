package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tops"
	"github.com/aretw0/tops/internal/config"
	"github.com/aretw0/tops/pkg/adapters/file"
	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/adapters/redis"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/dsl"
	"github.com/aretw0/tops/pkg/feed/feedtest"
	"github.com/aretw0/tops/pkg/viewer"
)

// syncBuffer is written by polling goroutines and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newEngine(t *testing.T, store *memory.Store) *tops.Engine {
	t.Helper()
	b := dsl.New()
	b.Add("panel").Initial("general")
	b.Add("general").Parent("panel").Enter("Advanced", "advanced")
	b.Add("advanced").Parent("panel").Initial("network")
	b.Add("network").Parent("advanced").Enter("Back", "general")
	b.Add("help").Recall("Return", "panel")
	loader, err := b.Loader()
	require.NoError(t, err)
	eng, err := tops.New("", tops.WithLoader(loader), tops.WithStore(store))
	require.NoError(t, err)
	return eng
}

func keys(s string) <-chan rune {
	return ReadKeys(strings.NewReader(s))
}

func TestRunChart_KeysDriveMachine(t *testing.T) {
	store := memory.NewStore()
	eng := newEngine(t, store)
	var out bytes.Buffer

	snap, err := RunChart(context.Background(), eng, ChartOptions{
		SessionID: "s1",
		Keys:      keys("1\n7q"),
		Out:       &out,
		Plain:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "network", snap.Current)
	assert.Equal(t, "advanced", snap.History["panel"])

	stored, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "network", stored.Current)

	text := out.String()
	assert.Contains(t, text, "Session 's1' active.")
	assert.Contains(t, text, "[1] Advanced → advanced")
	assert.Contains(t, text, "[1] Back → general")
	assert.Contains(t, text, "no trigger at [7]")
}

func TestRunChart_ResumesSession(t *testing.T) {
	store := memory.NewStore()
	eng := newEngine(t, store)
	ctx := context.Background()

	_, err := RunChart(ctx, eng, ChartOptions{SessionID: "s1", Keys: keys("1"), Out: &bytes.Buffer{}, Plain: true})
	require.NoError(t, err)

	var out bytes.Buffer
	snap, err := RunChart(ctx, eng, ChartOptions{SessionID: "s1", Keys: keys(""), Out: &out, Plain: true})
	require.NoError(t, err)
	assert.Equal(t, "network", snap.Current)
	assert.Contains(t, out.String(), "Resuming at 'network' state...")

	snap, err = RunChart(ctx, eng, ChartOptions{SessionID: "s1", Fresh: true, Keys: keys(""), Out: &out, Plain: true})
	require.NoError(t, err)
	assert.Equal(t, "general", snap.Current)
}

func TestRunChart_DiscardsStaleSession(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", &domain.Snapshot{SessionID: "s1", Current: "ghost", History: map[string]string{}}))

	eng := newEngine(t, store)
	snap, err := RunChart(ctx, eng, ChartOptions{SessionID: "s1", Keys: keys(""), Out: &bytes.Buffer{}, Plain: true})
	require.NoError(t, err)
	assert.Equal(t, "general", snap.Current)

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "general", stored.Current)
}

func TestRunChart_RevealPrintsDocs(t *testing.T) {
	eng := newEngine(t, memory.NewStore())
	var out bytes.Buffer
	_, err := RunChart(context.Background(), eng, ChartOptions{Keys: keys(" q"), Out: &out, Plain: true})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "No documentation.")
}

func TestRunChart_StopsOnCancel(t *testing.T) {
	eng := newEngine(t, memory.NewStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunChart(ctx, eng, ChartOptions{Keys: make(chan rune), Out: &bytes.Buffer{}, Plain: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, HandleExecutionError(err))
}

func TestParseLogOptions(t *testing.T) {
	current := viewer.DefaultLogOptions()

	next, err := ParseLogOptions("interval=2.5 max=10 filter=tcc.* level=warn", current)
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, next.Interval)
	assert.Equal(t, 10, next.MaxMessages)
	assert.Equal(t, "tcc.*", next.SourceFilter)
	assert.Equal(t, domain.LevelWarning, next.MinLevel)

	next, err = ParseLogOptions("interval=500ms", current)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, next.Interval)

	same, err := ParseLogOptions("", current)
	require.NoError(t, err)
	assert.Equal(t, current, same)

	for _, bad := range []string{"interval", "max=lots", "level=LOUD", "color=red", "interval=soon"} {
		_, err := ParseLogOptions(bad, current)
		assert.ErrorIs(t, err, viewer.ErrInvalidOptions, bad)
	}
}

func TestRunLogwatch_RendersRecords(t *testing.T) {
	srv := feedtest.New()
	t.Cleanup(srv.Close)
	srv.AddRecord(domain.LogRecord{Timestamp: time.Now(), Level: domain.LevelInfo, Source: "tcc", Body: "slewing"})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	opts := viewer.DefaultLogOptions()
	opts.Interval = 20 * time.Millisecond
	out := &syncBuffer{}
	require.NoError(t, RunLogwatch(ctx, opts, FeedOptions{URL: srv.URL, Out: out, Plain: true}))

	text := out.String()
	assert.Contains(t, text, "Using OPTIONS: update interval = 0.02s")
	assert.Contains(t, text, "slewing")
}

func TestRunArchiver_RejectsBadSelector(t *testing.T) {
	err := RunArchiver(context.Background(), "*", "tcc.[a", time.Second, FeedOptions{URL: "http://localhost:1", Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, viewer.ErrInvalidOptions)
}

func TestRunArchiver_ShowsChannels(t *testing.T) {
	srv := feedtest.New()
	t.Cleanup(srv.Close)
	srv.SetChannel("tcc.az", "120.5")
	srv.SetChannel("apogee.temp", "-10")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out := &syncBuffer{}
	require.NoError(t, RunArchiver(ctx, "tcc.*", "", 20*time.Millisecond, FeedOptions{URL: srv.URL, Out: out, Plain: true}))
	assert.Contains(t, out.String(), "tcc.az")
	assert.NotContains(t, out.String(), "apogee.temp")
}

func TestWatchSessionID(t *testing.T) {
	assert.Equal(t, WatchSessionID("/a"), WatchSessionID("/a"))
	assert.NotEqual(t, WatchSessionID("/a"), WatchSessionID("/b"))
	assert.True(t, strings.HasPrefix(WatchSessionID("/a"), "watch-"))
}

func TestCreateStore(t *testing.T) {
	cfg := config.Default().Chart
	cfg.Sessions = filepath.Join(t.TempDir(), "sessions")

	store, closeFn, err := CreateStore(cfg)
	require.NoError(t, err)
	defer closeFn()
	fs, ok := store.(*file.Store)
	require.True(t, ok)
	assert.Equal(t, cfg.Sessions, fs.BasePath)

	mr := miniredis.RunT(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	store, closeFn, err = CreateStore(cfg)
	require.NoError(t, err)
	defer closeFn()
	_, ok = store.(*redis.Store)
	assert.True(t, ok)

	cfg.RedisURL = "http://nope"
	_, _, err = CreateStore(cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCreateEngine_FromDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.Chart.Dir = t.TempDir()
	_, _, err := CreateEngine(cfg, EngineOptions{})
	assert.ErrorIs(t, err, tops.ErrEmptyChart)
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	n, err := crlfWriter{w: &buf}.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "a\r\nb\r\n", buf.String())
}
