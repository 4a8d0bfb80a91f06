package tui_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tops/internal/presentation/tui"
	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/statechart"
	"github.com/aretw0/tops/pkg/viewer"
)

func TestOutput_PlainStripsEscapes(t *testing.T) {
	var buf bytes.Buffer
	out := tui.NewOutput(&buf, true)
	out.Block("\x1b[31mred\x1b[0m")
	out.Println(out.Color("blue", "#0000ff").Bold())
	assert.Equal(t, "red\nblue\n", buf.String())
}

func TestLogView(t *testing.T) {
	var buf bytes.Buffer
	view := tui.NewLogView(tui.NewOutput(&buf, true))
	assert.Equal(t, "0 messages, never updated", view.Status())

	ts := time.Date(2024, 5, 1, 12, 30, 45, 123000000, time.UTC)
	rec := domain.LogRecord{Timestamp: ts, Level: domain.LevelWarning, Source: "tcc.axis", Body: "slewing"}
	view.AppendRow(viewer.LogRow{Record: rec})
	view.AppendRow(viewer.LogRow{Record: rec, Zebra: true})
	view.RemoveOldestRow()
	view.SetCount(1)
	view.SetLastUpdate(ts, "success")

	assert.Equal(t, "12:30:45.123 WARNING  tcc.axis             slewing", tui.FormatRecord(rec))
	assert.Equal(t, 2, strings.Count(buf.String(), "slewing"))
	assert.Len(t, view.Rows(), 1)
	assert.Equal(t, "1 messages, last update 12:30:45.123 success", view.Status())
}

func TestChannelView(t *testing.T) {
	var buf bytes.Buffer
	view := tui.NewChannelView(tui.NewOutput(&buf, true))

	view.AddChannel("tcc.az")
	view.SetValues([]viewer.ChannelValue{{Name: "tcc.az", Value: "12.5"}})
	view.SetValues([]viewer.ChannelValue{{Name: "tcc.az", Value: "12.5"}})
	view.SetValues([]viewer.ChannelValue{{Name: "tcc.az", Value: "13.0"}})
	view.Alert("lost")

	assert.Equal(t, "+ tcc.az\ntcc.az = 12.5\ntcc.az = 13.0\n! lost\n", buf.String())
	assert.Equal(t, []string{"tcc.az"}, view.Channels())
	assert.Equal(t, 1, view.Alerts())

	view.ClearChannels()
	assert.Empty(t, view.Channels())
}

func TestChartView(t *testing.T) {
	decls := []domain.Declaration{
		{Name: "top", Initial: "main"},
		{Name: "main", Parent: "top", Doc: "Welcome to the main page.", Triggers: []domain.Trigger{{Label: "Settings", Target: "settings"}}},
		{Name: "settings", Parent: "top"},
	}
	chart, err := statechart.Compile(decls)
	require.NoError(t, err)

	var buf bytes.Buffer
	doc := memory.NewDocumentFor(chart.Declarations())
	view := tui.NewChartView(tui.NewOutput(&buf, true), chart, doc)
	m := statechart.NewMachine(chart, doc, statechart.WithNavigator(view))
	require.NoError(t, m.Initialize(context.Background(), "top"))

	view.Render(m.ActiveTriggers())
	out := buf.String()
	assert.Contains(t, out, "● top\n")
	assert.Contains(t, out, "  ● main\n")
	assert.Contains(t, out, "  ○ settings\n")
	assert.Contains(t, out, "[1] Settings → settings")

	buf.Reset()
	consumed, err := m.Reveal(context.Background(), statechart.RevealKey)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Contains(t, buf.String(), "Welcome to the main page.")
	assert.Equal(t, "#main", doc.Anchor())
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "v1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
}
