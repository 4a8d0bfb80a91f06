package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tops/internal/presentation/graph"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/statechart"
)

func testChart(t *testing.T) *statechart.Chart {
	t.Helper()
	chart, err := statechart.Compile([]domain.Declaration{
		{Name: "top", Initial: "main-menu"},
		{Name: "main-menu", Parent: "top", Triggers: []domain.Trigger{{Label: "Settings", Target: "settings"}}},
		{Name: "settings", Parent: "top", Initial: "audio", Triggers: []domain.Trigger{{Target: "main-menu"}}},
		{Name: "audio", Parent: "settings", Triggers: []domain.Trigger{{Label: "Video", Target: "video"}}},
		{Name: "video", Parent: "settings", Triggers: []domain.Trigger{{Label: "Back", Target: "recall(settings)"}}},
	})
	require.NoError(t, err)
	return chart
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(testChart(t), nil)

	assert.True(t, strings.HasPrefix(out, "stateDiagram-v2\n"))
	for _, want := range []string{
		`    state "top" as top {`,
		`        [*] --> main_menu`,
		`        state "main-menu" as main_menu`,
		`        state "settings" as settings {`,
		`            [*] --> audio`,
		`            state "H" as settings_H`,
		`    main_menu --> settings : Settings`,
		`    settings --> main_menu : main-menu`,
		`    video --> settings_H : Back`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	out := graph.GenerateMermaid(testChart(t), &graph.Overlay{
		Selected: []string{"audio", "settings", "top", "settings", "ghost"},
		Current:  "audio",
	})

	assert.Contains(t, out, "classDef selected")
	assert.Contains(t, out, "    class settings selected\n")
	assert.Contains(t, out, "    class top selected\n")
	assert.Contains(t, out, "    class audio current\n")
	assert.Equal(t, 1, strings.Count(out, "class settings selected"))
	assert.NotContains(t, out, "ghost")
	assert.NotContains(t, out, "class audio selected")
}
