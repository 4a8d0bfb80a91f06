package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/statechart"
)

// Overlay contains the dynamic selection to visualize on the diagram.
type Overlay struct {
	// Selected lists the states on the active path.
	Selected []string
	// Current is the active leaf.
	Current string
}

// GenerateMermaid produces a Mermaid state diagram of the chart.
// Compound states are drawn as composite states with an arrow from [*] to
// their initial child. Triggers become labelled transitions; recall triggers
// are drawn to the target's history pseudo-state.
func GenerateMermaid(chart *statechart.Chart, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")

	for _, root := range chart.Roots() {
		writeState(&sb, chart, root, 1)
	}

	for _, decl := range chart.Declarations() {
		from := sanitizeMermaidID(decl.Name)
		for _, t := range decl.Triggers {
			req, err := domain.ParseRequest(t.Target)
			if err != nil {
				continue
			}
			to := sanitizeMermaidID(req.Target)
			if req.Mode == domain.ModeRecall {
				to += "_H"
			}
			label := strings.ReplaceAll(t.Label, ":", " ")
			if label == "" {
				label = req.String()
			}
			sb.WriteString(fmt.Sprintf("    %s --> %s : %s\n", from, to, label))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast on light fills in either theme.
		sb.WriteString("    classDef selected fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000\n")

		seen := make(map[string]bool)
		for _, name := range overlay.Selected {
			id := sanitizeMermaidID(name)
			if id == "" || seen[id] || name == overlay.Current || !chart.Has(name) {
				continue
			}
			seen[id] = true
			sb.WriteString(fmt.Sprintf("    class %s selected\n", id))
		}
		if overlay.Current != "" && chart.Has(overlay.Current) {
			sb.WriteString(fmt.Sprintf("    class %s current\n", sanitizeMermaidID(overlay.Current)))
		}
	}

	return sb.String()
}

func writeState(sb *strings.Builder, chart *statechart.Chart, name string, depth int) {
	indent := strings.Repeat("    ", depth)
	id := sanitizeMermaidID(name)

	children := chart.Children(name)
	if len(children) == 0 {
		sb.WriteString(fmt.Sprintf("%sstate \"%s\" as %s\n", indent, name, id))
		return
	}

	sb.WriteString(fmt.Sprintf("%sstate \"%s\" as %s {\n", indent, name, id))
	if initial := chart.Initial(name); initial != "" {
		sb.WriteString(fmt.Sprintf("%s    [*] --> %s\n", indent, sanitizeMermaidID(initial)))
	}
	sb.WriteString(fmt.Sprintf("%s    state \"H\" as %s_H\n", indent, id))
	for _, child := range children {
		writeState(sb, chart, child, depth+1)
	}
	sb.WriteString(fmt.Sprintf("%s}\n", indent))
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
