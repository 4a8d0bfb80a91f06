package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/statechart"
)

// ChartView draws a statechart as an indented tree, styled from the class
// names the machine applied to the document elements. It doubles as the
// navigator: revealing a state prints its rendered documentation.
type ChartView struct {
	out    *Output
	chart  *statechart.Chart
	doc    *memory.Document
	render func(string) (string, error)
}

// NewChartView creates a view over doc, which must be the machine's binder.
func NewChartView(out *Output, chart *statechart.Chart, doc *memory.Document) *ChartView {
	return &ChartView{out: out, chart: chart, doc: doc, render: Markdown(out)}
}

// Render prints the tree followed by the numbered active triggers.
func (v *ChartView) Render(triggers []statechart.ActiveTrigger) {
	var sb strings.Builder
	for _, name := range v.chart.Sorted() {
		indent := strings.Repeat("  ", v.chart.Depth(name))
		el := v.doc.Element(name)
		switch {
		case el == nil:
			sb.WriteString(fmt.Sprintf("%s  %s\n", indent, name))
		case el.ClassName() == memory.ClassSelectedState:
			sb.WriteString(fmt.Sprintf("%s%s\n", indent, v.out.Color("● "+name, "#fbc02d").Bold()))
		default:
			sb.WriteString(fmt.Sprintf("%s%s\n", indent, v.out.Color("○ "+name, "#9ca3af")))
		}
	}

	if len(triggers) > 0 {
		sb.WriteString("\n")
		for i, t := range triggers {
			key := " "
			if i < 9 {
				key = fmt.Sprint(i + 1)
			}
			sb.WriteString(fmt.Sprintf("  [%s] %s %s\n", key, t.Label, v.out.Color("→ "+t.Target, "#818cf8")))
		}
	}
	sb.WriteString(v.out.Color("\n  space: show docs  1-9: trigger  q: quit\n", "#6b7280").String())
	v.out.Block(sb.String())
}

// Reveal implements ports.Navigator.
func (v *ChartView) Reveal(name string) error {
	if err := v.doc.Reveal(name); err != nil {
		return err
	}
	doc := v.chart.Doc(name)
	if strings.TrimSpace(doc) == "" {
		doc = fmt.Sprintf("# %s\n\n_No documentation._", name)
	}
	rendered, err := v.render(doc)
	if err != nil {
		return fmt.Errorf("render docs for %s: %w", name, err)
	}
	v.out.Block(rendered)
	return nil
}
