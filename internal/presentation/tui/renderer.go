package tui

import (
	"github.com/charmbracelet/glamour"
)

// docWidth is the wrap width of revealed state documentation.
const docWidth = 80

// Markdown renders state documentation for out. Plain outputs use the
// glamour notty style, which needs no terminal queries. If glamour fails
// to initialize the markdown is shown as is.
func Markdown(out *Output) func(string) (string, error) {
	style := glamour.WithAutoStyle()
	if out.Plain() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(docWidth))
	if err != nil {
		return func(md string) (string, error) { return md, nil }
	}
	return r.Render
}
