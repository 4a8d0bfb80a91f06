package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the tops banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{"  _", "#818cf8"},
		{" | |_ ___  _ __  ___", "#a78bfa"},
		{" | __/ _ \\| '_ \\/ __|", "#c084fc"},
		{" | || (_) | |_) \\__ \\", "#e879f9"},
		{"  \\__\\___/| .__/|___/", "#f472b6"},
		{"          |_|", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, termenv.String("  "+version).Faint())
	}
	fmt.Fprintln(w)
}
