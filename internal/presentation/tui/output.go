package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/muesli/termenv"
)

// Output writes styled lines to a terminal. In plain mode every escape
// sequence is stripped, including those produced by glamour.
type Output struct {
	mu      sync.Mutex
	w       io.Writer
	plain   bool
	profile termenv.Profile
}

// NewOutput wraps w. Use plain for pipes and files.
func NewOutput(w io.Writer, plain bool) *Output {
	profile := termenv.ColorProfile()
	if plain {
		profile = termenv.Ascii
	}
	return &Output{w: w, plain: plain, profile: profile}
}

// Plain reports whether escape sequences are stripped.
func (o *Output) Plain() bool { return o.plain }

// Color styles s with a hex foreground color.
func (o *Output) Color(s, hex string) termenv.Style {
	return termenv.String(s).Foreground(o.profile.Color(hex))
}

// Println writes one line.
func (o *Output) Println(a ...any) {
	o.write(fmt.Sprintln(a...))
}

// Printf writes formatted text.
func (o *Output) Printf(format string, a ...any) {
	o.write(fmt.Sprintf(format, a...))
}

// Block writes a multi-line block, ensuring it ends with a newline.
func (o *Output) Block(s string) {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	o.write(s)
}

func (o *Output) write(s string) {
	if o.plain {
		s = stripansi.Strip(s)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = io.WriteString(o.w, s)
}
