package cli

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"golang.org/x/term"
)

// Terminal is the keyboard and screen of an interactive command.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	// Raw reports whether the input delivers single key presses.
	Raw     bool
	restore func() error
}

// OpenTerminal puts stdin in raw mode when it is a terminal, so single key
// presses drive the chart. Piped input is read as is.
func OpenTerminal(in *os.File, out io.Writer) (*Terminal, error) {
	t := &Terminal{In: in, Out: out, restore: func() error { return nil }}
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return t, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	t.Raw = true
	t.Out = crlfWriter{w: out}
	t.restore = func() error { return term.Restore(fd, state) }
	return t, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Close restores the terminal mode.
func (t *Terminal) Close() error {
	return t.restore()
}

// crlfWriter restores carriage returns that raw mode no longer adds.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ReadKeys streams the runes read from r. Line breaks are dropped.
// The channel is closed at the end of input.
func ReadKeys(r io.Reader) <-chan rune {
	keys := make(chan rune)
	go func() {
		defer close(keys)
		br := bufio.NewReader(r)
		for {
			k, _, err := br.ReadRune()
			if err != nil {
				return
			}
			if k == '\n' || k == '\r' {
				continue
			}
			keys <- k
		}
	}()
	return keys
}

// ReadLines streams the lines read from r. The channel is closed at the end of input.
func ReadLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}
