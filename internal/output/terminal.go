package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Terminal implements progress.Renderer with ANSI escapes. Upward motion uses
// cursor-up; downward motion prints newlines so that moving below the last
// line scrolls the terminal and opens a fresh line.
type Terminal struct {
	w *bufio.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{w: bufio.NewWriter(out)}
}

func (t *Terminal) DrawLine(offset int, text string) error {
	if err := t.MoveCursor(offset); err != nil {
		return err
	}
	_, err := t.w.WriteString(text)
	return err
}

func (t *Terminal) ClearToEndOfLine() error {
	_, err := t.w.WriteString("\033[K")
	return err
}

func (t *Terminal) MoveCursor(offset int) error {
	var err error
	switch {
	case offset < 0:
		_, err = fmt.Fprintf(t.w, "\033[%dA\r", -offset)
	case offset > 0:
		_, err = t.w.WriteString(strings.Repeat("\n", offset) + "\r")
	default:
		_, err = t.w.WriteString("\r")
	}
	return err
}

func (t *Terminal) Flush() error {
	return t.w.Flush()
}
