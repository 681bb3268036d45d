package output

import (
	"os"

	"golang.org/x/term"
)

// TerminalWidth reports the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // Default fallback width
	}
	return width
}

func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
