package util

import (
	"os"

	"golang.org/x/term"
)

// IsInteractive reports whether the given file is attached to a terminal.
// Progress bars and console-style logs are suppressed when it is not.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the column width of the terminal behind f,
// or 80 when f is not a terminal.
func TerminalWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 80
	}
	return width
}
