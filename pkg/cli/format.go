// Package cli provides shared formatting helpers for the omnigate command.
package cli

import (
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/term"
)

// colorEnabled starts false; EnableColor turns it on for terminals.
var colorEnabled atomic.Bool

// EnableColor turns colour on when f is a terminal and NO_COLOR is unset
// (per no-color.org). It reports the resulting state.
func EnableColor(f *os.File) bool {
	on := os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(f.Fd()))
	colorEnabled.Store(on)
	return on
}

// SetColor forces colour on or off.
func SetColor(on bool) {
	colorEnabled.Store(on)
}

// TerminalWidth returns the column count of f, or 0 when f is not a terminal.
func TerminalWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func paint(code, s string) string {
	if !colorEnabled.Load() {
		return s
	}
	return code + s + "\033[0m"
}

// Green wraps s in ANSI green when colour is enabled.
func Green(s string) string { return paint("\033[32m", s) }

// Yellow wraps s in ANSI yellow when colour is enabled.
func Yellow(s string) string { return paint("\033[33m", s) }

// Red wraps s in ANSI red when colour is enabled.
func Red(s string) string { return paint("\033[31m", s) }

// Bold wraps s in ANSI bold when colour is enabled.
func Bold(s string) string { return paint("\033[1m", s) }

// Dim wraps s in ANSI dim when colour is enabled.
func Dim(s string) string { return paint("\033[2m", s) }

// Status colours a response status: ok is green, partial is yellow and
// anything else red.
func Status(status string) string {
	switch status {
	case "ok":
		return Green(status)
	case "partial":
		return Yellow(status)
	default:
		return Red(status)
	}
}

// DotPad pads name with dots to the given width.
// Example: DotPad("aos.diag.poe", 20) → "aos.diag.poe ......."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}
