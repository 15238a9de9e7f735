//go:build windows
// +build windows

package colors

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// enabled describes whether Colorize should emit ANSI escape codes.
var enabled bool

// EnableColor queries the console mode of stdout and enables ANSI coloring only if virtual terminal processing is
// available.
func EnableColor() {
	var mode uint32
	handle := windows.Handle(os.Stdout.Fd())
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		enabled = false
		return
	}
	if mode&windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING == 0 {
		// Try to switch it on ourselves before giving up.
		if err := windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING); err != nil {
			enabled = false
			return
		}
	}
	enabled = true
}

// DisableColor turns off ANSI coloring, making Colorize return its input as a plain string.
func DisableColor() {
	enabled = false
}

// Colorize returns the string s wrapped in ANSI code c assuming that ANSI is supported on the Windows version
// Source: https://github.com/rs/zerolog/blob/4fff5db29c3403bc26dee9895e12a108aacc0203/console.go
func Colorize(s any, c Color) string {
	if !enabled {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}
