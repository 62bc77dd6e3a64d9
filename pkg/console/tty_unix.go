//go:build !windows

package console

import (
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// IsInteractive reports whether f is a terminal, in which case the console
// shows a prompt.
func IsInteractive(f *os.File) bool {
	var attr unix.Termios
	return termios.Tcgetattr(f.Fd(), &attr) == nil
}
