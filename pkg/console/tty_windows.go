package console

import "os"

// IsInteractive reports whether f is a character device.
func IsInteractive(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
