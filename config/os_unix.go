//go:build !windows

package config

import "os"

// enableVT reports whether terminal understands color sequences, every
// unix terminal does.
func enableVT(*os.File) bool {
	return true
}
