package util

import "os"

// ShouldUseColors reports whether stdout should receive coloured output:
// respects NO_COLOR (https://no-color.org/) and falls back to TERM=dumb
// detection, matching the common convention used by terminal-aware CLIs.
func ShouldUseColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}
