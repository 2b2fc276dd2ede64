// Package debug provides the per-sample-safe logging hook the DSP core
// uses: a package-level verbosity switch gating a plain fmt.Fprintf to
// stderr, the same shape as the teacher's pkg/modem debugLog calls (which
// the teacher repo calls throughout bytemodem.go but never itself
// defines).
package debug

import (
	"fmt"
	"os"
)

// Verbose gates Logf. It is a plain package variable, not a constructor
// argument, so the DSP core's hot path never has to thread a logger
// through every call — set it once at program start.
var Verbose bool

// Logf writes a formatted line to stderr if Verbose is set. Safe to call
// from the per-sample path: it costs nothing when Verbose is false.
func Logf(format string, args ...any) {
	if !Verbose {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
