// Package agentlog is a minimal leveled wrapper over stderr output, in the
// teacher's own register (plain fmt.Fprintf lines, no structured fields or
// timestamps) rather than introducing a logging library the example pack's
// domain repos don't share. See DESIGN.md for why this one ambient concern
// stays on the standard library.
package agentlog

import (
	"fmt"
	"os"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose toggles Debug-level output.
func SetVerbose(v bool) { verbose.Store(v) }

// Info logs a routine progress line.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[info] "+format+"\n", args...)
}

// Warn logs a recoverable problem.
func Warn(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[warn] "+format+"\n", args...)
}

// Debug logs a line only when verbose output is enabled.
func Debug(format string, args ...interface{}) {
	if !verbose.Load() {
		return
	}
	fmt.Fprintf(os.Stderr, "[debug] "+format+"\n", args...)
}
