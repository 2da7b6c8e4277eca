// Package monitoring holds the process-wide diagnostic logger used by the
// analyzer's library packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced with SetLogger; tests typically mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// verbose gates Debugf output.
var verbose bool

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose enables or disables Debugf output.
func SetVerbose(v bool) {
	verbose = v
}

// Debugf logs through Logf only when verbose mode is enabled. It is used for
// high-rate diagnostics (per-scan delivery, stale lifecycle events) that
// would otherwise flood the log.
func Debugf(format string, v ...interface{}) {
	if verbose {
		Logf(format, v...)
	}
}
