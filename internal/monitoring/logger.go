// Package monitoring holds the diagnostic logger shared by the driver
// packages. The driver never fails on a diagnostic, so anything that must be
// suppressed rather than returned (teardown failures, unexpected bytes) goes
// through Logf.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Debug enables Debugf output. It is off by default so frame dumps do not
// flood the log at the scheduler's tick rate.
var Debug bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Debugf forwards to Logf when Debug is set.
func Debugf(format string, v ...interface{}) {
	if !Debug {
		return
	}
	Logf("[debug] "+format, v...)
}
