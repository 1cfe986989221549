// Package monitoring holds the runtime's diagnostic logger.
//
// Every entry point logs through a Call logger so messages carry the API
// function name that produced them, the same way an application developer
// reads them in a runtime log.
package monitoring

import (
	"fmt"
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var errorLogging atomic.Bool

// SetErrorLogging toggles whether Call.Errorf writes to Logf. Errors are
// always returned to the caller; this only controls the log echo.
func SetErrorLogging(enabled bool) {
	errorLogging.Store(enabled)
}

// ErrorLogging reports whether Call.Errorf echoes to Logf.
func ErrorLogging() bool {
	return errorLogging.Load()
}

// Call is a logger scoped to one API entry point invocation.
type Call struct {
	Func string
}

// NewCall returns a logger for the named API function.
func NewCall(fn string) Call {
	return Call{Func: fn}
}

// Warnf logs a non-fatal diagnostic for the call.
func (c Call) Warnf(format string, v ...interface{}) {
	Logf("%s: WARNING: %s", c.Func, fmt.Sprintf(format, v...))
}

// Infof logs an informational message for the call.
func (c Call) Infof(format string, v ...interface{}) {
	Logf("%s: %s", c.Func, fmt.Sprintf(format, v...))
}

// Errorf echoes an error message for the call when error logging is on.
func (c Call) Errorf(format string, v ...interface{}) {
	if !errorLogging.Load() {
		return
	}
	Logf("%s: ERROR: %s", c.Func, fmt.Sprintf(format, v...))
}
