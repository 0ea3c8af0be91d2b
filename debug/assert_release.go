//go:build !debug

// Package debug provides assertions and command tracing that are enabled with
// the debug build tag and otherwise compile to no-ops.
package debug

// Guard more complex assertions (i.e. anything that could panic) with `if
// debug.Enabled{...}`, otherwise they can't be removed in release builds.
const Enabled = false

// Assert panics if b is false.
func Assert(b bool, message string) {}

// AssertErrNil panics if err is not nil.
func AssertErrNil(err error) {}

// Printf logs a trace message with the standard logger.
func Printf(format string, v ...any) {}
