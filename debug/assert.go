//go:build debug

package debug

import "log"

// Guard more complex assertions (i.e. anything that could panic) with `if
// debug.Enabled{...}`, otherwise they can't be removed in release builds.
const Enabled = true

func Assert(b bool, message string) {
	if !b {
		panic(message)
	}
}

func AssertErrNil(err error) {
	if err != nil {
		panic(err)
	}
}

// Printf traces a command or state change. Never call it from the bus
// interrupt.
func Printf(format string, v ...any) {
	log.Printf(format, v...)
}
