//go:build rp2040

package machine

import (
	_ "unsafe"

	"github.com/clktmr/sidecart/rp2040"
)

// Writes to the UART without locking or interrupts. Works from the first
// instruction after init, so it's used for print and panics.
//
//go:nowritebarrierrec
//go:nosplit
//go:linkname DefaultWrite runtime.defaultWrite
func DefaultWrite(fd int, p []byte) int {
	rp2040.UART0.Write(p)
	return len(p)
}

type defaultWriter int

const DefaultWriter defaultWriter = 0

func (v defaultWriter) Write(p []byte) (int, error) {
	return DefaultWrite(int(v), p), nil
}
