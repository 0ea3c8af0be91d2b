//go:build rp2040

package rp2040

import (
	"embedded/mmio"
	"unsafe"
)

type timerRegs struct {
	timehw mmio.U32
	timelw mmio.U32
	timehr mmio.U32
	timelr mmio.U32
	_      [5]mmio.U32
	rawh   mmio.U32
	rawl   mmio.U32
}

var timer = (*timerRegs)(unsafe.Pointer(TimerBase))

// Micros returns the free running 64-bit microsecond counter. It doesn't use
// the latching registers, so it's safe to call from interrupt context.
//
//go:nosplit
func Micros() int64 {
	for {
		hi := timer.rawh.Load()
		lo := timer.rawl.Load()
		if timer.rawh.Load() == hi {
			return int64(hi)<<32 | int64(lo)
		}
	}
}
