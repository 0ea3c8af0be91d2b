//go:build rp2040

package rp2040

import (
	"embedded/mmio"
	"unsafe"
)

type watchdogRegs struct {
	ctrl    mmio.U32
	load    mmio.U32
	reason  mmio.U32
	scratch [8]mmio.U32
	tick    mmio.U32
}

var watchdog = (*watchdogRegs)(unsafe.Pointer(WatchdogBase))

const (
	watchdogEnable  = 1 << 30
	watchdogTrigger = 1 << 31
)

// Reboot resets the chip through the watchdog. It never returns.
func Reboot() {
	watchdog.load.Store(1)
	SetBits(&watchdog.ctrl, watchdogEnable|watchdogTrigger)
	for {
	}
}
