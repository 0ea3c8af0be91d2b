//go:build rp2040

package rp2040

import (
	"embedded/mmio"
	"unsafe"
)

// Function selects the peripheral driving a pin.
type Function uint32

const (
	FuncUART Function = 2
	FuncSIO  Function = 5
	FuncPIO0 Function = 6
	FuncPIO1 Function = 7
	FuncNull Function = 31
)

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type ioRegs struct {
	gpio [30]struct {
		status mmio.U32
		ctrl   mmio.U32
	}
}

type padRegs struct {
	voltage mmio.U32
	gpio    [30]mmio.U32
}

type sioRegs struct {
	cpuid  mmio.U32
	in     mmio.U32
	hiIn   mmio.U32
	_      mmio.U32
	out    mmio.U32
	outSet mmio.U32
	outClr mmio.U32
	outXor mmio.U32
	oe     mmio.U32
	oeSet  mmio.U32
	oeClr  mmio.U32
	oeXor  mmio.U32
}

var (
	iobank = (*ioRegs)(unsafe.Pointer(IOBank0Base))
	pads   = (*padRegs)(unsafe.Pointer(PadsBank0))
	sio    = (*sioRegs)(unsafe.Pointer(SIOBase))
)

const (
	padSlewFast = 1 << 0
	padSchmitt  = 1 << 1
	padPullDown = 1 << 2
	padPullUp   = 1 << 3
	padInput    = 1 << 6
	padOD       = 1 << 7
)

// Pin is a GPIO of bank 0.
type Pin uint8

// Setup selects the function of the pin, enables its input and sets the
// pulls.
func (p Pin) Setup(f Function, pull Pull) {
	v := uint32(padInput | padSchmitt)
	switch pull {
	case PullUp:
		v |= padPullUp
	case PullDown:
		v |= padPullDown
	}
	pads.gpio[p].Store(v)
	iobank.gpio[p].ctrl.Store(uint32(f))
}

// Output sets the direction of a pin controlled by the SIO.
func (p Pin) Output(out bool) {
	if out {
		sio.oeSet.Store(1 << p)
	} else {
		sio.oeClr.Store(1 << p)
	}
}

// Set drives a pin controlled by the SIO.
//
//go:nosplit
func (p Pin) Set(high bool) {
	if high {
		sio.outSet.Store(1 << p)
	} else {
		sio.outClr.Store(1 << p)
	}
}

// Get returns the input level of the pin.
//
//go:nosplit
func (p Pin) Get() bool {
	return sio.in.Load()&(1<<p) != 0
}
