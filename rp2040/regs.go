//go:build rp2040

package rp2040

import (
	"embedded/mmio"
	"unsafe"
)

// Peripheral base addresses
const (
	ClocksBase   uintptr = 0x4000_8000
	ResetsBase   uintptr = 0x4000_c000
	IOBank0Base  uintptr = 0x4001_4000
	PadsBank0    uintptr = 0x4001_c000
	PLLSysBase   uintptr = 0x4002_8000
	BusCtrlBase  uintptr = 0x4003_0000
	UART0Base    uintptr = 0x4003_4000
	TimerBase    uintptr = 0x4005_4000
	WatchdogBase uintptr = 0x4005_8000
	DMABase      uintptr = 0x5000_0000
	PIO0Base     uintptr = 0x5020_0000
	PIO1Base     uintptr = 0x5030_0000
	SIOBase      uintptr = 0xd000_0000

	XIPBase uintptr = 0x1000_0000 // flash mapped by the execute-in-place cache
)

// Atomic register aliases
const (
	aliasXor uintptr = 0x1000
	aliasSet uintptr = 0x2000
	aliasClr uintptr = 0x3000
)

// SetBits atomically sets bits of the register r.
func SetBits(r *mmio.U32, bits uint32) {
	(*mmio.U32)(unsafe.Pointer(r.Addr() | aliasSet)).Store(bits)
}

// ClearBits atomically clears bits of the register r.
func ClearBits(r *mmio.U32, bits uint32) {
	(*mmio.U32)(unsafe.Pointer(r.Addr() | aliasClr)).Store(bits)
}

// Reset bits of the peripherals used by the firmware
type ResetFlag uint32

const (
	ResetDMA       ResetFlag = 1 << 2
	ResetIOBank0   ResetFlag = 1 << 5
	ResetPadsBank0 ResetFlag = 1 << 8
	ResetPIO0      ResetFlag = 1 << 10
	ResetPIO1      ResetFlag = 1 << 11
	ResetPLLSys    ResetFlag = 1 << 12
	ResetTimer     ResetFlag = 1 << 21
	ResetUART0     ResetFlag = 1 << 22
)

type resetRegs struct {
	reset mmio.U32
	wdsel mmio.U32
	done  mmio.U32
}

var resets = (*resetRegs)(unsafe.Pointer(ResetsBase))

// Unreset takes the peripherals out of reset and waits until they are
// ready.
func Unreset(f ResetFlag) {
	ClearBits(&resets.reset, uint32(f))
	for resets.done.Load()&uint32(f) != uint32(f) {
	}
}

// Reset puts the peripherals into reset.
func Reset(f ResetFlag) {
	SetBits(&resets.reset, uint32(f))
}

var busPriority = (*mmio.U32)(unsafe.Pointer(BusCtrlBase))

const (
	busPriorityDMAR = 1 << 8
	busPriorityDMAW = 1 << 12
)

// PrioritizeDMA grants the DMA high priority on the bus fabric, so it can
// shove the processors out of the way when answering the host.
func PrioritizeDMA() {
	busPriority.Store(busPriorityDMAR | busPriorityDMAW)
}
