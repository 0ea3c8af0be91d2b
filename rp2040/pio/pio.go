//go:build rp2040

// Package pio drives the programmable IO blocks of the RP2040.
package pio

import (
	"embedded/mmio"
	"unsafe"

	"github.com/clktmr/sidecart/rp2040"
)

type smRegs struct {
	clkdiv    mmio.U32
	execctrl  mmio.U32
	shiftctrl mmio.U32
	addr      mmio.U32
	instr     mmio.U32
	pinctrl   mmio.U32
}

type registers struct {
	ctrl       mmio.U32
	fstat      mmio.U32
	fdebug     mmio.U32
	flevel     mmio.U32
	txf        [4]mmio.U32
	rxf        [4]mmio.U32
	irq        mmio.U32
	irqForce   mmio.U32
	syncBypass mmio.U32
	_          [3]mmio.U32
	instrMem   [32]mmio.U32
	sm         [4]smRegs
}

// PIO is one of the two programmable IO blocks.
type PIO struct {
	n    int
	regs *registers
}

var (
	PIO0 = &PIO{0, (*registers)(unsafe.Pointer(rp2040.PIO0Base))}
	PIO1 = &PIO{1, (*registers)(unsafe.Pointer(rp2040.PIO1Base))}
)

// Function returns the GPIO function that connects a pin to this block.
func (p *PIO) Function() rp2040.Function {
	return rp2040.FuncPIO0 + rp2040.Function(p.n)
}

const opJmp = 0b000 << 13

// Load copies a program into the instruction memory at offset. Jump targets
// are relocated by offset.
func (p *PIO) Load(code []uint16, offset int) {
	for i, instr := range code {
		if instr&0xe000 == opJmp {
			instr += uint16(offset)
		}
		p.regs.instrMem[offset+i].Store(uint32(instr))
	}
}

// SM is a state machine of a PIO block.
type SM struct {
	pio *PIO
	n   int
}

func (p *PIO) SM(n int) SM { return SM{p, n} }

// Config holds the values of a state machine's configuration registers.
type Config struct {
	ClkDiv    uint32
	ExecCtrl  uint32
	ShiftCtrl uint32
	PinCtrl   uint32
}

// ExecCtrl fields
func Wrap(bottom, top int) uint32 { return uint32(top)<<12 | uint32(bottom)<<7 }
func JmpPin(pin rp2040.Pin) uint32 { return uint32(pin) << 24 }

const SideEn = 1 << 30

// ShiftCtrl fields
const (
	AutoPush      = 1 << 16
	AutoPull      = 1 << 17
	InShiftRight  = 1 << 18
	OutShiftRight = 1 << 19
)

func PushThresh(n int) uint32 { return uint32(n&31) << 20 }
func PullThresh(n int) uint32 { return uint32(n&31) << 25 }

// PinCtrl fields
func OutPins(base rp2040.Pin, n int) uint32 { return uint32(n)<<20 | uint32(base) }
func SetPins(base rp2040.Pin, n int) uint32 { return uint32(n)<<26 | uint32(base)<<5 }
func SidePins(base rp2040.Pin, n int) uint32 { return uint32(n)<<29 | uint32(base)<<10 }
func InBase(base rp2040.Pin) uint32 { return uint32(base) << 15 }

// Configure stops the state machine, applies cfg and jumps to start.
func (sm SM) Configure(cfg Config, start int) {
	sm.SetEnabled(false)
	r := &sm.pio.regs.sm[sm.n]
	r.clkdiv.Store(cfg.ClkDiv)
	r.execctrl.Store(cfg.ExecCtrl)
	r.shiftctrl.Store(cfg.ShiftCtrl)
	r.pinctrl.Store(cfg.PinCtrl)
	sm.ClearFIFOs()
	sm.Restart()
	sm.Exec(uint16(opJmp | start))
}

// Exec executes a single instruction immediately.
func (sm SM) Exec(instr uint16) {
	sm.pio.regs.sm[sm.n].instr.Store(uint32(instr))
}

// ClearFIFOs drops the content of both FIFOs by toggling the join bit.
func (sm SM) ClearFIFOs() {
	const fjoinRX = 1 << 31
	r := &sm.pio.regs.sm[sm.n].shiftctrl
	r.Store(r.Load() ^ fjoinRX)
	r.Store(r.Load() ^ fjoinRX)
}

func (sm SM) Restart() {
	rp2040.SetBits(&sm.pio.regs.ctrl, 1<<(4+sm.n)|1<<(8+sm.n))
}

func (sm SM) SetEnabled(en bool) {
	if en {
		rp2040.SetBits(&sm.pio.regs.ctrl, 1<<sm.n)
	} else {
		rp2040.ClearBits(&sm.pio.regs.ctrl, 1<<sm.n)
	}
}

// Put writes v to the TX FIFO, waiting until there is room.
func (sm SM) Put(v uint32) {
	const txFull = 1 << 16
	for sm.pio.regs.fstat.Load()&(txFull<<sm.n) != 0 {
	}
	sm.pio.regs.txf[sm.n].Store(v)
}

// TXF returns the address of the TX FIFO for DMA.
func (sm SM) TXF() uintptr { return sm.pio.regs.txf[sm.n].Addr() }

// RXF returns the address of the RX FIFO for DMA.
func (sm SM) RXF() uintptr { return sm.pio.regs.rxf[sm.n].Addr() }

// DREQ returns the data request signal of a FIFO for pacing DMA.
func (sm SM) DREQ(tx bool) uint32 {
	d := uint32(sm.pio.n*8 + sm.n)
	if !tx {
		d += 4
	}
	return d
}
