//go:build rp2040

// Package dma drives the DMA channels of the RP2040.
package dma

import (
	"embedded/mmio"
	"unsafe"

	"github.com/clktmr/sidecart/rp2040"
)

type chRegs struct {
	readAddr   mmio.U32
	writeAddr  mmio.U32
	transCount mmio.U32
	ctrlTrig   mmio.U32
	_          [11]mmio.U32
	readTrig   mmio.U32 // alias 3
}

type registers struct {
	ch    [12]chRegs
	_     [64]mmio.U32
	intr  mmio.U32
	inte0 mmio.U32
	intf0 mmio.U32
	ints0 mmio.U32
	_     mmio.U32
	inte1 mmio.U32
	intf1 mmio.U32
	ints1 mmio.U32
}

var regs = (*registers)(unsafe.Pointer(rp2040.DMABase))

// Ctrl is the control register of a channel.
type Ctrl uint32

const (
	Enable       Ctrl = 1 << 0
	HighPriority Ctrl = 1 << 1
	IncrRead     Ctrl = 1 << 4
	IncrWrite    Ctrl = 1 << 5
	IRQQuiet     Ctrl = 1 << 21
	ByteSwap     Ctrl = 1 << 22
)

type Size uint32

const (
	Size8  Size = 0
	Size16 Size = 1
	Size32 Size = 2
)

func DataSize(s Size) Ctrl { return Ctrl(s) << 2 }
func ChainTo(c Channel) Ctrl { return Ctrl(c) << 11 }
func TREQ(dreq uint32) Ctrl { return Ctrl(dreq) << 15 }

// Channel is one of the twelve DMA channels.
type Channel int

// Configure sets up the channel. If trigger is set, the transfer starts
// immediately. A channel chained to itself disables chaining.
func (c Channel) Configure(ctrl Ctrl, read, write uintptr, count uint32, trigger bool) {
	r := &regs.ch[c]
	r.readAddr.Store(uint32(read))
	r.writeAddr.Store(uint32(write))
	r.transCount.Store(count)
	if trigger {
		r.ctrlTrig.Store(uint32(ctrl))
	} else {
		// CTRL without trigger is alias 1
		(*mmio.U32)(unsafe.Pointer(r.ctrlTrig.Addr() + 4)).Store(uint32(ctrl))
	}
}

// ReadTrigAddr returns the address of the channel's read address register
// which starts the channel when written.
func (c Channel) ReadTrigAddr() uintptr {
	return regs.ch[c].readTrig.Addr()
}

// ReadAddr returns the current read address of the channel.
//
//go:nosplit
func (c Channel) ReadAddr() uint32 {
	return regs.ch[c].readAddr.Load()
}

// Abort stops the channel.
func (c Channel) Abort() {
	const abortOffset = 0x444
	abort := (*mmio.U32)(unsafe.Pointer(rp2040.DMABase + abortOffset))
	abort.Store(1 << c)
	for abort.Load()&(1<<c) != 0 {
	}
}

// EnableIRQ1 routes the completion of the channel to DMA_IRQ_1.
func (c Channel) EnableIRQ1(en bool) {
	if en {
		rp2040.SetBits(&regs.inte1, 1<<c)
	} else {
		rp2040.ClearBits(&regs.inte1, 1<<c)
	}
}

// AckIRQ1 clears the channel's pending DMA_IRQ_1.
//
//go:nosplit
func (c Channel) AckIRQ1() {
	regs.ints1.Store(1 << c)
}
