//go:build rp2040

package rp2040

import (
	"embedded/mmio"
	"unsafe"
)

// ClockSpeed is the system clock the firmware runs at. The bus interface
// needs the headroom above the default 125 MHz to answer the host in time.
const ClockSpeed = 150e6

type pllRegs struct {
	cs    mmio.U32
	pwr   mmio.U32
	fbdiv mmio.U32
	prim  mmio.U32
}

type clockRegs struct {
	_       [15]mmio.U32
	sysCtrl  mmio.U32
	sysDiv   mmio.U32
	sysSel   mmio.U32
	periCtrl mmio.U32
}

var (
	pllSys = (*pllRegs)(unsafe.Pointer(PLLSysBase))
	clocks = (*clockRegs)(unsafe.Pointer(ClocksBase))
)

const (
	pllLock      = 1 << 31
	pllPD        = 1 << 0
	pllPostDivPD = 1 << 3
	pllVCOPD     = 1 << 5

	clkSysSrcAux    = 1 << 0
	clkSysAuxPLLSys = 0 << 5
	clkPeriEnable   = 1 << 11
)

// SetupClock runs the system clock from PLL_SYS at ClockSpeed: 12 MHz XOSC
// times 125 gives a VCO of 1500 MHz, divided by 5 and 2.
func SetupClock() {
	// run from clk_ref while the PLL is reconfigured
	ClearBits(&clocks.sysCtrl, clkSysSrcAux)
	for clocks.sysSel.Load()&1 == 0 {
	}

	Reset(ResetPLLSys)
	Unreset(ResetPLLSys)
	pllSys.cs.Store(1) // refdiv
	pllSys.fbdiv.Store(125)
	ClearBits(&pllSys.pwr, pllPD|pllVCOPD)
	for pllSys.cs.Load()&pllLock == 0 {
	}
	pllSys.prim.Store(5<<16 | 2<<12)
	ClearBits(&pllSys.pwr, pllPostDivPD)

	clocks.sysCtrl.Store(clkSysAuxPLLSys)
	SetBits(&clocks.sysCtrl, clkSysSrcAux)
	for clocks.sysSel.Load()&2 == 0 {
	}

	// clk_peri follows clk_sys
	clocks.periCtrl.Store(clkPeriEnable)
}
