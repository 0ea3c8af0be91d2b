//go:build rp2040

package rp2040

import (
	"embedded/mmio"
	"unsafe"
)

type uartRegs struct {
	dr   mmio.U32
	rsr  mmio.U32
	_    [4]mmio.U32
	fr   mmio.U32
	_    mmio.U32
	ilpr mmio.U32
	ibrd mmio.U32
	fbrd mmio.U32
	lcrh mmio.U32
	cr   mmio.U32
}

const (
	uartTXFF = 1 << 5
	uartRXFE = 1 << 4
	uartBusy = 1 << 3

	uartFIFOEn = 1 << 4
	uartWLen8  = 3 << 5

	uartEnable = 1 << 0
	uartTXE    = 1 << 8
	uartRXE    = 1 << 9
)

// UART is a PL011 serial port.
type UART struct {
	regs *uartRegs
}

// UART0 is the debug console on GPIO 0 (TX) and 1 (RX).
var UART0 = UART{(*uartRegs)(unsafe.Pointer(UART0Base))}

// Setup enables the port with 8N1 framing. clk_peri must be running at
// ClockSpeed.
func (u UART) Setup(baud int) {
	Unreset(ResetUART0)
	div := 8 * int(ClockSpeed) / baud
	u.regs.ibrd.Store(uint32(div >> 7))
	u.regs.fbrd.Store(uint32((div&0x7f + 1) / 2))
	u.regs.lcrh.Store(uartWLen8 | uartFIFOEn)
	u.regs.cr.Store(uartEnable | uartTXE | uartRXE)
	Pin(0).Setup(FuncUART, PullNone)
	Pin(1).Setup(FuncUART, PullUp)
}

// Write blocks until all of p is in the transmit FIFO.
//
//go:nosplit
func (u UART) Write(p []byte) (int, error) {
	for _, b := range p {
		for u.regs.fr.Load()&uartTXFF != 0 {
		}
		u.regs.dr.Store(uint32(b))
	}
	return len(p), nil
}

// Read returns the bytes waiting in the receive FIFO, at least one.
func (u UART) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if u.regs.fr.Load()&uartRXFE != 0 {
			if n > 0 {
				break
			}
			continue
		}
		p[n] = byte(u.regs.dr.Load())
		n++
	}
	return n, nil
}

// Flush waits until the last byte left the shift register.
func (u UART) Flush() {
	for u.regs.fr.Load()&uartBusy != 0 {
	}
}
