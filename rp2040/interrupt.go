//go:build rp2040

package rp2040

import (
	"embedded/rtos"

	_ "unsafe" // for linkname
)

const (
	IrqPIO0 rtos.IRQ = 7
	IrqPIO1 rtos.IRQ = 9
	IrqDMA0 rtos.IRQ = 11
	IrqDMA1 rtos.IRQ = 12
)

var dma1Handler func()

// SetDMA1Handler installs the handler of DMA_IRQ_1 and enables the
// interrupt with the highest priority. A nil handler disables it.
func SetDMA1Handler(handler func()) {
	IrqDMA1.Disable(0)
	dma1Handler = handler
	if handler != nil {
		IrqDMA1.Enable(rtos.IntPrioHighest, 0)
	}
}

//go:linkname dma1IRQHandler IRQ12_Handler
//go:interrupthandler
func dma1IRQHandler() {
	if h := dma1Handler; h != nil {
		h()
	}
}
