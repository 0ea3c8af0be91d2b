//go:build rp2040

package bus

import (
	"github.com/clktmr/sidecart/ris"
	"github.com/clktmr/sidecart/rp2040"
	"github.com/clktmr/sidecart/rp2040/dma"
	"github.com/clktmr/sidecart/rp2040/pio"
)

// Pins of the cartridge port. The 16 bus pins carry A1-A15 while the address
// buffer is enabled and D0-D15 while the data buffer is enabled.
const (
	busPin   rp2040.Pin = 6
	busPins             = 16
	rom4Pin  rp2040.Pin = 22
	rom3Pin  rp2040.Pin = 26
	readPin  rp2040.Pin = 27 // address buffer enable, active low
	writePin rp2040.Pin = 28 // data buffer enable, active low
)

// readProgram answers a single host read. It builds the SRAM address of the
// word from the image base, the bank and the address lines, hands it to the
// DMA and drives the data returned by the DMA until the host releases the
// select line.
//
//	    .side_set 2 opt
//	    pull block          side 0b11   ; image base >> 17
//	    mov x, osr
//	.wrap_target
//	    wait 1 irq 4        side 0b10   ; a select line went low
//	    in x, 15
//	    jmp pin rom4                    ; ROM3 high
//	    set y, 1
//	    in y, 1
//	    jmp addr
//	rom4:
//	    in null, 1
//	addr:
//	    in pins, 15
//	    in null, 1                      ; autopush
//	    mov osr, ~null      side 0b11
//	    out pindirs, 16
//	    pull block                      ; word from the lookup DMA
//	    out pins, 16        side 0b01
//	    wait 1 gpio 22
//	    wait 1 gpio 26
//	    mov osr, null       side 0b11
//	    out pindirs, 16
//	.wrap
var readProgram = [...]uint16{
	0x9ca0, 0xa027,
	0x38c4, 0x402f, 0x00c8, 0xe041, 0x4041, 0x0009, 0x4061, 0x400f, 0x4061,
	0xbceb, 0x6090, 0x80a0, 0x7410, 0x2096, 0x209a, 0xbce3, 0x6090,
}

const (
	readWrapBottom = 2
	readWrapTop    = len(readProgram) - 1
)

// monitorProgram raises irq 4 on the falling edge of one select line.
//
//	.wrap_target
//	    wait 0 pin 0
//	    irq set 4
//	    wait 1 pin 0
//	.wrap
var monitorProgram = [...]uint16{0x2020, 0xc004, 0x20a0}

const monitorOffset = len(readProgram)

const (
	addrChannel   dma.Channel = 0
	lookupChannel dma.Channel = 1
)

var (
	readSM     = pio.PIO0.SM(0)
	monitorSMs = [2]pio.SM{pio.PIO0.SM(1), pio.PIO0.SM(2)}
)

// backend answers the host from SRAM without CPU involvement. Only the
// observer runs on the CPU, in the DMA_IRQ_1 handler.
type backend struct{}

// active is the context of the interrupt handler.
var active *Context

//go:nosplit
func monotonic() int64 {
	return rp2040.Micros()
}

func (c *Context) start() error {
	rp2040.PrioritizeDMA()
	rp2040.Unreset(rp2040.ResetPIO0 | rp2040.ResetDMA | rp2040.ResetIOBank0 | rp2040.ResetPadsBank0)

	p := pio.PIO0
	p.Load(readProgram[:], 0)
	p.Load(monitorProgram[:], monitorOffset)

	for i, pin := range [2]rp2040.Pin{rom4Pin, rom3Pin} {
		monitorSMs[i].Configure(pio.Config{
			ClkDiv:   1 << 16,
			ExecCtrl: pio.Wrap(monitorOffset, monitorOffset+len(monitorProgram)-1),
			PinCtrl:  pio.InBase(pin),
		}, monitorOffset)
	}
	readSM.Configure(pio.Config{
		ClkDiv:    1 << 16,
		ExecCtrl:  pio.SideEn | pio.JmpPin(rom3Pin) | pio.Wrap(readWrapBottom, readWrapTop),
		ShiftCtrl: pio.AutoPush | pio.PushThresh(32) | pio.OutShiftRight,
		PinCtrl: pio.OutPins(busPin, busPins) | pio.SetPins(readPin, 2) |
			pio.SidePins(readPin, 3) | pio.InBase(busPin),
	}, 0)
	readSM.Exec(0xe003) // set pins, 0b11
	readSM.Exec(0xe083) // set pindirs, 0b11

	lookupChannel.Configure(dma.Enable|dma.HighPriority|dma.DataSize(dma.Size16)|
		dma.TREQ(readSM.DREQ(true))|dma.ChainTo(addrChannel),
		0, readSM.TXF(), 1, false)
	addrChannel.Configure(dma.Enable|dma.HighPriority|dma.DataSize(dma.Size32)|
		dma.TREQ(readSM.DREQ(false))|dma.ChainTo(addrChannel),
		readSM.RXF(), lookupChannel.ReadTrigAddr(), 1, true)

	active = c
	if c.obs != nil {
		lookupChannel.EnableIRQ1(true)
		rp2040.SetDMA1Handler(dmaHandler)
	}

	readSM.SetEnabled(true)
	monitorSMs[0].SetEnabled(true)
	monitorSMs[1].SetEnabled(true)
	readSM.Put(uint32(ris.RAMBase >> 17))

	// Connect the pins last, so the host never sees glitches on the bus.
	fn := p.Function()
	readPin.Setup(fn, rp2040.PullUp)
	writePin.Setup(fn, rp2040.PullUp)
	rom4Pin.Setup(fn, rp2040.PullUp)
	rom3Pin.Setup(fn, rp2040.PullUp)
	for i := range busPins {
		(busPin + rp2040.Pin(i)).Setup(fn, rp2040.PullDown)
	}
	return nil
}

func (c *Context) stop() {
	rp2040.SetDMA1Handler(nil)
	lookupChannel.EnableIRQ1(false)
	readSM.SetEnabled(false)
	monitorSMs[0].SetEnabled(false)
	monitorSMs[1].SetEnabled(false)
	addrChannel.Abort()
	lookupChannel.Abort()
	active = nil
}

func (c *Context) mask() {
	rp2040.IrqDMA1.Disable(0)
}

func (c *Context) unmask() {
	if c.obs != nil {
		rp2040.SetDMA1Handler(dmaHandler)
	}
}

// dmaHandler runs after every word the lookup channel fetched for the host.
//
//go:nosplit
func dmaHandler() {
	lookupChannel.AckIRQ1()
	c := active
	off := lookupChannel.ReadAddr() - uint32(ris.RAMBase)
	if off >= ris.Bank1 && off < ris.Size && !c.masked.Load() {
		c.obs(off)
	}
}
