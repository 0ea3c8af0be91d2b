package rtc

import (
	"sync/atomic"
	"time"

	"github.com/clktmr/sidecart/ris"
)

// Parameters of the DS1216 wire protocol. The host unlocks the clock by
// reading a magic sequence of 64 bits, each encoded by reading either the
// zero or the one address. Then it reads the 64 bits of the time from the
// read address.
const (
	DallasMagic    = 0x5ca33ac55ca33ac5
	DallasRead     = 0x9 // offset of the byte carrying the time bits
	DallasZero     = 0x1
	DallasOne      = 0x3
	DallasLeadIn   = 2 // reads before the magic sequence
	DallasLead     = 3 // default lead of the time bits
	DallasResetGap = 10000
)

const (
	magicLen = DallasLeadIn + 64
	clockLen = 64
)

// Dallas emulates a DS1216 clock that sits between the host and a ROM
// socket. It's driven from the bus interrupt with Observe.
type Dallas struct {
	// Lead is the number of reads the time bits are placed ahead of their
	// nominal position to account for the latency of the interrupt.
	Lead int

	img   *ris.Image
	magic [magicLen]uint8

	// The loop encodes the clock into the inactive buffer and switches
	// active. The interrupt latches the active buffer on a match.
	seq     [2][clockLen]uint8
	active  atomic.Uint32
	latched uint32

	matched int
	last    int64
}

func NewDallas(img *ris.Image) *Dallas {
	d := &Dallas{Lead: DallasLead, img: img}
	for i := DallasLeadIn; i < magicLen; i++ {
		if DallasMagic>>(i-DallasLeadIn)&1 != 0 {
			d.magic[i] = DallasOne
		} else {
			d.magic[i] = DallasZero
		}
	}
	return d
}

// Update encodes t for the next time the host reads the clock. Hundredths
// of seconds are always zero.
func (d *Dallas) Update(t time.Time) {
	fields := [...]uint8{
		ToBCD(uint8(t.Second())),
		ToBCD(uint8(t.Minute())),
		ToBCD(uint8(t.Hour())),
		ToBCD(uint8(t.Weekday())),
		ToBCD(uint8(t.Day())),
		ToBCD(uint8(t.Month())),
		ToBCD(uint8(t.Year() % 100)),
	}
	next := 1 - d.active.Load()
	seq := &d.seq[next]
	clear(seq[:])
	for k, v := range fields {
		base := 8*(k+1) - d.Lead
		for b := range 8 {
			if i := base + b; i >= 0 && i < clockLen && v>>b&1 != 0 {
				seq[i] = 0xff
			}
		}
	}
	d.active.Store(next)
}

// Observe processes a read of bank 1 at offset off inside the image. now is
// the time of the read in microseconds.
//
//go:nosplit
func (d *Dallas) Observe(off uint32, now int64) {
	if now-d.last > DallasResetGap {
		d.matched = 0
	}
	d.last = now

	if d.matched >= magicLen {
		i := d.matched - magicLen
		d.img.SetHostByte(ris.Bank1+DallasRead, d.seq[d.latched][i])
		d.matched++
		if d.matched == magicLen+clockLen {
			d.matched = 0
		}
		return
	}

	lsb := uint8(off)
	switch {
	case d.magic[d.matched] == lsb:
		d.matched++
		if d.matched == magicLen {
			d.latched = d.active.Load()
			d.img.SetHostByte(ris.Bank1+DallasRead, 0)
		}
	case d.magic[0] == lsb:
		d.matched = 1
	default:
		d.matched = 0
	}
}

// Matched returns the number of reads of the current sequence.
func (d *Dallas) Matched() int { return d.matched }
