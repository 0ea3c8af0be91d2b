//go:build !rp2040

package bus

import (
	"time"

	"github.com/clktmr/sidecart/ris"
)

var epoch = time.Now()

func monotonic() int64 {
	return time.Since(epoch).Microseconds()
}

// backend simulates the bus on the host. The caller of Read plays the part
// of the host computer.
type backend struct{}

func (c *Context) start() error { return nil }
func (c *Context) stop()        {}
func (c *Context) mask()        {}
func (c *Context) unmask()      {}

// Read returns the word the host reads at the bus address addr and invokes
// the observer synchronously like the interrupt handler would. addr must be
// inside the cartridge window, otherwise the bus floats and 0xffff is
// returned.
func (c *Context) Read(addr uint32) uint16 {
	off := addr - ris.HostROM4
	if off >= ris.Size {
		return 0xffff
	}
	v := c.img.Word(int(off))
	if off >= ris.Bank1 && c.obs != nil && !c.masked.Load() {
		c.obs(off)
	}
	return v
}
