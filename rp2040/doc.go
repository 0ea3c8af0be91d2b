// The rp2040 package provides a hardware abstraction layer for the RP2040
// microcontroller on the cartridge board.
//
// It implements low-level access to the hardware. All hardware capabilities
// are directly exposed and in general unsafe. Use the higher level packages
// bus, flash and board instead.
package rp2040
