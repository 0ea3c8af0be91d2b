//go:build rp2040

package ris

import "unsafe"

// RAMBase is the address of the image in the RP2040's SRAM. The linker
// script keeps the upper 128 KiB of the striped SRAM free for it.
const RAMBase uintptr = 0x2002_0000

var image = Image{words: (*[Size / 2]uint16)(unsafe.Pointer(RAMBase))}

// New returns the image store. There is only one on the target, located at
// RAMBase.
func New() *Image {
	return &image
}

// Addr returns the bus address of byte offset off.
func (img *Image) Addr(off int) uintptr {
	return RAMBase + uintptr(off&(Size-1))
}
