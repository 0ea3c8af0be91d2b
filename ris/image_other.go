//go:build !rp2040

package ris

import "unsafe"

// New allocates an image store in regular memory.
func New() *Image {
	return &Image{words: new([Size / 2]uint16)}
}

// Addr returns the address of byte offset off.
func (img *Image) Addr(off int) uintptr {
	return uintptr(unsafe.Pointer(img.words)) + uintptr(off&(Size-1))
}
