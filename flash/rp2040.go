//go:build rp2040

package flash

import (
	"io"
	"unsafe"

	"github.com/clktmr/sidecart/rp2040"
)

// Internal is the board's flash, read through the XIP window and written
// with the boot ROM routines.
type Internal struct{}

func (Internal) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off >= Size {
		return 0, io.EOF
	}
	if max := Size - off; int64(len(p)) > max {
		p = p[:max]
		err = io.EOF
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(rp2040.XIPBase+uintptr(off))), len(p))
	return copy(p, src), err
}

func (Internal) Erase(off, n int64) error {
	if err := checkErase(off, n, Size); err != nil {
		return err
	}
	rp2040.FlashErase(uint32(off), uint32(n))
	return nil
}

func (Internal) Program(off int64, p []byte) error {
	if err := checkProgram(off, len(p), Size); err != nil {
		return err
	}
	// the source must not be in flash while XIP is disabled
	buf := make([]byte, len(p))
	copy(buf, p)
	rp2040.FlashProgram(uint32(off), buf)
	return nil
}
