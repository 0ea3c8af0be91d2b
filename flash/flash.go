// Package flash provides access to the board's NOR flash.
//
// NOR flash can only be erased in whole sectors, which sets all bits to one.
// Programming clears bits and works on whole pages. Every backend enforces
// these alignment rules, so code tested on the host behaves the same on the
// target.
package flash

import (
	"errors"
	"fmt"
	"io"
)

const (
	SectorSize = 4096
	PageSize   = 256

	// Size is the capacity of the flash on the board.
	Size = 2 << 20

	// ROMOffset is the start of the 128 KiB region that survives a reset
	// and is copied into the ROM image store on boot.
	ROMOffset = 0xe0000
	ROMSize   = 128 << 10

	// ConfigOffset is the sector holding the configuration.
	ConfigOffset = ROMOffset - SectorSize
	ConfigSize   = SectorSize
)

var (
	ErrAlignment = errors.New("flash: unaligned access")
	ErrRange     = errors.New("flash: out of range")
)

// Flash is a NOR flash device.
type Flash interface {
	io.ReaderAt

	// Erase sets n bytes at off to 0xff. Both must be multiples of
	// SectorSize.
	Erase(off, n int64) error

	// Program clears the bits of the flash at off which are zero in p. off
	// and len(p) must be multiples of PageSize.
	Program(off int64, p []byte) error
}

func checkErase(off, n, size int64) error {
	if off%SectorSize != 0 || n%SectorSize != 0 {
		return fmt.Errorf("erase %#x+%#x: %w", off, n, ErrAlignment)
	}
	if off < 0 || n < 0 || off+n > size {
		return fmt.Errorf("erase %#x+%#x: %w", off, n, ErrRange)
	}
	return nil
}

func checkProgram(off int64, n int, size int64) error {
	if off%PageSize != 0 || n%PageSize != 0 {
		return fmt.Errorf("program %#x+%#x: %w", off, n, ErrAlignment)
	}
	if off < 0 || off+int64(n) > size {
		return fmt.Errorf("program %#x+%#x: %w", off, n, ErrRange)
	}
	return nil
}

// Write replaces the content of the sectors at off with p. The region is
// erased first and p is padded with 0xff to whole pages.
func Write(f Flash, off int64, p []byte) error {
	n := (int64(len(p)) + SectorSize - 1) &^ (SectorSize - 1)
	if err := f.Erase(off, n); err != nil {
		return err
	}
	if rem := len(p) % PageSize; rem != 0 {
		padded := make([]byte, len(p)+PageSize-rem)
		copy(padded, p)
		for i := len(p); i < len(padded); i++ {
			padded[i] = 0xff
		}
		p = padded
	}
	return f.Program(off, p)
}

// ROM returns a reader for the ROM region.
func ROM(f Flash) *io.SectionReader {
	return io.NewSectionReader(f, ROMOffset, ROMSize)
}
