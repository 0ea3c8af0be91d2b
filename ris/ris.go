// Package ris implements the ROM image store, the 128 KiB RAM image that is
// presented to the host computer on its cartridge port.
//
// The image is split in two banks of 64 KiB. Bank 0 appears at the host's
// ROM4 address and usually carries the firmware the host executes. Bank 1
// appears at ROM3 and holds the shared memory window used to answer commands.
//
// The host reads 16-bit big-endian words, while the image is stored in the
// microcontroller's native little-endian order. A word stored with SetWord is
// seen by the host with the same value. Byte sequences must be swapped
// pairwise with Swap before they are copied into the image.
package ris

import (
	"errors"
	"io"
	"sync/atomic"
	"unsafe"
)

const (
	BankSize = 0x10000
	Size     = 2 * BankSize

	Bank0 = 0        // ROM4, firmware code
	Bank1 = BankSize // ROM3, command and shared memory window

	HostROM4 = 0xfa0000 // host address of bank 0
	HostROM3 = 0xfb0000 // host address of bank 1
)

var (
	ErrOffset = errors.New("ris: offset out of range")
	ErrAlign  = errors.New("ris: unaligned access")
)

// Image is the ROM image store. Writes are done in 16-bit units, so the
// host never sees a torn word.
type Image struct {
	words *[Size / 2]uint16
}

// Word returns the word the host reads at byte offset off.
func (img *Image) Word(off int) uint16 {
	return img.words[(off&(Size-1))>>1]
}

// SetWord stores a word to be read by the host at byte offset off.
//
//go:nosplit
func (img *Image) SetWord(off int, v uint16) {
	img.words[(off&(Size-1))>>1] = v
}

// Long returns a long word in host byte order, high word first.
func (img *Image) Long(off int) uint32 {
	return uint32(img.Word(off))<<16 | uint32(img.Word(off+2))
}

// SetLong stores a long word in host byte order. The low word is written
// first, so a host polling the high word sees the complete value once it
// changes.
func (img *Image) SetLong(off int, v uint32) {
	img.SetWord(off+2, uint16(v))
	img.SetWord(off, uint16(v>>16))
}

// PublishLong is like SetLong but ends with a full memory barrier, so all
// preceding stores are visible before the high word changes.
func (img *Image) PublishLong(off int, v uint32) {
	var barrier atomic.Uint32
	img.SetWord(off+2, uint16(v))
	barrier.Store(v)
	img.SetWord(off, uint16(v>>16))
}

// HostByte returns the byte the host reads at byte offset off.
func (img *Image) HostByte(off int) byte {
	w := img.Word(off)
	if off&1 == 0 {
		return byte(w >> 8)
	}
	return byte(w)
}

// SetHostByte changes a single byte as seen by the host.
//
//go:nosplit
func (img *Image) SetHostByte(off int, v byte) {
	p := &img.words[(off&(Size-1))>>1]
	if off&1 == 0 {
		*p = *p&0x00ff | uint16(v)<<8
	} else {
		*p = *p&0xff00 | uint16(v)
	}
}

// ReadAt reads bytes in host order starting at byte offset off.
func (img *Image) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off >= Size {
		return 0, ErrOffset
	}
	if max := Size - off; int64(len(p)) > max {
		p = p[:max]
		err = io.EOF
	}
	for i := range p {
		p[i] = img.HostByte(int(off) + i)
	}
	return len(p), err
}

// WriteAt writes bytes in host order starting at byte offset off. Both off
// and len(p) must be even.
func (img *Image) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off+int64(len(p)) > Size {
		return 0, ErrOffset
	}
	if off&1 != 0 || len(p)&1 != 0 {
		return 0, ErrAlign
	}
	for i := 0; i < len(p); i += 2 {
		img.SetWord(int(off)+i, uint16(p[i])<<8|uint16(p[i+1]))
	}
	return len(p), nil
}

// Load fills the image from r, which must provide the image in host byte
// order like a ROM dump does.
func (img *Image) Load(r io.Reader) error {
	var buf [512]byte
	for off := int64(0); off < Size; {
		n, err := io.ReadFull(r, buf[:])
		if n > 0 {
			if _, werr := img.WriteAt(buf[:n&^1], off); werr != nil {
				return werr
			}
			off += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		} else if err != nil {
			return err
		}
	}
	return nil
}

// Clear zeroes a byte range. Both off and n must be even.
func (img *Image) Clear(off, n int) {
	for i := 0; i < n; i += 2 {
		img.SetWord(off+i, 0)
	}
}

// Bytes returns n bytes of the image at off in memory order. Data read into
// it from a file is in host order and must be swapped with Swap before the
// host reads it.
func (img *Image) Bytes(off, n int) []byte {
	off &= Size - 1
	n = min(n, Size-off)
	return unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(img.words), off)), n)
}
