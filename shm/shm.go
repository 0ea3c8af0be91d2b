// Package shm defines the shared memory window, the part of the ROM image
// through which the firmware answers commands.
//
// The window lives in bank 1 of the image. Every personality places a random
// token, a random seed and an array of shared variables at offsets given by
// its Layout. All multi-byte values are stored in host byte order.
package shm

import (
	"github.com/clktmr/sidecart/ris"
)

// Indexes of shared variables common to all personalities. Personality
// specific variables start at SharedFunctionsSize.
const (
	HardwareType = iota
	SVersion
	BufferType

	SharedFunctionsSize = 8
)

// MaxSharedVars is the number of long words in the shared variables area.
const MaxSharedVars = 64

// Layout places the common fields inside the window. Offsets are relative to
// the start of bank 1.
type Layout struct {
	Token       int
	Seed        int
	SharedVars  int
	ReentryTrap int // negative if unused
}

// Window is the view of a personality into bank 1.
type Window struct {
	img    *ris.Image
	layout Layout
}

func New(img *ris.Image, layout Layout) *Window {
	return &Window{img, layout}
}

func (w *Window) Image() *ris.Image { return w.img }
func (w *Window) Layout() Layout    { return w.layout }

func (w *Window) Word(off int) uint16 {
	return w.img.Word(ris.Bank1 + off)
}

func (w *Window) SetWord(off int, v uint16) {
	w.img.SetWord(ris.Bank1+off, v)
}

func (w *Window) Long(off int) uint32 {
	return w.img.Long(ris.Bank1 + off)
}

func (w *Window) SetLong(off int, v uint32) {
	w.img.SetLong(ris.Bank1+off, v)
}

// SetBytes copies b, given in host byte order, into the window.
func (w *Window) SetBytes(off int, b []byte) {
	w.img.CopyIn(ris.Bank1+off, b)
}

// SetString stores s NUL terminated and padded to an even size, limited to
// max bytes including the terminator.
func (w *Window) SetString(off int, s string, max int) {
	if len(s) > max-1 {
		s = s[:max-1]
	}
	n := len(s) + 1
	n += n & 1
	for i := 0; i < n; i += 2 {
		var hi, lo byte
		if i < len(s) {
			hi = s[i]
		}
		if i+1 < len(s) {
			lo = s[i+1]
		}
		w.img.SetWord(ris.Bank1+off+i, uint16(hi)<<8|uint16(lo))
	}
}

// Bytes returns n bytes of the window in memory order, see ris.Image.Bytes.
func (w *Window) Bytes(off, n int) []byte {
	return w.img.Bytes(ris.Bank1+off, n)
}

// Clear zeroes n bytes at off.
func (w *Window) Clear(off, n int) {
	w.img.Clear(ris.Bank1+off, n)
}

// SharedVar returns the shared variable i or zero if i is out of range.
func (w *Window) SharedVar(i int) uint32 {
	if uint(i) >= MaxSharedVars {
		return 0
	}
	return w.Long(w.layout.SharedVars + 4*i)
}

// SetSharedVar stores v into the shared variable i, high word first. Writes
// out of range are dropped.
func (w *Window) SetSharedVar(i int, v uint32) {
	if uint(i) >= MaxSharedVars {
		return
	}
	w.SetLong(w.layout.SharedVars+4*i, v)
}

// Token returns the currently published random token.
func (w *Window) Token() uint32 {
	return w.Long(w.layout.Token)
}

// PublishToken writes the random token. It must be the last write of a
// command, the host treats it as completion signal.
func (w *Window) PublishToken(token uint32) {
	w.img.PublishLong(ris.Bank1+w.layout.Token, token)
}

// SetSeed updates the entropy word the host reads for new tokens.
func (w *Window) SetSeed(seed uint32) {
	w.SetLong(w.layout.Seed, seed)
}

// SetReentryTrap sets or clears the word the host side checks to bounce
// nested calls to the original handler.
func (w *Window) SetReentryTrap(locked bool) {
	if w.layout.ReentryTrap < 0 {
		return
	}
	var v uint16
	if locked {
		v = 0xffff
	}
	w.SetWord(w.layout.ReentryTrap, v)
}

// ReentryTrap reports whether the reentry trap is set.
func (w *Window) ReentryTrap() bool {
	return w.layout.ReentryTrap >= 0 && w.Word(w.layout.ReentryTrap) != 0
}

// SetByte changes the byte the host reads at off.
func (w *Window) SetByte(off int, v byte) {
	w.img.SetHostByte(ris.Bank1+off, v)
}
