//go:build !rp2040

// Package host simulates the computer on the other side of the cartridge
// port. It sends commands the way the host's driver code does, by reading
// from the command window, and waits for the random token like the host
// does.
package host

import (
	"errors"
	"math/rand/v2"

	"github.com/clktmr/sidecart/bus"
	"github.com/clktmr/sidecart/protocol"
	"github.com/clktmr/sidecart/ris"
)

var ErrTimeout = errors.New("host: command timed out")

// DefaultRetries is the number of token polls before a command times out.
const DefaultRetries = 100

type Computer struct {
	Bus *bus.Context

	// Token is the offset of the random token inside bank 1.
	Token int

	// Serve runs the device's loop once while the host waits for the token.
	Serve func() bool

	Retries int

	rand  *rand.Rand
	nonce uint32
}

func New(b *bus.Context, token int, serve func() bool) *Computer {
	return &Computer{
		Bus:   b,
		Token: token,
		Serve: serve,
		rand:  rand.New(rand.NewPCG(1, 2)),
	}
}

// Send transmits a frame by reading the command window at the offsets given
// by the frame's words. The payload is sent as is.
func (c *Computer) Send(cmd uint16, payload ...uint16) {
	c.read(protocol.Header)
	c.read(cmd)
	c.read(uint16(2 * len(payload)))
	for _, w := range payload {
		c.read(w)
	}
}

func (c *Computer) read(w uint16) uint16 {
	return c.Bus.Read(ris.HostROM3 + uint32(w))
}

// Call sends a command with a fresh nonce and polls the token until it
// matches. It returns ErrTimeout if the device never completes the command.
func (c *Computer) Call(cmd uint16, words ...uint16) error {
	c.nonce = c.rand.Uint32()
	c.Send(cmd, append([]uint16{uint16(c.nonce >> 16), uint16(c.nonce)}, words...)...)
	return c.Wait()
}

// Wait polls the token until it matches the last nonce.
func (c *Computer) Wait() error {
	retries := c.Retries
	if retries == 0 {
		retries = DefaultRetries
	}
	for range retries {
		if c.Serve != nil {
			c.Serve()
		}
		if c.Read32(c.Token) == c.nonce {
			return nil
		}
	}
	return ErrTimeout
}

// Nonce returns the nonce of the last command.
func (c *Computer) Nonce() uint32 { return c.nonce }

// Read16 reads a word at offset off of bank 1.
func (c *Computer) Read16(off int) uint16 {
	return c.Bus.Read(ris.HostROM3 + uint32(off))
}

// Read32 reads a long word at offset off of bank 1.
func (c *Computer) Read32(off int) uint32 {
	return uint32(c.Read16(off))<<16 | uint32(c.Read16(off+2))
}

// ReadBytes reads n bytes at offset off of bank 1. off must be even.
func (c *Computer) ReadBytes(off, n int) []byte {
	b := make([]byte, n+n&1)
	for i := 0; i < n; i += 2 {
		w := c.Read16(off + i)
		b[i], b[i+1] = byte(w>>8), byte(w)
	}
	return b[:n]
}

// ReadString reads a NUL terminated string of at most max bytes at offset
// off of bank 1.
func (c *Computer) ReadString(off, max int) string {
	b := c.ReadBytes(off, max)
	for i, ch := range b {
		if ch == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ReadROM reads a word at offset off of bank 0.
func (c *Computer) ReadROM(off int) uint16 {
	return c.Bus.Read(ris.HostROM4 + uint32(off))
}

// Register encodes v the way the host pushes a register, low word first.
func Register(v uint32) []uint16 {
	return []uint16{uint16(v), uint16(v >> 16)}
}

// Long encodes v high word first.
func Long(v uint32) []uint16 {
	return []uint16{uint16(v >> 16), uint16(v)}
}

// Bytes encodes b as words in host byte order, padded to an even length.
func Bytes(b []byte) []uint16 {
	w := make([]uint16, (len(b)+1)/2)
	for i, ch := range b {
		if i&1 == 0 {
			w[i/2] |= uint16(ch) << 8
		} else {
			w[i/2] |= uint16(ch)
		}
	}
	return w
}

// String encodes s NUL terminated.
func String(s string) []uint16 {
	return Bytes(append([]byte(s), 0))
}

// Checksum is the additive checksum the host sends along with data.
func Checksum(b []byte) uint16 {
	return ris.Sum16(b)
}

// Join concatenates word sequences.
func Join(ws ...[]uint16) []uint16 {
	var out []uint16
	for _, w := range ws {
		out = append(out, w...)
	}
	return out
}

// Clock is a fake bus clock advancing one microsecond per call of Now.
type Clock struct {
	now int64
}

func (c *Clock) Now() int64 {
	c.now++
	return c.now
}

// Advance moves the clock forward by us microseconds.
func (c *Clock) Advance(us int64) { c.now += us }
