// Package bus answers the host's reads on the cartridge port from a
// ris.Image and reports every read of bank 1 to an Observer.
//
// There is exactly one bus per process. It's created once during boot with
// Init and referenced through the returned Context afterwards.
package bus

import (
	"errors"
	"sync/atomic"

	"github.com/clktmr/sidecart/ris"
)

// Observer is called for every host read of bank 1 with the offset of the
// read inside the image. It runs in interrupt context and must neither
// block nor allocate.
type Observer func(off uint32)

var (
	ErrAlreadyInitialized = errors.New("bus: already initialized")
	ErrNotInitialized     = errors.New("bus: not initialized")
)

var initialized atomic.Bool

type Option func(*Context)

// Context is the state shared between the bus hardware, the interrupt
// handler and the device controller.
type Context struct {
	img    *ris.Image
	obs    Observer
	masked atomic.Bool
	now    func() int64

	backend
}

// Init starts answering host reads from img. obs may be nil if no command
// window is needed, e.g. for plain ROM emulation.
func Init(img *ris.Image, obs Observer, opts ...Option) (*Context, error) {
	if !initialized.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInitialized
	}
	c := &Context{img: img, obs: obs, now: monotonic}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.start(); err != nil {
		initialized.Store(false)
		return nil, err
	}
	return c, nil
}

// WithClock replaces the microsecond clock returned by Now.
func WithClock(now func() int64) Option {
	return func(c *Context) { c.now = now }
}

// Image returns the image the bus answers from.
func (c *Context) Image() *ris.Image { return c.img }

// Now returns a monotonic time in microseconds.
//
//go:nosplit
func (c *Context) Now() int64 { return c.now() }

// Mask stops reporting reads to the observer. Reads are still answered.
func (c *Context) Mask() {
	c.masked.Store(true)
	c.mask()
}

// Unmask resumes reporting reads to the observer.
func (c *Context) Unmask() {
	c.masked.Store(false)
	c.unmask()
}

// Masked reports whether the observer is masked.
func (c *Context) Masked() bool { return c.masked.Load() }

// Close stops the bus and allows a new call to Init.
func (c *Context) Close() error {
	if !initialized.Load() {
		return ErrNotInitialized
	}
	c.stop()
	initialized.Store(false)
	return nil
}
