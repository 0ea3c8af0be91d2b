// Package device implements the controller loop shared by all emulated
// devices.
//
// The bus interrupt feeds every read from the command window into the
// controller's protocol parser. Complete frames are copied into a Mailbox and
// served by the cooperative loop in Run, which is free to block on storage or
// network. After a command is done and all its results are written to the
// shared memory window, the loop publishes the command's random token. The
// host polls the token and treats its change as the only completion signal.
package device

import (
	"context"
	"log"
	"math/rand/v2"
	"time"

	"github.com/clktmr/sidecart/debug"
	"github.com/clktmr/sidecart/protocol"
	"github.com/clktmr/sidecart/shm"
)

// Service runs commands of a device personality in the loop context.
type Service interface {
	Serve(c *Controller, m *protocol.Message)
}

// Button is the select button on the board.
type Button interface {
	Pressed() bool
}

// Masker masks the bus interrupt. It is the only critical section between
// the interrupt and the loop.
type Masker interface {
	Mask()
	Unmask()
}

// PollInterval is the time the loop waits for a command before refreshing
// the random seed.
const PollInterval = time.Millisecond

type Controller struct {
	Window  *shm.Window
	Mailbox Mailbox

	// Button is polled every loop iteration. OnButton is called while the
	// button is pressed.
	Button   Button
	OnButton func()

	// Tick is called every loop iteration before commands are served.
	Tick func()

	Bus Masker
	Log *log.Logger

	parser protocol.Parser
	rand   *rand.Rand
	msg    protocol.Message
}

func New(w *shm.Window) *Controller {
	seed := uint64(time.Now().UnixNano())
	return &Controller{
		Window: w,
		rand:   rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

func (c *Controller) logger() *log.Logger {
	if c.Log == nil {
		return log.Default()
	}
	return c.Log
}

// Logf logs an operational message.
func (c *Controller) Logf(format string, v ...any) {
	c.logger().Printf(format, v...)
}

// Observe feeds a bus read from the command window into the parser. off is
// the offset inside bank 1 and now a monotonic time in microseconds. It's
// called from interrupt context.
//
//go:nosplit
func (c *Controller) Observe(off uint16, now int64) {
	if m := c.parser.Feed(off, now); m != nil {
		c.Mailbox.Post(m)
	}
}

// SetTimeout changes the idle timeout of the parser.
func (c *Controller) SetTimeout(d time.Duration) {
	c.parser.Timeout = d
}

// Publish completes a command by writing its token. All results must have
// been written before.
func (c *Controller) Publish(token uint32) {
	c.Window.PublishToken(token)
}

// Reject completes a command with a token that doesn't match the host's
// expectation, which the host interprets as failure.
func (c *Controller) Reject(token uint32) {
	c.Window.PublishToken(^token)
}

// RefreshSeed writes fresh entropy for the host.
func (c *Controller) RefreshSeed() {
	c.Window.SetSeed(c.rand.Uint32())
}

// Reentry sets or clears the reentry trap and completes the command.
func (c *Controller) Reentry(locked bool, token uint32) {
	c.Window.SetReentryTrap(locked)
	c.Publish(token)
}

// SetSharedVar handles the common command that changes a shared variable.
func (c *Controller) SetSharedVar(m *protocol.Message) {
	idx, val := m.Long(0), m.Long(2)
	if idx >= shm.MaxSharedVars {
		c.Logf("device: shared var %d out of range", idx)
		c.Reject(m.Token())
		return
	}
	debug.Printf("set shared var %d to %#x", idx, val)
	c.Window.SetSharedVar(int(idx), val)
	c.Publish(m.Token())
}

// Critical runs f with the bus interrupt masked. Use it around long storage
// operations so the interrupt can't change the window while results are
// prepared.
func (c *Controller) Critical(f func() error) error {
	if c.Bus != nil {
		c.Bus.Mask()
		defer c.Bus.Unmask()
	}
	return f()
}

// Step runs one iteration of the loop. It reports whether a command was
// served.
func (c *Controller) Step(s Service) bool {
	c.RefreshSeed()
	if c.Tick != nil {
		c.Tick()
	}
	served := false
	if c.Mailbox.Take(&c.msg) {
		debug.Printf("command %#04x size %d", c.msg.Command, c.msg.Size)
		s.Serve(c, &c.msg)
		served = true
	}
	if c.Button != nil && c.Button.Pressed() && c.OnButton != nil {
		c.OnButton()
	}
	return served
}

// Run serves commands until ctx is done.
func (c *Controller) Run(ctx context.Context, s Service) error {
	for {
		if !c.Step(s) {
			c.Mailbox.wake.wait(PollInterval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
