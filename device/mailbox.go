package device

import (
	"sync/atomic"

	"github.com/clktmr/sidecart/protocol"
)

// Mailbox hands a single message from the bus interrupt to the controller
// loop. The interrupt only copies the frame and never waits. If the loop
// hasn't taken the previous message yet, the new one is dropped and the host
// will retry after its timeout.
type Mailbox struct {
	msg     protocol.Message
	pending atomic.Bool
	dropped atomic.Uint32
	wake    waker
}

// Post copies m into the mailbox. It's called from interrupt context.
//
//go:nosplit
func (mb *Mailbox) Post(m *protocol.Message) bool {
	if mb.pending.Load() {
		mb.dropped.Add(1)
		return false
	}
	mb.msg.Command = m.Command
	mb.msg.Size = m.Size
	copy(mb.msg.Payload[:m.Size/2], m.Payload[:m.Size/2])
	mb.pending.Store(true)
	mb.wake.signal()
	return true
}

// Take moves a pending message into m and reports if there was one.
func (mb *Mailbox) Take(m *protocol.Message) bool {
	if !mb.pending.Load() {
		return false
	}
	m.Command = mb.msg.Command
	m.Size = mb.msg.Size
	copy(m.Payload[:m.Size/2], mb.msg.Payload[:m.Size/2])
	clear(m.Payload[m.Size/2:])
	mb.pending.Store(false)
	return true
}

// Dropped returns the number of messages that arrived while another one was
// still pending.
func (mb *Mailbox) Dropped() uint32 {
	return mb.dropped.Load()
}
