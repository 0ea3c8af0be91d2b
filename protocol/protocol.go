// Package protocol reassembles commands the host sends over the read-only
// cartridge bus.
//
// The host can't write to the cartridge port, so it transmits a word by
// reading from the command window at an offset equal to that word. Every read
// is observed by the bus interrupt and fed into a Parser, which reassembles
// frames of the form
//
//	0xABCD | command | payload size in bytes | payload words...
//
// The first two payload words are the random token the host uses to detect
// the completion of the command.
package protocol

import "time"

const (
	Header = 0xabcd

	// MaxPayload is the largest payload in bytes the parser accepts.
	MaxPayload = 2048

	// DefaultTimeout resets the parser if the host stalls in the middle of a
	// frame, i.e. because it was reset.
	DefaultTimeout = 10 * time.Millisecond
)

type state uint8

const (
	headerDetect state = iota
	commandRead
	payloadSizeRead
	payloadReadInProgress
)

func (s state) String() string {
	switch s {
	case headerDetect:
		return "HeaderDetect"
	case commandRead:
		return "CommandRead"
	case payloadSizeRead:
		return "PayloadSizeRead"
	case payloadReadInProgress:
		return "PayloadReadInProgress"
	}
	return "unknown"
}

// Message is a complete command frame.
type Message struct {
	Command uint16
	Size    uint16 // payload size in bytes
	Payload [MaxPayload / 2]uint16
}

// Words returns the valid part of the payload.
func (m *Message) Words() []uint16 {
	return m.Payload[:m.Size/2]
}

// Token returns the random token chosen by the host for this command.
func (m *Message) Token() uint32 {
	return uint32(m.Payload[0])<<16 | uint32(m.Payload[1])
}

// Word returns the i-th payload word after the token, or zero if the payload
// is too short.
func (m *Message) Word(i int) uint16 {
	i += 2
	if i >= int(m.Size/2) {
		return 0
	}
	return m.Payload[i]
}

// Long returns the 32-bit value at payload word i after the token. The host
// pushes its registers low word first.
func (m *Message) Long(i int) uint32 {
	return uint32(m.Word(i+1))<<16 | uint32(m.Word(i))
}

// LongHi returns the 32-bit value at payload word i after the token, stored
// high word first.
func (m *Message) LongHi(i int) uint32 {
	return uint32(m.Word(i))<<16 | uint32(m.Word(i+1))
}

// Bytes copies the payload starting at word i after the token into p in
// host byte order and returns the number of bytes copied.
func (m *Message) Bytes(i int, p []byte) int {
	n := 0
	for j := i; n < len(p); j++ {
		if j+2 >= int(m.Size/2) {
			break
		}
		w := m.Payload[j+2]
		p[n] = byte(w >> 8)
		n++
		if n < len(p) {
			p[n] = byte(w)
			n++
		}
	}
	return n
}

// String returns the NUL terminated string starting at word i after the
// token, limited to max bytes.
func (m *Message) String(i, max int) string {
	var buf [MaxPayload]byte
	n := m.Bytes(i, buf[:min(max, len(buf))])
	for j := range n {
		if buf[j] == 0 {
			n = j
			break
		}
	}
	return string(buf[:n])
}

// Parser is the frame reassembly state machine. It must only be fed from a
// single context, the bus interrupt, and does not allocate.
type Parser struct {
	Timeout time.Duration // zero means DefaultTimeout

	state     state
	msg       Message
	bytesRead int
	last      int64 // time of the last input in microseconds
	dropped   uint32
}

// Feed advances the parser with the next observed word. now is a monotonic
// time in microseconds. A complete frame is returned, otherwise nil. The
// returned message is only valid until the next call of Feed.
//
//go:nosplit
func (p *Parser) Feed(word uint16, now int64) *Message {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if now-p.last > timeout.Microseconds() {
		p.state = headerDetect
	}
	p.last = now

	switch p.state {
	case headerDetect:
		if word == Header {
			p.state = commandRead
		}
	case commandRead:
		p.msg.Command = word
		p.state = payloadSizeRead
	case payloadSizeRead:
		switch {
		case word == 0:
			p.msg.Size = 0
			p.state = headerDetect
			return &p.msg
		case word > MaxPayload || word&1 != 0:
			p.dropped++
			p.state = headerDetect
		default:
			p.msg.Size = word
			p.bytesRead = 0
			p.state = payloadReadInProgress
		}
	case payloadReadInProgress:
		p.msg.Payload[p.bytesRead/2] = word
		p.bytesRead += 2
		if p.bytesRead == int(p.msg.Size) {
			p.state = headerDetect
			return &p.msg
		}
	}
	return nil
}

// Reset discards any partially received frame.
func (p *Parser) Reset() {
	p.state = headerDetect
	p.bytesRead = 0
}

// Dropped returns the number of frames discarded because of an invalid
// payload size.
func (p *Parser) Dropped() uint32 {
	return p.dropped
}
