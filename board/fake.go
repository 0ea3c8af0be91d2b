package board

import (
	"sync"
	"sync/atomic"
	"time"
)

// Fake is a board simulated on the host. It records the LED changes and the
// reboots.
type Fake struct {
	pressed atomic.Bool
	reboots atomic.Int32

	mu    sync.Mutex
	blink []bool
}

func (f *Fake) Pressed() bool { return f.pressed.Load() }

// Press sets the state of the button.
func (f *Fake) Press(down bool) { f.pressed.Store(down) }

func (f *Fake) Set(on bool) {
	f.mu.Lock()
	f.blink = append(f.blink, on)
	f.mu.Unlock()
}

// LEDChanges returns the recorded LED states.
func (f *Fake) LEDChanges() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.blink...)
}

func (f *Fake) Reboot() { f.reboots.Add(1) }

// Reboots returns the number of calls to Reboot.
func (f *Fake) Reboots() int { return int(f.reboots.Load()) }

// Board returns a board using the fake parts. Sleeps return immediately.
func (f *Fake) Board() *Board {
	return &Board{
		Button: f,
		LED:    f,
		Reboot: f.Reboot,
		Sleep:  func(time.Duration) {},
	}
}
