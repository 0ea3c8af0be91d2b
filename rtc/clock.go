package rtc

import (
	"sync"
	"time"
)

// Clock is the wall clock of the board.
type Clock interface {
	// Now returns the current local time and whether the clock was set.
	Now() (time.Time, bool)
	Set(t time.Time)
}

// SoftClock counts from the last time it was set using the monotonic
// clock. Offset is added to the UTC time to get the local time of the host.
type SoftClock struct {
	Offset time.Duration

	mu  sync.Mutex
	ref time.Time
	at  time.Time
	set bool
}

func (c *SoftClock) Now() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return time.Time{}, false
	}
	return c.ref.Add(time.Since(c.at) + c.Offset), true
}

// Set sets the clock to the UTC time t.
func (c *SoftClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref, c.at, c.set = t.UTC(), time.Now(), true
}
