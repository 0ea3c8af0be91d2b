//go:build rp2040

package runtime_test

import (
	"testing"
	"time"

	"github.com/clktmr/sidecart/rp2040"
)

// tolerance of the system timer against the hardware timer
const tolerance = 500 // µs

func TestSleep(t *testing.T) {
	for _, d := range []time.Duration{time.Millisecond, 10 * time.Millisecond, 100 * time.Millisecond} {
		start := rp2040.Micros()
		time.Sleep(d)
		got := rp2040.Micros() - start
		if got < d.Microseconds() || got > d.Microseconds()+tolerance {
			t.Errorf("sleep %v: took %dµs", d, got)
		}
	}
}

func TestTicker(t *testing.T) {
	const n = 10
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	start := rp2040.Micros()
	for range n {
		<-tick.C
	}
	got := rp2040.Micros() - start
	if want := int64(n * 5000); got < want-tolerance || got > want+tolerance {
		t.Errorf("expected %dµs, got %dµs", want, got)
	}
}

func BenchmarkSchedule(b *testing.B) {
	start := make(chan bool)
	stop := make(chan bool)

	go func() {
		for <-start {
			stop <- true
		}
		stop <- false
	}()

	for i := 0; i < b.N; i++ {
		start <- true
		<-stop
	}
	start <- false
	<-stop
}
