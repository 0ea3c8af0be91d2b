//go:build rp2040

package board_test

import (
	"testing"
	"time"

	"github.com/clktmr/sidecart/board"
)

var b = board.Default()

// Interactive reports whether the select button is held, which enables the
// tests needing an operator.
func Interactive() bool {
	print("Hold SELECT to enable interactive test.. ")
	if b.Button.Pressed() {
		println("ok")
		return true
	}
	println("skipping")
	return false
}

func TestBlink(t *testing.T) {
	start := time.Now()
	b.Blink('S')
	want := 3*(board.Dot+board.SymbolGap) + board.CharGap
	if got := time.Since(start); got < want {
		t.Fatalf("expected at least %v, got %v", want, got)
	}
}

func TestButton(t *testing.T) {
	if testing.Short() {
		t.Skip("interactive")
	}
	for b.Button.Pressed() {
		time.Sleep(10 * time.Millisecond)
	}
	t.Log("press SELECT")
	deadline := time.Now().Add(10 * time.Second)
	for !b.Button.Pressed() {
		if time.Now().After(deadline) {
			t.Fatalf("button not pressed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
