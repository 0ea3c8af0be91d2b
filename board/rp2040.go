//go:build rp2040

package board

import (
	"time"

	"github.com/clktmr/sidecart/rp2040"
)

const (
	selectPin rp2040.Pin = 5
	ledPin    rp2040.Pin = 25
)

type pin rp2040.Pin

func (p pin) Pressed() bool { return rp2040.Pin(p).Get() }
func (p pin) Set(on bool)   { rp2040.Pin(p).Set(on) }

// Default returns the board the firmware runs on.
func Default() *Board {
	rp2040.Unreset(rp2040.ResetIOBank0 | rp2040.ResetPadsBank0)
	selectPin.Setup(rp2040.FuncSIO, rp2040.PullDown)
	selectPin.Output(false)
	ledPin.Setup(rp2040.FuncSIO, rp2040.PullNone)
	ledPin.Output(true)
	return &Board{
		Button: pin(selectPin),
		LED:    pin(ledPin),
		Reboot: rp2040.Reboot,
		Sleep:  time.Sleep,
	}
}
