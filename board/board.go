// Package board gives access to the few user facing parts of the cartridge
// board: the select button, the status LED and the reset.
package board

import (
	"time"
)

// Button is the select button.
type Button interface {
	Pressed() bool
}

// LED is the status LED.
type LED interface {
	Set(on bool)
}

// Morse timing
const (
	Dot       = 150 * time.Millisecond
	Dash      = 450 * time.Millisecond
	SymbolGap = 150 * time.Millisecond
	CharGap   = 700 * time.Millisecond
)

var morseCode = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".", 'F': "..-.",
	'G': "--.", 'H': "....", 'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---", 'P': ".--.", 'Q': "--.-", 'R': ".-.",
	'S': "...", 'T': "-", 'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
}

// Morse blinks ch on led. Characters without a code are ignored. sleep is
// usually time.Sleep.
func Morse(led LED, sleep func(time.Duration), ch rune) {
	code, ok := morseCode[ch]
	if !ok {
		return
	}
	for _, sym := range code {
		led.Set(true)
		if sym == '.' {
			sleep(Dot)
		} else {
			sleep(Dash)
		}
		led.Set(false)
		sleep(SymbolGap)
	}
	sleep(CharGap)
}

// Board bundles the parts with the reset.
type Board struct {
	Button Button
	LED    LED
	Reboot func()
	Sleep  func(time.Duration)
}

// Blink blinks ch on the board's LED.
func (b *Board) Blink(ch rune) {
	sleep := b.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	Morse(b.LED, sleep, ch)
}

// Fatal signals an unrecoverable error by blinking 'E' until the button is
// pressed. It returns after calling pressed, which usually switches to the
// configurator and reboots.
func (b *Board) Fatal(pressed func()) {
	for {
		b.Blink('E')
		if b.Button.Pressed() {
			pressed()
			return
		}
	}
}
