//go:build rp2040

package device

import (
	"embedded/rtos"
	"time"
)

type waker struct {
	note rtos.Note
}

//go:nosplit
func (w *waker) signal() {
	w.note.Wakeup()
}

func (w *waker) wait(d time.Duration) {
	w.note.Sleep(d)
	w.note.Clear()
}
