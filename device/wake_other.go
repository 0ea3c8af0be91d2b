//go:build !rp2040

package device

import (
	"sync"
	"time"
)

type waker struct {
	once sync.Once
	c    chan struct{}
}

func (w *waker) init() {
	w.once.Do(func() { w.c = make(chan struct{}, 1) })
}

func (w *waker) signal() {
	w.init()
	select {
	case w.c <- struct{}{}:
	default:
	}
}

func (w *waker) wait(d time.Duration) {
	w.init()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-w.c:
	case <-t.C:
	}
}
