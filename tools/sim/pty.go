package sim

import (
	"io"
	"log"

	"github.com/aymanbagabas/go-pty"
)

// openConsole opens a pseudo terminal standing in for the board's UART. If
// cmd is given, it's started attached to the terminal.
func openConsole(cmd []string) (io.WriteCloser, error) {
	p, err := pty.New()
	if err != nil {
		return nil, err
	}
	log.Println("console on", p.Name())
	go io.Copy(io.Discard, p)
	if len(cmd) > 0 {
		c := p.Command(cmd[0], cmd[1:]...)
		if err := c.Start(); err != nil {
			p.Close()
			return nil, err
		}
		go func() {
			if err := c.Wait(); err != nil {
				log.Println(cmd[0], err)
			}
		}()
	}
	return p, nil
}
