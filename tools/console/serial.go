//go:build !windows

package console

import (
	"bytes"
	"fmt"
	"io"
	"os"

	serial "github.com/pkg/term"
	"golang.org/x/term"
)

func connect(dev string, baud int) error {
	port, err := serial.Open(dev, serial.Speed(baud), serial.RawMode)
	if err != nil {
		return fmt.Errorf("open %s: %w", dev, err)
	}
	defer port.Close()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer term.Restore(fd, state)
	}

	done := make(chan error, 2)
	go func() {
		_, err := io.Copy(os.Stdout, port)
		done <- err
	}()
	go func() {
		done <- forward(port, os.Stdin)
	}()
	return <-done
}

// forward copies the local input to the port until the escape character.
func forward(w io.Writer, r io.Reader) error {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		p := buf[:n]
		i := bytes.IndexByte(p, escape)
		if i >= 0 {
			p = p[:i]
		}
		if _, werr := w.Write(p); werr != nil {
			return werr
		}
		if i >= 0 || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
