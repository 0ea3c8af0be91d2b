//go:build windows

package console

import "errors"

func connect(dev string, baud int) error {
	return errors.New("console: serial ports not supported on this platform")
}
