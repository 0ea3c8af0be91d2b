//go:build !(linux || darwin)

package config

import (
	"errors"
	"os"

	"github.com/clktmr/sidecart/flash"
)

func mount(f flash.Flash, dir string, sigintr <-chan os.Signal) error {
	return errors.New("config: mount not supported on this platform")
}
