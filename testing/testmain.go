//go:build rp2040

// Package testing provides utilities for running tests on the cartridge
// board.
package testing

import (
	"embedded/rtos"
	"os"
	"syscall"
	"testing"

	"github.com/clktmr/sidecart/board"
	"github.com/clktmr/sidecart/machine"
	"github.com/clktmr/sidecart/rp2040"

	"github.com/embeddedgo/fs/termfs"
)

// TestMain should be used as TestMain for tests running on the board.
func TestMain(m *testing.M) {
	var err error

	fs := termfs.NewLight("termfs", rp2040.UART0, machine.DefaultWriter)
	rtos.Mount(fs, "/dev/console")
	os.Stdout, err = os.OpenFile("/dev/console", syscall.O_WRONLY, 0)
	if err != nil {
		panic(err)
	}
	os.Stderr = os.Stdout

	// TODO find a way to pass these from the 'go test' command
	os.Args = append(os.Args, "-test.v")
	os.Args = append(os.Args, "-test.bench=.")
	os.Args = append(os.Args, "-test.benchmem")

	print("Hold SELECT to enable interactive test.. ")
	if !board.Default().Button.Pressed() {
		os.Args = append(os.Args, "-test.short")
		println("skipping")
	} else {
		println("ok")
	}

	code := m.Run()
	rp2040.UART0.Flush()
	os.Exit(code)
}
