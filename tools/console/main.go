package console

import (
	"flag"
	"fmt"
	"log"
	"os"
)

const usageString = `Serial console of the cartridge.

Connects the terminal to the UART of the board. Press Ctrl-] to exit.

Usage: %s [flags] <device>

`

// escape ends the session, like telnet's Ctrl-].
const escape = 0x1d

var (
	flags = flag.NewFlagSet("console", flag.ExitOnError)

	baud = flags.Int("baud", 115200, "baud rate")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "console")
	flags.PrintDefaults()
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(1)
	}

	if err := connect(flags.Arg(0), *baud); err != nil {
		log.Fatalln(err)
	}
}
