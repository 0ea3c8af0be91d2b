package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/clktmr/sidecart/tools/config"
	"github.com/clktmr/sidecart/tools/console"
	"github.com/clktmr/sidecart/tools/sdimage"
	"github.com/clktmr/sidecart/tools/sim"
	"github.com/clktmr/sidecart/tools/uf2"
)

const usageString = `sidecart is a tool for development of the cartridge firmware.

Usage:

	%s <command> [arguments]

The commands are:

	uf2      convert firmware and ROM images to UF2 and flash them
	sim      run the cartridge on the host
	console  connect to the serial console of the board
	sdimage  create and inspect SD card images
	config   inspect and modify the configuration of a flash dump
`

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), usageString, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	log.Default().SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "uf2":
		uf2.Main(flag.Args())
	case "sim":
		sim.Main(flag.Args())
	case "console":
		console.Main(flag.Args())
	case "sdimage":
		sdimage.Main(flag.Args())
	case "config":
		config.Main(flag.Args())
	default:
		fmt.Fprintf(flag.CommandLine.Output(), "unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}
