package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/clktmr/sidecart/config"
	"github.com/clktmr/sidecart/flash"
)

func must[T any](ret T, err error) T {
	if err != nil {
		log.Fatalln(err)
	}
	return ret
}

const usageString = `Configuration Utility.

Reads and modifies the configuration stored in a flash dump, as read with
'picotool save -a'.

Usage:

	%s <command> [arguments]

The commands are:

	dump <flash>                    print all entries
	verify <flash>                  check magic and checksum
	set <flash> <key>=<value>...    change entries and save
	reset <flash>                   restore the defaults
	mount <flash> <dir>             serve the entries as files via fuse
`

var flags = flag.NewFlagSet("config", flag.ExitOnError)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "config")
	flags.PrintDefaults()
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() < 2 {
		flags.Usage()
		os.Exit(1)
	}

	f := must(flash.OpenFile(flags.Arg(1), flash.Size))
	defer f.Close()

	switch flags.Arg(0) {
	case "dump":
		s, err := config.Load(f)
		if err != nil {
			log.Println("config:", err)
		}
		must(s.WriteTo(os.Stdout))
	case "verify":
		if _, err := config.Load(f); err != nil {
			log.Fatalln(err)
		}
		log.Println("ok")
	case "set":
		s, err := config.Load(f)
		if err != nil && !errors.Is(err, config.ErrMagic) {
			log.Fatalln(err)
		}
		for _, arg := range flags.Args()[2:] {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				log.Fatalf("config: invalid assignment %q", arg)
			}
			if err := s.Parse(key, value); err != nil {
				log.Fatalln(err)
			}
		}
		if err := s.Save(); err != nil {
			log.Fatalln(err)
		}
	case "reset":
		if err := config.New(f).Save(); err != nil {
			log.Fatalln(err)
		}
	case "mount":
		if flags.NArg() < 3 {
			flags.Usage()
			os.Exit(1)
		}
		sigintr := make(chan os.Signal, 1)
		signal.Notify(sigintr, os.Interrupt)
		if err := mount(f, flags.Arg(2), sigintr); err != nil {
			log.Fatalln(err)
		}
	default:
		fmt.Fprintf(flags.Output(), "unknown command: %s\n", flags.Arg(0))
		flags.Usage()
		os.Exit(1)
	}
}
