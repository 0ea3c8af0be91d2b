package sim

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/buildkite/shellwords"

	"github.com/clktmr/sidecart/board"
	"github.com/clktmr/sidecart/config"
	"github.com/clktmr/sidecart/emul"
	"github.com/clktmr/sidecart/flash"
	"github.com/clktmr/sidecart/storage"
)

const usageString = `Cartridge simulator.

Boots the personality configured in a flash dump on the host. The storage is
either a directory or an SD card image. The host computer is driven by a Lua
script, without a script the simulator serves until interrupted.

Usage: %s [flags] <flash> <dir|image>

`

var (
	flags = flag.NewFlagSet("sim", flag.ExitOnError)

	script  = flags.String("script", "", "Lua script driving the host")
	feature = flags.String("boot", "", "override BOOT_FEATURE")
	button  = flags.Bool("button", false, "hold the select button during boot")
	console = flags.Bool("pty", false, "log to a pseudo terminal instead of stderr")
	exec    = flags.String("exec", "", "command attached to the pseudo terminal, i.e. screen")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "sim")
	flags.PrintDefaults()
}

func openStorage(name string) (storage.FS, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return storage.Dir(name), nil
	}
	return storage.OpenImage(name)
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() != 2 {
		flags.Usage()
		os.Exit(1)
	}

	f, err := flash.OpenFile(flags.Arg(0), flash.Size)
	if err != nil {
		log.Fatalln(err)
	}
	defer f.Close()
	cfg, err := config.Load(f)
	if err != nil {
		log.Println("config:", err)
	}
	if *feature != "" {
		cfg.PutString(config.BootFeature, *feature)
	}
	fsys, err := openStorage(flags.Arg(1))
	if err != nil {
		log.Fatalln(err)
	}

	var out io.Writer = os.Stderr
	if *console || *exec != "" {
		var cmd []string
		if *exec != "" {
			if cmd, err = shellwords.Split(*exec); err != nil {
				log.Fatalln("exec:", err)
			}
		}
		c, err := openConsole(cmd)
		if err != nil {
			log.Fatalln(err)
		}
		defer c.Close()
		out = c
	}

	var fake board.Fake
	fake.Press(*button)
	b := fake.Board()
	b.Reboot = func() {
		fake.Reboot()
		log.Println("reboot requested")
	}
	emu, err := emul.New(emul.Env{
		Config: cfg,
		Flash:  f,
		FS:     fsys,
		Board:  b,
		Log:    log.New(out, "", log.Lmicroseconds),
	})
	if err != nil {
		log.Fatalln(err)
	}
	defer emu.Close()
	fake.Press(false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *script != "" {
		err = runScript(ctx, emu, &fake, *script)
	} else {
		err = emu.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalln(err)
	}
}
