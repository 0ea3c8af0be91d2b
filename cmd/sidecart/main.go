//go:build rp2040

// Sidecart is the firmware of the cartridge board. It boots the personality
// stored in the configuration and serves the host until the select button
// is pressed.
package main

import (
	"context"
	"log"
	"os"

	"github.com/clktmr/sidecart/board"
	"github.com/clktmr/sidecart/config"
	"github.com/clktmr/sidecart/emul"
	"github.com/clktmr/sidecart/flash"
	"github.com/clktmr/sidecart/machine"
	"github.com/clktmr/sidecart/storage"
)

// SDRoot is where the SD card driver mounts the card.
const SDRoot = "/sd"

func main() {
	log.SetOutput(machine.DefaultWriter)
	log.SetFlags(0)

	b := board.Default()
	f := flash.Internal{}
	cfg, err := config.Load(f)
	if err != nil {
		log.Printf("config: %v, using defaults", err)
	}

	var fsys storage.FS
	if fi, err := os.Stat(SDRoot); err == nil && fi.IsDir() {
		fsys = storage.Dir(SDRoot)
	} else {
		log.Printf("no storage at %s", SDRoot)
	}

	emu, err := emul.New(emul.Env{
		Config: cfg,
		Flash:  f,
		FS:     fsys,
		Board:  b,
	})
	if err != nil {
		emul.Fatal(b, cfg, err)
		return
	}
	if err := emu.Run(context.Background()); err != nil {
		log.Printf("%v: %v", emu.Kind, err)
	}
	b.Reboot()
}
