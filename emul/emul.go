// Package emul boots the personality selected by the configuration and
// connects it to the bus.
package emul

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clktmr/sidecart/board"
	"github.com/clktmr/sidecart/bus"
	"github.com/clktmr/sidecart/config"
	"github.com/clktmr/sidecart/configurator"
	"github.com/clktmr/sidecart/device"
	"github.com/clktmr/sidecart/flash"
	"github.com/clktmr/sidecart/floppy"
	"github.com/clktmr/sidecart/gemdrive"
	"github.com/clktmr/sidecart/ris"
	"github.com/clktmr/sidecart/rtc"
	"github.com/clktmr/sidecart/storage"
)

// Kind is the personality of the cartridge.
type Kind uint8

const (
	Configurator Kind = iota
	ROM
	Floppy
	RTC
	GEMDrive
)

var kindNames = [...]string{
	Configurator: "CONFIGURATOR",
	ROM:          "ROM_EMULATOR",
	Floppy:       "FLOPPY_EMULATOR",
	RTC:          "RTC_EMULATOR",
	GEMDrive:     "GEMDRIVE_EMULATOR",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind parses the BOOT_FEATURE configuration value.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("emul: unknown boot feature %q", s)
}

// Morse characters blinked after boot
const (
	blinkEmulator     = 'E'
	blinkConfigurator = 'C'
	blinkFloppy       = 'F'
)

// Env holds everything the emulator needs from the board.
type Env struct {
	Config *config.Store
	Flash  flash.Flash
	FS     storage.FS // nil if no storage is available
	Clock  rtc.Clock
	Board  *board.Board
	Image  *ris.Image // a new image if nil
	Log    *log.Logger

	// BusOptions are passed to bus.Init.
	BusOptions []bus.Option

	// Location is the time zone of file times.
	Location *time.Location
}

// Emulator is the booted personality.
type Emulator struct {
	Kind Kind

	env  Env
	img  *ris.Image
	bus  atomic.Pointer[bus.Context]
	ctrl *device.Controller
	svc  device.Service

	floppy *floppy.Server
	rtc    *rtc.Server
	gem    *gemdrive.Server
	conf   *configurator.Server

	wroteConfig bool
}

// New builds the personality selected by BOOT_FEATURE and starts answering
// the host's reads. A pressed select button boots the configurator
// regardless of the configuration.
func New(env Env) (*Emulator, error) {
	if env.Config == nil {
		env.Config = config.New(env.Flash)
	}
	if env.Image == nil {
		env.Image = ris.New()
	}
	kind, err := ParseKind(env.Config.String(config.BootFeature))
	if err != nil {
		return nil, err
	}
	if env.Board != nil && env.Board.Button.Pressed() {
		kind = Configurator
	}
	e := &Emulator{Kind: kind, env: env, img: env.Image}
	if err := e.build(); err != nil {
		return nil, fmt.Errorf("emul: %v: %w", kind, err)
	}

	var obs bus.Observer
	if e.Kind != ROM {
		obs = e.Observe
	}
	b, err := bus.Init(e.img, obs, env.BusOptions...)
	if err != nil {
		e.close()
		return nil, err
	}
	e.bus.Store(b)
	if e.ctrl != nil {
		e.ctrl.Bus = b
	}
	e.logf("emul: %v", e.Kind)
	return e, nil
}

func (e *Emulator) logger() *log.Logger {
	if e.env.Log == nil {
		return log.Default()
	}
	return e.env.Log
}

func (e *Emulator) logf(format string, v ...any) {
	e.logger().Printf(format, v...)
}

func (e *Emulator) build() error {
	cfg := e.env.Config
	switch e.Kind {
	case ROM:
		if e.env.Flash == nil {
			return device.ErrNotReady
		}
		return e.img.Load(flash.ROM(e.env.Flash))
	case Configurator:
		e.conf = configurator.New(e.img, e.env.FS, cfg, e.env.Flash)
		e.ctrl, e.svc = e.conf.Controller, e.conf
		if err := e.conf.Start(); err != nil {
			return err
		}
	case Floppy:
		if e.env.FS == nil {
			return device.ErrNotReady
		}
		e.floppy = floppy.New(e.img, e.env.FS, floppy.Config{
			Folder:       cfg.String(config.FloppiesFolder),
			ImageA:       cfg.String(config.FloppyImageA),
			ImageB:       cfg.String(config.FloppyImageB),
			BootEnabled:  cfg.Bool(config.FloppyBootEnabled),
			XBIOSEnabled: cfg.Bool(config.FloppyXBIOSEnabled),
			BufferType:   uint32(cfg.Int(config.FloppyBufferType)),
			Hostname:     cfg.String(config.Hostname),
		})
		e.ctrl, e.svc = e.floppy.Controller, e.floppy
		if err := e.floppy.Start(); err != nil {
			return err
		}
	case RTC:
		kind, err := rtc.ParseKind(cfg.String(config.RTCType))
		if err != nil {
			return err
		}
		e.rtc = rtc.New(e.img, e.clock(), rtc.Config{
			Kind:     kind,
			Y2KPatch: cfg.Bool(config.RTCY2KPatch),
		})
		e.ctrl, e.svc = e.rtc.Controller, e.rtc
		e.rtc.Start()
	case GEMDrive:
		if e.env.FS == nil {
			return device.ErrNotReady
		}
		drive := cfg.String(config.GemdriveDrive)
		if drive == "" {
			drive = "C"
		}
		var clk rtc.Clock
		if cfg.Bool(config.GemdriveRTC) {
			clk = e.clock()
		}
		e.gem = gemdrive.New(e.img, e.env.FS, gemdrive.Config{
			Root:       cfg.String(config.GemdriveFolders),
			Drive:      drive[0],
			BufferType: uint32(cfg.Int(config.GemdriveBuffType)),
			FakeFloppy: cfg.Bool(config.GemdriveFakeFloppy),
			Timeout:    uint32(cfg.Int(config.GemdriveTimeoutSec)),
			RTC:        clk != nil,
			Clock:      clk,
			Location:   e.env.Location,
		})
		e.ctrl, e.svc = e.gem.Controller, e.gem
		if err := e.gem.Start(); err != nil {
			return err
		}
	}
	if e.ctrl != nil {
		e.ctrl.Log = e.env.Log
		if e.env.Board != nil {
			e.ctrl.Button = e.env.Board.Button
			e.ctrl.OnButton = e.selectPressed
		}
	}
	return nil
}

func (e *Emulator) clock() rtc.Clock {
	if e.env.Clock == nil {
		offset := e.env.Config.Int(config.RTCUTCOffset)
		e.env.Clock = &rtc.SoftClock{Offset: time.Duration(offset) * time.Hour}
	}
	return e.env.Clock
}

// Bus returns the bus context.
func (e *Emulator) Bus() *bus.Context {
	return e.bus.Load()
}

// Image returns the image the host reads.
func (e *Emulator) Image() *ris.Image {
	return e.img
}

// Controller returns the device controller or nil for the ROM personality.
func (e *Emulator) Controller() *device.Controller {
	return e.ctrl
}

// Configurator returns the configurator or nil if another personality
// runs.
func (e *Emulator) Configurator() *configurator.Server {
	return e.conf
}

// Observe is the bus observer. It dispatches on the kind of the
// personality.
//
//go:nosplit
func (e *Emulator) Observe(off uint32) {
	b := e.bus.Load()
	if b == nil {
		return
	}
	now := b.Now()
	switch e.Kind {
	case RTC:
		e.rtc.Observe(off, now)
	case Floppy:
		e.floppy.Controller.Observe(uint16(off), now)
	case GEMDrive:
		e.gem.Controller.Observe(uint16(off), now)
	case Configurator:
		e.conf.Controller.Observe(uint16(off), now)
	}
}

// Step runs one iteration of the device loop. It reports whether a command
// was served.
func (e *Emulator) Step() bool {
	if e.ctrl == nil {
		return false
	}
	return e.ctrl.Step(e.svc)
}

// Run blinks the boot character and serves the host until ctx is done. The
// configurator returns as soon as the host made its choice, after which the
// board should be rebooted.
func (e *Emulator) Run(ctx context.Context) error {
	if e.env.Board != nil {
		switch e.Kind {
		case Configurator:
			e.env.Board.Blink(blinkConfigurator)
		default:
			e.env.Board.Blink(blinkEmulator)
		}
	}
	if e.ctrl == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	if e.Kind != Configurator {
		return e.ctrl.Run(ctx, e.svc)
	}
	for {
		if !e.Step() {
			time.Sleep(device.PollInterval)
		}
		if res := e.conf.Done(); res != configurator.None {
			e.logf("emul: configurator: %v", res)
			if res == configurator.FloppySelected && e.env.Board != nil {
				e.env.Board.Blink(blinkFloppy)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// selectPressed leaves the personality for the configurator. With safe
// reboots enabled the boot feature is persisted first, otherwise the board
// reboots at once and the button must be held to enter the configurator.
func (e *Emulator) selectPressed() {
	cfg := e.env.Config
	if cfg.Bool(config.SafeConfigReboot) && !e.wroteConfig {
		cfg.PutString(config.BootFeature, Configurator.String())
		err := e.ctrl.Critical(cfg.Save)
		if err != nil {
			e.logf("emul: %v", err)
		}
		e.wroteConfig = true
	}
	e.logf("emul: select pressed, rebooting")
	e.env.Board.Reboot()
}

// Fatal reports an unrecoverable boot error on the LED until the select
// button is pressed, which boots the configurator.
func Fatal(b *board.Board, cfg *config.Store, err error) {
	log.Printf("emul: %v", err)
	b.Fatal(func() {
		if cfg != nil {
			cfg.PutString(config.BootFeature, Configurator.String())
			if err := cfg.Save(); err != nil {
				log.Printf("emul: %v", err)
			}
		}
		b.Reboot()
	})
}

func (e *Emulator) close() error {
	switch {
	case e.floppy != nil:
		return e.floppy.Close()
	case e.gem != nil:
		return e.gem.Close()
	}
	return nil
}

// Close stops the bus and closes open images and files.
func (e *Emulator) Close() error {
	if b := e.bus.Load(); b != nil {
		b.Close()
	}
	return e.close()
}
