// Package configurator implements the personality used to set up the
// cartridge from the host. It exposes the configuration and the images found
// on the storage through bank 0 and persists the host's choices.
//
// Commands that select a ROM or a floppy image, save or reset the
// configuration finish the configurator. The caller is expected to reboot
// into the chosen personality afterwards.
package configurator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/clktmr/sidecart/config"
	"github.com/clktmr/sidecart/debug"
	"github.com/clktmr/sidecart/device"
	"github.com/clktmr/sidecart/flash"
	"github.com/clktmr/sidecart/protocol"
	"github.com/clktmr/sidecart/ris"
	"github.com/clktmr/sidecart/shm"
	"github.com/clktmr/sidecart/storage"
)

// Commands
const (
	DownloadROM = iota
	LoadROM
	ListROMs
	GetConfig
	PutConfigString
	PutConfigInteger
	PutConfigBool
	SaveConfig
	ResetDevice
	LaunchScanNetworks
	GetScannedNetworks
	ConnectNetwork
	GetIPData
	DisconnectNetwork
	GetROMsJSONFile
	LoadFloppyRO
	LoadFloppyRW
	ListFloppies
)

// Offsets inside the shared window
const (
	OffToken      = 0
	OffSeed       = 4
	OffSharedVars = 0x200
)

// DataSize is the size of the data area at the start of bank 0.
const DataSize = 0x10000

// End of a file list
const (
	listEnd     = 0x0000
	listEndMark = 0xffff
)

// Sizes of ROM dumps carrying a 4 byte header, i.e. from emulators.
const (
	halfROMWithHeader = flash.ROMSize/2 + 4
	fullROMWithHeader = flash.ROMSize + 4
)

// RWSuffix marks the writable copy of a floppy image.
const RWSuffix = ".rw"

var (
	ErrNoList = errors.New("configurator: no file list")
	ErrIndex  = errors.New("configurator: index out of range")
	ErrSize   = errors.New("configurator: image too large")
)

var Layout = shm.Layout{
	Token:       OffToken,
	Seed:        OffSeed,
	SharedVars:  OffSharedVars,
	ReentryTrap: -1,
}

// Result is the choice the configurator finished with.
type Result uint8

const (
	None Result = iota
	ROMLoaded
	FloppySelected
	Saved
	Defaulted
)

func (r Result) String() string {
	switch r {
	case None:
		return "none"
	case ROMLoaded:
		return "rom loaded"
	case FloppySelected:
		return "floppy selected"
	case Saved:
		return "saved"
	case Defaulted:
		return "defaults restored"
	}
	return "unknown"
}

type listKind uint8

const (
	noList listKind = iota
	romList
	floppyList
)

// Server serves the configurator commands.
type Server struct {
	Controller *device.Controller
	Config     *config.Store
	Flash      flash.Flash
	Verbose    bool

	fs     storage.FS
	w      *shm.Window
	img    *ris.Image
	list   []string
	kind   listKind
	result Result
}

// New returns a configurator over fsys. fsys may be nil if no storage is
// available, in which case all file commands fail.
func New(img *ris.Image, fsys storage.FS, cfg *config.Store, f flash.Flash) *Server {
	w := shm.New(img, Layout)
	return &Server{
		Controller: device.New(w),
		Config:     cfg,
		Flash:      f,
		fs:         fsys,
		w:          w,
		img:        img,
	}
}

// Start clears the data area and the shared window.
func (s *Server) Start() error {
	s.img.Clear(ris.Bank0, DataSize)
	s.w.Clear(0, OffSharedVars+4*shm.MaxSharedVars)
	s.Controller.RefreshSeed()
	return nil
}

// Done reports the choice the configurator finished with, None if it's still
// waiting for the host.
func (s *Server) Done() Result {
	return s.result
}

func (s *Server) tracef(format string, v ...any) {
	if s.Verbose {
		s.Controller.Logf(format, v...)
	}
	debug.Printf(format, v...)
}

// Serve implements device.Service.
func (s *Server) Serve(c *device.Controller, m *protocol.Message) {
	var err error
	switch m.Command {
	case GetConfig:
		s.getConfig()
	case PutConfigString, PutConfigInteger, PutConfigBool:
		err = s.putConfig(m)
	case SaveConfig:
		if err = c.Critical(s.Config.Save); err == nil {
			s.result = Saved
		}
	case ResetDevice:
		s.Config.Reset()
		if err = c.Critical(s.Config.Save); err == nil {
			s.result = Defaulted
		}
	case ListROMs:
		err = s.listFiles(romList, s.Config.String(config.RomsFolder))
	case ListFloppies:
		err = s.listFiles(floppyList, s.Config.String(config.FloppiesFolder))
	case LoadROM:
		err = s.loadROM(int(m.Word(0)))
	case LoadFloppyRO, LoadFloppyRW:
		err = s.selectFloppy(int(m.Word(0)), m.Command == LoadFloppyRW)
	case DownloadROM, LaunchScanNetworks, GetScannedNetworks, ConnectNetwork,
		GetIPData, DisconnectNetwork, GetROMsJSONFile:
		err = device.ErrNotReady
	default:
		c.Logf("configurator: unknown command %#04x", m.Command)
		return
	}
	if err != nil {
		c.Logf("configurator: command %d: %v", m.Command, err)
		c.Reject(m.Token())
		return
	}
	c.Publish(m.Token())
}

// getConfig serializes all entries into the data area: the magic and
// version as long word, then the entries in flash layout terminated by an
// empty entry.
func (s *Server) getConfig() {
	s.img.Clear(ris.Bank0, DataSize)
	s.img.SetLong(ris.Bank0, config.Magic|config.Version)
	var buf [config.EntrySize]byte
	off := ris.Bank0 + 4
	for _, e := range s.Config.Entries() {
		if off+config.EntrySize > ris.Bank0+DataSize {
			break
		}
		clear(buf[:])
		copy(buf[:config.KeySize-1], e.Key)
		buf[config.KeySize] = byte(e.Type >> 8)
		buf[config.KeySize+1] = byte(e.Type)
		copy(buf[config.KeySize+2:config.EntrySize-1], e.Value)
		s.img.CopyIn(off, buf[:])
		off += config.EntrySize
	}
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// putConfig handles an entry sent by the host in the layout used by
// getConfig. The type in the entry is ignored, the command decides it.
func (s *Server) putConfig(m *protocol.Message) error {
	var buf [config.EntrySize]byte
	m.Bytes(0, buf[:])
	key := cstring(buf[:config.KeySize])
	value := cstring(buf[config.KeySize+2:])
	s.tracef("configurator: %s = %q", key, value)
	switch m.Command {
	case PutConfigInteger:
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", config.ErrType, key, err)
		}
		return s.Config.PutInt(key, v)
	case PutConfigBool:
		return s.Config.PutBool(key, value == "true")
	}
	return s.Config.PutString(key, value)
}

// listFiles publishes the sorted names of the visible files in dir. The
// names are NUL terminated, padded to an even length and followed by an end
// mark.
func (s *Server) listFiles(kind listKind, dir string) error {
	s.img.Clear(ris.Bank0, DataSize)
	s.list, s.kind = nil, noList
	if s.fs == nil {
		return device.ErrNotReady
	}
	var fis []fs.FileInfo
	err := s.Controller.Critical(func() (err error) {
		fis, err = s.fs.ReadDir(storage.Clean(dir))
		return
	})
	if err != nil {
		return err
	}
	var names []string
	for _, fi := range fis {
		if fi.IsDir() || strings.HasPrefix(fi.Name(), ".") {
			continue
		}
		names = append(names, fi.Name())
	}
	slices.Sort(names)

	var b []byte
	for i, name := range names {
		if len(b)+len(name)+1 > DataSize-4 {
			names = names[:i]
			break
		}
		b = append(b, name...)
		b = append(b, 0)
	}
	if len(b)&1 != 0 {
		b = append(b, 0)
	}
	b = append(b, listEnd>>8, listEnd&0xff, listEndMark>>8, listEndMark&0xff)
	s.img.CopyIn(ris.Bank0, b)
	s.list, s.kind = names, kind
	s.tracef("configurator: %d files in %s", len(names), dir)
	return nil
}

// selected returns the name at the host's one based index into the last
// list of the given kind.
func (s *Server) selected(kind listKind, idx int) (string, error) {
	if s.kind != kind {
		return "", ErrNoList
	}
	if idx < 1 || idx > len(s.list) {
		return "", fmt.Errorf("%w: %d", ErrIndex, idx)
	}
	return s.list[idx-1], nil
}

// loadROM copies the selected ROM image into the flash ROM region and makes
// the ROM emulator the boot feature.
func (s *Server) loadROM(idx int) error {
	name, err := s.selected(romList, idx)
	if err != nil {
		return err
	}
	full := path.Join("/", s.Config.String(config.RomsFolder), name)
	err = s.Controller.Critical(func() error {
		data, err := storage.ReadFile(s.fs, full)
		if err != nil {
			return err
		}
		data = stripHeader(data)
		if len(data) > flash.ROMSize {
			return fmt.Errorf("%w: %s", ErrSize, name)
		}
		rom := bytes.Repeat([]byte{0xff}, flash.ROMSize)
		copy(rom, data)
		return flash.Write(s.Flash, flash.ROMOffset, rom)
	})
	if err != nil {
		return err
	}
	s.Config.PutString(config.BootFeature, "ROM_EMULATOR")
	if err := s.Controller.Critical(s.Config.Save); err != nil {
		return err
	}
	s.Controller.Logf("configurator: rom %s loaded", name)
	s.result = ROMLoaded
	return nil
}

// stripHeader removes the zero header of cartridge dumps made by emulators.
func stripHeader(data []byte) []byte {
	if len(data) != halfROMWithHeader && len(data) != fullROMWithHeader {
		return data
	}
	if bytes.Equal(data[:4], []byte{0, 0, 0, 0}) {
		return data[4:]
	}
	return data
}

// selectFloppy makes the selected image the image of drive A. In read-write
// mode the image is first copied to a writable twin, unless the image is
// such a twin already. An existing twin is kept.
func (s *Server) selectFloppy(idx int, rw bool) error {
	name, err := s.selected(floppyList, idx)
	if err != nil {
		return err
	}
	if rw && !strings.HasSuffix(name, RWSuffix) {
		dir := path.Join("/", s.Config.String(config.FloppiesFolder))
		twin := name + RWSuffix
		err := s.Controller.Critical(func() error {
			return copyFile(s.fs, path.Join(dir, name), path.Join(dir, twin))
		})
		if err != nil {
			return err
		}
		name = twin
	}
	s.Config.PutString(config.FloppyImageA, name)
	s.Config.PutString(config.BootFeature, "FLOPPY_EMULATOR")
	if err := s.Controller.Critical(s.Config.Save); err != nil {
		return err
	}
	s.Controller.Logf("configurator: floppy %s selected", name)
	s.result = FloppySelected
	return nil
}

// copyFile copies src to dst unless dst exists.
func copyFile(fsys storage.FS, src, dst string) error {
	if _, err := fsys.Stat(dst); err == nil {
		return nil
	}
	in, err := fsys.OpenFile(src, 0)
	if err != nil {
		return err
	}
	defer in.Close()
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	return storage.WriteFile(fsys, dst, data)
}

var _ device.Service = (*Server)(nil)
