// Package floppy implements the floppy drive personality. It serves the
// sectors of up to two disk images, one per drive, to the host's BIOS
// routines, which are replaced by the cartridge firmware.
package floppy

import (
	"errors"
	"path"

	"github.com/clktmr/sidecart/debug"
	"github.com/clktmr/sidecart/device"
	"github.com/clktmr/sidecart/protocol"
	"github.com/clktmr/sidecart/ris"
	"github.com/clktmr/sidecart/shm"
	"github.com/clktmr/sidecart/storage"
)

// Commands
const (
	SaveVectors = 0x0200 + iota
	ReadSectors
	WriteSectors
	Ping
	SaveHardware
	SetSharedVar
	Reset
	MountA
	UnmountA
	MountB
	UnmountB
	ShowVectorCall
)

// Offsets inside the shared window
const (
	OffToken        = 0
	OffSeed         = 4
	OffBufferType   = 8
	OffBPBA         = 12
	OffBPBB         = OffBPBA + 2*BPBWords
	OffXBIOSTrap    = OffBPBB + 2*BPBWords + 4
	OffHdvBPB       = OffXBIOSTrap + 4
	OffHdvRW        = OffHdvBPB + 4
	OffHdvMediach   = OffHdvRW + 4
	OffHardwareType = OffHdvMediach + 4
	OffReadChecksum = OffHardwareType + 4
	OffIPAddress    = OffReadChecksum + 4
	OffHostname     = OffIPAddress + 128
	OffSharedVars   = 0x200
	OffImage        = 0x1000

	hostnameSize = 128
)

// Shared variables
const (
	DoTransfer = shm.SharedFunctionsSize + iota
	ExitTransfer
	XBIOSTrapEnabled
	BootEnabled
	PingStatus
	PingTimeout
	MediaChangedA
	MediaChangedB
	EmulationMode
)

// Media change codes
const (
	MedNoChange = 0
	MedUnknown  = 1
	MedChanged  = 2
)

// MaxSectorSize is the largest sector the host may request.
const MaxSectorSize = 8192

// MegaSTE is the machine id of the only host that keeps the speed and cache
// switching code of the boot routines.
const MegaSTE = 0x00010010

const nop = 0x4e71

var Layout = shm.Layout{
	Token:       OffToken,
	Seed:        OffSeed,
	SharedVars:  OffSharedVars,
	ReentryTrap: -1,
}

var bpbOffsets = [2]int{OffBPBA, OffBPBB}
var mediaChanged = [2]int{MediaChangedA, MediaChangedB}

// Config is the part of the configuration used by the floppy personality.
type Config struct {
	Folder         string
	ImageA, ImageB string
	BootEnabled    bool
	XBIOSEnabled   bool
	BufferType     uint32
	PingTimeout    uint32
	Hostname       string
	Address        string
}

// Server serves the floppy commands.
type Server struct {
	Controller *device.Controller
	Drives     [2]Drive
	Verbose    bool

	fs  storage.FS
	cfg Config
	w   *shm.Window
	buf [protocol.MaxPayload]byte
}

func New(img *ris.Image, fsys storage.FS, cfg Config) *Server {
	w := shm.New(img, Layout)
	return &Server{
		Controller: device.New(w),
		fs:         fsys,
		cfg:        cfg,
		w:          w,
	}
}

func boolVar(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Start initializes the shared window and mounts the configured images.
// Drive A is mandatory, a failure to mount drive B is only logged.
func (s *Server) Start() error {
	s.w.Clear(0, OffImage)
	s.w.SetLong(OffBufferType, s.cfg.BufferType)
	s.w.SetString(OffHostname, s.cfg.Hostname, hostnameSize)
	s.w.SetString(OffIPAddress, s.cfg.Address, OffHostname-OffIPAddress)
	s.w.SetSharedVar(shm.BufferType, s.cfg.BufferType)
	s.w.SetSharedVar(BootEnabled, boolVar(s.cfg.BootEnabled))
	s.w.SetSharedVar(XBIOSTrapEnabled, boolVar(s.cfg.XBIOSEnabled))
	s.w.SetSharedVar(PingTimeout, s.cfg.PingTimeout)
	s.w.SetSharedVar(MediaChangedA, MedNoChange)
	s.w.SetSharedVar(MediaChangedB, MedNoChange)
	s.Controller.RefreshSeed()
	return s.mountConfigured()
}

func (s *Server) mountConfigured() error {
	if err := s.Mount(0, s.cfg.ImageA); err != nil {
		return err
	}
	if s.cfg.ImageB != "" {
		if err := s.Mount(1, s.cfg.ImageB); err != nil {
			s.Controller.Logf("floppy: drive B: %v", err)
		}
	}
	return nil
}

// Mount opens the image name inside the floppies folder in the given drive
// and publishes its BPB.
func (s *Server) Mount(drive int, name string) error {
	full := path.Join("/", s.cfg.Folder, name)
	other := &s.Drives[1-drive]
	if other.State == Mounted && other.Path == full && (other.Writable || Writable(full)) {
		return ErrConflict
	}
	d := &s.Drives[drive]
	if err := d.mount(s.fs, full, drive); err != nil {
		return err
	}
	s.setBPB(drive, d.BPB.Words())
	s.w.SetSharedVar(mediaChanged[drive], MedNoChange)
	s.setEmulationMode()
	mode := "read-only"
	if d.Writable {
		mode = "read-write"
	}
	s.Controller.Logf("floppy: drive %c: %s (%s)", 'A'+drive, full, mode)
	return nil
}

// Unmount closes the image of the drive and signals the media change to the
// host.
func (s *Server) Unmount(drive int) error {
	d := &s.Drives[drive]
	if d.State != Mounted {
		return device.ErrNotReady
	}
	err := d.unmount()
	s.setBPB(drive, [BPBWords]uint16{})
	s.w.SetSharedVar(mediaChanged[drive], MedChanged)
	s.setEmulationMode()
	return err
}

func (s *Server) setBPB(drive int, words [BPBWords]uint16) {
	for i, v := range words {
		s.w.SetWord(bpbOffsets[drive]+2*i, v)
	}
}

// setEmulationMode publishes which drives are mounted, bit 0 for A and bit 1
// for B.
func (s *Server) setEmulationMode() {
	var mode uint32
	for i := range s.Drives {
		if s.Drives[i].State == Mounted {
			mode |= 1 << i
		}
	}
	s.w.SetSharedVar(EmulationMode, mode)
}

func (s *Server) tracef(format string, v ...any) {
	if s.Verbose {
		s.Controller.Logf(format, v...)
	}
	debug.Printf(format, v...)
}

// Serve implements device.Service.
func (s *Server) Serve(c *device.Controller, m *protocol.Message) {
	switch m.Command {
	case SaveVectors:
		s.saveVectors(m)
	case ReadSectors:
		s.readSectors(m)
	case WriteSectors:
		s.writeSectors(m)
	case Ping:
		s.ping(m)
	case SaveHardware:
		s.saveHardware(m)
	case SetSharedVar:
		c.SetSharedVar(m)
	case Reset:
		for i := range s.Drives {
			s.Unmount(i)
		}
		if err := s.mountConfigured(); err != nil {
			c.Logf("floppy: reset: %v", err)
		}
		c.Publish(m.Token())
	case MountA, MountB:
		s.mount(m, int(m.Command-MountA)/2)
	case UnmountA, UnmountB:
		drive := int(m.Command-UnmountA) / 2
		if err := s.Unmount(drive); err != nil {
			c.Logf("floppy: unmount %c: %v", 'A'+drive, err)
		}
		c.Publish(m.Token())
	case ShowVectorCall:
		s.tracef("floppy: vector %#04x called", m.Word(0))
		c.Publish(m.Token())
	default:
		c.Logf("floppy: unknown command %#04x", m.Command)
	}
}

// mount handles a mount command. The image name may be given in the
// payload, otherwise the configured image is used.
func (s *Server) mount(m *protocol.Message, drive int) {
	name := m.String(0, 256)
	if name == "" {
		name = s.cfg.ImageA
		if drive == 1 {
			name = s.cfg.ImageB
		}
	}
	if s.Drives[drive].State == Mounted {
		s.Unmount(drive)
	}
	if err := s.Mount(drive, name); err != nil {
		s.Controller.Logf("floppy: mount %c: %v", 'A'+drive, err)
		s.Controller.Reject(m.Token())
		return
	}
	s.Controller.Publish(m.Token())
}

// cartridgeVector reports whether a vector already points into the
// cartridge, i.e. the vectors were saved before a warm reset of the host.
func cartridgeVector(v uint32) bool {
	return v >= ris.HostROM4 && v < ris.HostROM4+ris.Size
}

func (s *Server) saveVectors(m *protocol.Message) {
	for i, off := range [...]int{OffHdvBPB, OffHdvRW, OffHdvMediach, OffXBIOSTrap} {
		v := m.LongHi(2 * i)
		if cartridgeVector(v) {
			s.tracef("floppy: vector %#08x previously set", v)
			continue
		}
		s.w.SetLong(off, v)
	}
	s.Controller.Publish(m.Token())
}

func (s *Server) saveHardware(m *protocol.Message) {
	machine, start, end := m.Long(0), m.Long(2), m.Long(4)
	s.tracef("floppy: machine %#08x, patch %#04x %#04x", machine, start&0xffff, end&0xffff)
	img := s.w.Image()
	if machine != MegaSTE {
		for i := range 8 {
			img.SetWord(ris.Bank0+int(start&0xffff)+2*i, nop)
		}
		for i := range 2 {
			img.SetWord(ris.Bank0+int(end&0xffff)+2*i, nop)
		}
	}
	s.w.SetLong(OffHardwareType, machine)
	s.w.SetSharedVar(shm.HardwareType, machine)
	s.Controller.Publish(m.Token())
}

func (s *Server) ping(m *protocol.Message) {
	var status uint32
	if s.fs != nil && s.Drives[0].State == Mounted {
		status = 0xffff
	}
	s.w.SetSharedVar(PingStatus, status)
	s.Controller.Publish(m.Token())
}

func sectorArgs(m *protocol.Message) (size, sector, drive int, ok bool) {
	size, sector, drive = int(m.Word(0)), int(m.Word(1)), int(m.Word(2))
	ok = drive < 2 && size > 0 && size <= MaxSectorSize && size&1 == 0
	return
}

func (s *Server) readSectors(m *protocol.Message) {
	size, sector, drive, ok := sectorArgs(m)
	if !ok {
		s.Controller.Logf("floppy: read: invalid arguments")
		s.Controller.Reject(m.Token())
		return
	}
	d := &s.Drives[drive]
	if d.State != Mounted {
		// The host times out and reports the drive as not ready.
		s.tracef("floppy: read %c: %v", 'A'+drive, device.ErrNotReady)
		return
	}
	s.tracef("floppy: read %c sector %d size %d", 'A'+drive, sector, size)

	buf := s.w.Bytes(OffImage, size)
	err := s.Controller.Critical(func() error {
		return d.ReadSector(sector, buf)
	})
	if err != nil {
		s.Controller.Logf("floppy: read %c sector %d: %v", 'A'+drive, sector, err)
		s.Controller.Reject(m.Token())
		return
	}
	sum := ris.Sum16(buf)
	ris.Swap(buf)
	s.w.SetLong(OffReadChecksum, uint32(sum))
	s.Controller.Publish(m.Token())
}

func (s *Server) writeSectors(m *protocol.Message) {
	size, sector, drive, ok := sectorArgs(m)
	if !ok || size+12 > int(m.Size) {
		s.Controller.Logf("floppy: write: invalid arguments")
		s.Controller.Reject(m.Token())
		return
	}
	d := &s.Drives[drive]
	if d.State != Mounted {
		s.tracef("floppy: write %c: %v", 'A'+drive, device.ErrNotReady)
		return
	}
	s.tracef("floppy: write %c sector %d size %d", 'A'+drive, sector, size)

	buf := s.buf[:size]
	m.Bytes(3, buf)
	if sum := m.Word(3 + size/2); ris.Sum16(buf) != sum {
		s.Controller.Logf("floppy: write %c sector %d: %v", 'A'+drive, sector, device.ErrChecksumMismatch)
		s.Controller.Reject(m.Token())
		return
	}
	err := s.Controller.Critical(func() error {
		return d.WriteSector(sector, buf)
	})
	if err != nil {
		s.Controller.Logf("floppy: write %c sector %d: %v", 'A'+drive, sector, err)
		s.Controller.Reject(m.Token())
		return
	}
	s.Controller.Publish(m.Token())
}

// Close unmounts all drives.
func (s *Server) Close() error {
	var errs []error
	for i := range s.Drives {
		if s.Drives[i].State == Mounted {
			errs = append(errs, s.Drives[i].unmount())
		}
	}
	return errors.Join(errs...)
}

var _ device.Service = (*Server)(nil)
