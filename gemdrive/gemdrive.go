// Package gemdrive implements the hard disk personality. The firmware in
// bank 0 hooks the host's GEMDOS trap and forwards the calls that concern
// the emulated drive, which is a folder on the storage.
//
// Results are returned in per call status slots of the shared window. File
// contents are streamed through an 8 KiB buffer, directory entries are
// transferred in the layout of the host's DTA.
package gemdrive

import (
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/clktmr/sidecart/debug"
	"github.com/clktmr/sidecart/device"
	"github.com/clktmr/sidecart/protocol"
	"github.com/clktmr/sidecart/ris"
	"github.com/clktmr/sidecart/rtc"
	"github.com/clktmr/sidecart/shm"
	"github.com/clktmr/sidecart/storage"
)

// Commands forwarded from the GEMDOS trap carry the GEMDOS function number.
const (
	Dgetdrv  = 0x0400 | 0x19
	Fsetdta  = 0x0400 | 0x1a
	Dfree    = 0x0400 | 0x36
	Dcreate  = 0x0400 | 0x39
	Ddelete  = 0x0400 | 0x3a
	Dsetpath = 0x0400 | 0x3b
	Fcreate  = 0x0400 | 0x3c
	Fopen    = 0x0400 | 0x3d
	Fclose   = 0x0400 | 0x3e
	Fread    = 0x0400 | 0x3f
	Fwrite   = 0x0400 | 0x40
	Fdelete  = 0x0400 | 0x41
	Fseek    = 0x0400 | 0x42
	Fattrib  = 0x0400 | 0x43
	Dgetpath = 0x0400 | 0x47
	Pexec    = 0x0400 | 0x4b
	Fsfirst  = 0x0400 | 0x4e
	Fsnext   = 0x0400 | 0x4f
	Frename  = 0x0400 | 0x56
	Fdatime  = 0x0400 | 0x57
)

// Commands private to the driver
const (
	SaveVectors = 0x0480 + iota
	Ping
	ShowVectorCall
	SetSharedVar
	ReentryLock
	ReentryUnlock
	DTAExist
	DTARelease
	ReadBuff
	WriteBuff
	WriteBuffCheck
	SaveBasepage
	SaveExecHeader
	Debug
)

// Offsets inside the shared window
const (
	OffToken              = 0x000
	OffSeed               = 0x004
	OffPingStatus         = 0x008
	OffOldGemdosTrap      = 0x00c
	OffReentryTrap        = 0x010
	OffTimeoutSec         = 0x014
	OffRTCStatus          = 0x018
	OffNetworkStatus      = 0x01c
	OffNetworkEnabled     = 0x020
	OffDTAFound           = 0x024
	OffDTAExist           = 0x028
	OffDTARelease         = 0x02c
	OffSetDpathStatus     = 0x030
	OffFopenHandle        = 0x034
	OffReadBytes          = 0x038
	OffWriteBytes         = 0x03c
	OffWriteChk           = 0x040
	OffWriteConfirmStatus = 0x044
	OffFcloseStatus       = 0x048
	OffDcreateStatus      = 0x04c
	OffDdeleteStatus      = 0x050
	OffFcreateHandle      = 0x054
	OffFdeleteStatus      = 0x058
	OffFseekStatus        = 0x05c
	OffFattribStatus      = 0x060
	OffFrenameStatus      = 0x064
	OffFdatetimeDate      = 0x068
	OffFdatetimeTime      = 0x06c
	OffFdatetimeStatus    = 0x070
	OffDfreeStatus        = 0x074
	OffDfreeStruct        = 0x078 // free clusters, clusters, sector size, sectors per cluster
	OffPexecMode          = 0x088
	OffPexecStackAddr     = 0x08c
	OffPexecFname         = 0x090
	OffPexecCmdline       = 0x094
	OffPexecEnvstr        = 0x098
	OffDTATransfer        = 0x100
	OffDefaultPath        = 0x140
	OffSharedVars         = 0x200
	OffExecPD             = 0x300
	OffExecHeader         = 0x400
	OffReadBuff           = 0x1000
)

// Shared variables
const (
	FirstFileDescriptorVar = shm.SharedFunctionsSize + iota
	DriveLetter
	DriveNumber
	FakeFloppy
)

const (
	// MaxRead is the size of the read buffer.
	MaxRead = 8192

	// MaxWrite is the largest chunk the host can send in one frame along
	// with the arguments and the checksum.
	MaxWrite = protocol.MaxPayload - 4 - 12 - 2

	DTASize        = 44
	PDSize         = 256
	ExecHeaderSize = 28
)

// Fattrib and Fdatime flags
const (
	inquire = 0
	set     = 1
)

var Layout = shm.Layout{
	Token:       OffToken,
	Seed:        OffSeed,
	SharedVars:  OffSharedVars,
	ReentryTrap: OffReentryTrap,
}

// Config is the part of the configuration used by the hard disk
// personality.
type Config struct {
	Root       string // folder on the storage emulated as drive
	Drive      byte   // drive letter, 'C' if zero
	BufferType uint32
	FakeFloppy bool
	Timeout    uint32 // seconds the host waits for the device

	// RTC reports the clock to the host, so its driver can set the time.
	RTC   bool
	Clock rtc.Clock

	Location *time.Location // of file times, time.Local if nil
}

// Server serves the GEMDOS calls of the emulated drive.
type Server struct {
	Controller *device.Controller
	Verbose    bool

	fs    storage.FS
	cfg   Config
	w     *shm.Window
	ready bool
	dpath string // default path in host notation
	files fdTable
	dtas  dtaTable
	buf   [protocol.MaxPayload]byte
}

func New(img *ris.Image, fsys storage.FS, cfg Config) *Server {
	if cfg.Drive == 0 {
		cfg.Drive = 'C'
	}
	cfg.Drive = byte(strings.ToUpper(string(cfg.Drive))[0])
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	w := shm.New(img, Layout)
	return &Server{
		Controller: device.New(w),
		fs:         fsys,
		cfg:        cfg,
		w:          w,
		dpath:      `\`,
	}
}

// Start initializes the shared window.
func (s *Server) Start() error {
	if s.cfg.Drive < 'A' || s.cfg.Drive > 'Z' {
		return device.ErrInvalidArgument
	}
	s.w.Clear(0, OffReadBuff)
	s.w.SetSharedVar(FirstFileDescriptorVar, FirstFileDescriptor)
	s.w.SetSharedVar(DriveLetter, uint32(s.cfg.Drive))
	s.w.SetSharedVar(DriveNumber, uint32(s.cfg.Drive-'A'))
	s.w.SetSharedVar(shm.BufferType, s.cfg.BufferType)
	s.w.SetSharedVar(FakeFloppy, boolVar(s.cfg.FakeFloppy))
	s.w.SetLong(OffTimeoutSec, s.cfg.Timeout)
	if s.cfg.RTC && s.cfg.Clock != nil {
		if _, ok := s.cfg.Clock.Now(); ok {
			s.w.SetWord(OffRTCStatus, 0xffff)
		}
	}
	s.Controller.RefreshSeed()
	s.Controller.Logf("gemdrive: drive %c: %s", s.cfg.Drive, s.root())
	return nil
}

func boolVar(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (s *Server) root() string {
	return path.Join("/", s.cfg.Root)
}

// local maps a file name given by the host to a path on the storage.
func (s *Server) local(name string) (string, error) {
	return resolve(s.fs, path.Join(s.root(), hostPath(name, s.dpath)))
}

// argPath returns the path argument following the registers.
func argPath(m *protocol.Message, i int) string {
	return decodeName([]byte(m.String(i, MaxPath)))
}

func (s *Server) status(off int, err error) {
	s.w.SetLong(off, Code(err).long())
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
	case Ping:
		s.ping(m)
	case ShowVectorCall:
		s.tracef("gemdrive: %s called", callName(m.Word(0)))
	case SetSharedVar:
		c.SetSharedVar(m)
		return
	case ReentryLock, ReentryUnlock:
		c.Reentry(m.Command == ReentryLock, m.Token())
		return
	case Debug:
		s.tracef("gemdrive: debug %#08x %#08x %#08x", m.Long(0), m.Long(2), m.Long(4))
	case Dgetdrv:
		s.tracef("gemdrive: Dgetdrv %d", m.Word(0))
	case Dfree:
		s.dfree(m)
	case Dgetpath:
		s.w.SetString(OffDefaultPath, string(encodeName(s.dpath)), MaxPath)
	case Dsetpath:
		s.dsetpath(m)
	case Dcreate:
		s.dcreate(m)
	case Ddelete:
		s.ddelete(m)
	case Fsetdta:
		if addr := m.Long(0); s.dtas.lookup(addr) == nil {
			s.dtas.insert(addr)
		}
	case DTAExist:
		addr := m.Long(0)
		if s.dtas.lookup(addr) == nil {
			addr = 0
		}
		s.w.SetLong(OffDTAExist, addr)
	case DTARelease:
		s.dtas.release(m.Long(0))
		s.w.Clear(OffDTATransfer, DTASize)
		s.w.SetLong(OffDTARelease, uint32(s.dtas.len()))
	case Fsfirst:
		s.fsfirst(m)
	case Fsnext:
		s.fsnext(m)
	case Fopen:
		s.fopen(m)
	case Fcreate:
		s.fcreate(m)
	case Fclose:
		fd := m.Word(0)
		err := s.files.close(fd)
		if err != nil && Code(err) != EIHNDL {
			s.Controller.Logf("gemdrive: close %d: %v", fd, err)
			err = EINTRN
		}
		s.status(OffFcloseStatus, err)
	case Fdelete:
		s.fdelete(m)
	case Fseek:
		s.fseek(m)
	case Fattrib:
		s.fattrib(m)
	case Frename:
		s.frename(m)
	case Fdatime:
		s.fdatime(m)
	case Fread, ReadBuff:
		s.read(m)
	case Fwrite, WriteBuff:
		if !s.write(m) {
			return
		}
	case WriteBuffCheck:
		// Offsets advance with every write, so there's nothing to confirm
		// but the handle.
		var err error
		if s.files.get(m.Word(0)) == nil {
			err = EIHNDL
		}
		s.status(OffWriteConfirmStatus, err)
	case Pexec:
		s.w.SetWord(OffPexecMode, m.Word(0))
		s.w.SetLong(OffPexecStackAddr, m.Long(2))
		s.w.SetLong(OffPexecFname, m.Long(4))
		s.w.SetLong(OffPexecCmdline, m.Long(6))
		s.w.SetLong(OffPexecEnvstr, m.Long(8))
	case SaveBasepage:
		s.copyArg(m, OffExecPD, PDSize)
	case SaveExecHeader:
		s.copyArg(m, OffExecHeader, ExecHeaderSize)
	default:
		c.Logf("gemdrive: unknown command %#04x", m.Command)
	}
	c.Publish(m.Token())
}

// copyArg stores the data following the registers in the window.
func (s *Server) copyArg(m *protocol.Message, off, size int) {
	n := min(size, max(int(m.Size)-16, 0))
	buf := s.buf[:n]
	m.Bytes(6, buf)
	s.w.SetBytes(off, buf)
}

// cartridgeVector reports whether a vector points into the cartridge
// already, i.e. it was saved before a warm reset of the host.
func cartridgeVector(v uint32) bool {
	return v >= ris.HostROM4 && v < ris.HostROM4+ris.Size
}

// saveVectors keeps the previous GEMDOS trap handler and patches it into
// the XBRA structure of the driver, so the driver can chain to it.
func (s *Server) saveVectors(m *protocol.Message) {
	old, xbra := m.LongHi(0), m.Long(2)
	s.tracef("gemdrive: old trap %#08x, xbra %#08x", old, xbra)
	if cartridgeVector(old) {
		return
	}
	s.w.SetLong(OffOldGemdosTrap, old)
	if xbra >= ris.HostROM4 && xbra+4 <= ris.HostROM4+ris.BankSize {
		s.w.Image().SetLong(ris.Bank0+int(xbra-ris.HostROM4), old)
	}
}

// ping reports whether the drive is ready. The first successful ping
// resets the state left over from before a reset of the host.
func (s *Server) ping(m *protocol.Message) {
	if !s.ready && s.fs != nil && isDir(s.fs, s.root()) {
		if err := s.files.closeAll(); err != nil {
			s.Controller.Logf("gemdrive: %v", err)
		}
		s.dtas.clear()
		s.dpath = `\`
		s.ready = true
	}
	var status uint16
	if s.ready {
		status = 1
	}
	s.w.SetWord(OffPingStatus, status)
}

func (s *Server) dfree(m *protocol.Message) {
	u, err := s.fs.Usage()
	if err != nil {
		s.Controller.Logf("gemdrive: dfree: %v", err)
		s.status(OffDfreeStatus, EINTRN)
		return
	}
	s.w.SetLong(OffDfreeStruct, uint32(u.Free))
	s.w.SetLong(OffDfreeStruct+4, uint32(u.Clusters))
	s.w.SetLong(OffDfreeStruct+8, storage.SectorSize)
	s.w.SetLong(OffDfreeStruct+12, uint32(u.ClusterSize/storage.SectorSize))
	s.status(OffDfreeStatus, nil)
}

func (s *Server) dsetpath(m *protocol.Message) {
	name := argPath(m, 6)
	drive, rest := splitDrive(name)
	if drive != 0 && drive != s.cfg.Drive {
		s.status(OffSetDpathStatus, EDRIVE)
		return
	}
	p := hostPath(rest, s.dpath)
	full, err := resolve(s.fs, path.Join(s.root(), p))
	if err != nil || !isDir(s.fs, full) {
		s.tracef("gemdrive: Dsetpath %q: not found", name)
		s.status(OffSetDpathStatus, EPTHNF)
		return
	}
	s.dpath = stPath(p)
	s.tracef("gemdrive: Dsetpath %q", s.dpath)
	s.status(OffSetDpathStatus, nil)
}

func (s *Server) dcreate(m *protocol.Message) {
	err := s.Controller.Critical(func() error {
		full, err := s.local(argPath(m, 6))
		if err != nil {
			return err
		}
		s.tracef("gemdrive: Dcreate %s", full)
		return s.fs.Mkdir(full)
	})
	s.status(OffDcreateStatus, err)
}

func (s *Server) ddelete(m *protocol.Message) {
	err := s.Controller.Critical(func() error {
		full, err := s.local(argPath(m, 6))
		switch {
		case err != nil:
			return err
		case !isDir(s.fs, full):
			return EPTHNF
		case full == s.root():
			return EACCDN
		}
		s.tracef("gemdrive: Ddelete %s", full)
		return s.fs.Remove(full)
	})
	s.status(OffDdeleteStatus, err)
}

// dosTime encodes t as MS-DOS date and time. Times before 1980 can't be
// represented.
func (s *Server) dosTime(t time.Time) (date, tod uint16) {
	t = t.In(s.cfg.Location)
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, s.cfg.Location)
	}
	v := rtc.MSDOSTime(t)
	return uint16(v >> 16), uint16(v)
}

// populate transfers a directory entry into the window in the layout of
// the host's DTA.
func (s *Server) populate(fi fs.FileInfo) {
	s.w.Clear(OffDTATransfer, DTASize)
	name := encodeName(ShortName(fi.Name()))
	attr := storage.AttrOf(fi)
	date, tod := s.dosTime(fi.ModTime())
	size := uint32(fi.Size())
	if fi.IsDir() {
		size = 0
	}
	var reserved [12]byte
	copy(reserved[:], name)
	s.w.SetBytes(OffDTATransfer, reserved[:])
	s.w.SetByte(OffDTATransfer+20, byte(attr))
	s.w.SetByte(OffDTATransfer+21, byte(attr))
	s.w.SetWord(OffDTATransfer+22, tod)
	s.w.SetWord(OffDTATransfer+24, date)
	s.w.SetLong(OffDTATransfer+26, size)
	var fname [14]byte
	copy(fname[:13], name)
	s.w.SetBytes(OffDTATransfer+30, fname[:])
	s.w.SetWord(OffDTAFound, 0)
}

// notFound ends a search of the DTA at addr with the code err.
func (s *Server) notFound(addr uint32, err Error) {
	s.dtas.release(addr)
	s.w.Clear(OffDTATransfer, DTASize)
	s.w.SetWord(OffDTAFound, uint16(err))
}

func (s *Server) fsfirst(m *protocol.Message) {
	addr, attr := m.Long(0), storage.Attr(m.Word(2))
	spec := argPath(m, 6)
	dir, pattern := path.Split(hostPath(spec, s.dpath))
	pattern = trimPattern(pattern)
	if attr&storage.Label == 0 {
		attr |= storage.Archive
	}
	s.tracef("gemdrive: Fsfirst %#08x %q attr %v", addr, spec, attr)

	var matches []fs.FileInfo
	err := s.Controller.Critical(func() error {
		full, err := resolve(s.fs, path.Join(s.root(), dir))
		if err != nil {
			return err
		}
		entries, err := s.fs.ReadDir(full)
		if err != nil {
			return EPTHNF
		}
		for _, fi := range entries {
			name := fi.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			if !match(pattern, name) && !match(pattern, ShortName(name)) {
				continue
			}
			if storage.AttrOf(fi)&attr == 0 {
				continue
			}
			matches = append(matches, fi)
		}
		return nil
	})
	switch {
	case err != nil:
		s.notFound(addr, Code(err))
	case len(matches) == 0:
		s.notFound(addr, EFILNF)
	default:
		st := s.dtas.insert(addr)
		st.attr = attr
		st.matches = matches
		fi, _ := st.pop()
		s.populate(fi)
	}
}

func (s *Server) fsnext(m *protocol.Message) {
	addr := m.Long(0)
	st := s.dtas.lookup(addr)
	if st == nil || !st.started() {
		s.notFound(addr, EINTRN)
		return
	}
	fi, ok := st.pop()
	if !ok {
		s.notFound(addr, ENMFIL)
		return
	}
	s.populate(fi)
}

// open adds a file to the descriptor table and returns its handle.
func (s *Server) open(name string, flag int) (fd uint16, err error) {
	err = s.Controller.Critical(func() error {
		full, err := s.local(name)
		if err != nil {
			return err
		}
		if fd, err = s.files.alloc(); err != nil {
			return err
		}
		f, err := s.fs.OpenFile(full, flag)
		if err != nil {
			return err
		}
		s.files.add(&openFile{fd: fd, path: full, file: f, writable: flag&(os.O_WRONLY|os.O_RDWR) != 0})
		s.tracef("gemdrive: open %s flag %#x: %d", full, flag, fd)
		return nil
	})
	return
}

func (s *Server) fopen(m *protocol.Message) {
	mode := m.Word(0)
	var flag int
	switch mode {
	case 0:
		flag = os.O_RDONLY
	case 1:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case 2:
		flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	default:
		s.status(OffFopenHandle, EACCDN)
		return
	}
	fd, err := s.open(argPath(m, 6), flag)
	if err != nil {
		s.status(OffFopenHandle, err)
		return
	}
	s.w.SetLong(OffFopenHandle, uint32(fd))
}

func (s *Server) fcreate(m *protocol.Message) {
	attr := storage.Attr(m.Word(0)) & (storage.ReadOnly | storage.Hidden | storage.System)
	name := argPath(m, 6)
	fd, err := s.open(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		s.status(OffFcreateHandle, err)
		return
	}
	if attr != 0 {
		f := s.files.get(fd)
		if err := s.fs.Chmod(f.path, attr|storage.Archive); err != nil {
			s.tracef("gemdrive: Fcreate %s attr %v: %v", f.path, attr, err)
		}
	}
	s.w.SetLong(OffFcreateHandle, uint32(fd))
}

func (s *Server) fdelete(m *protocol.Message) {
	err := s.Controller.Critical(func() error {
		full, err := s.local(argPath(m, 6))
		if err != nil {
			return err
		}
		if isDir(s.fs, full) {
			return EACCDN
		}
		if f := s.files.byPath(full); f != nil {
			if err := s.files.close(f.fd); err != nil {
				return EINTRN
			}
		}
		s.tracef("gemdrive: Fdelete %s", full)
		err = s.fs.Remove(full)
		if Code(err) == EFILNF {
			return nil
		}
		return err
	})
	s.status(OffFdeleteStatus, err)
}

func (s *Server) fseek(m *protocol.Message) {
	fd, off, whence := m.Word(0), int64(int32(m.Long(2))), m.Word(4)
	f := s.files.get(fd)
	if f == nil {
		s.status(OffFseekStatus, EIHNDL)
		return
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = off
	case io.SeekCurrent:
		pos = f.offset + off
	case io.SeekEnd:
		size, err := f.file.Seek(0, io.SeekEnd)
		if err != nil {
			s.status(OffFseekStatus, EINTRN)
			return
		}
		pos = size + off
	default:
		s.status(OffFseekStatus, EINVFN)
		return
	}
	f.offset = max(pos, 0)
	s.w.SetLong(OffFseekStatus, uint32(f.offset))
}

func (s *Server) fattrib(m *protocol.Message) {
	flag, attr := m.Word(0), storage.Attr(m.Word(2))
	err := s.Controller.Critical(func() error {
		full, err := s.local(argPath(m, 6))
		if err != nil {
			return err
		}
		fi, err := s.fs.Stat(full)
		if err != nil {
			return EFILNF
		}
		s.w.SetLong(OffFattribStatus, uint32(storage.AttrOf(fi)))
		if flag == inquire {
			return nil
		}
		s.tracef("gemdrive: Fattrib %s %v", full, attr)
		if err := s.fs.Chmod(full, attr); err != nil {
			return EACCDN
		}
		return nil
	})
	if err != nil {
		s.status(OffFattribStatus, err)
	}
}

func (s *Server) frename(m *protocol.Message) {
	src, dst := argPath(m, 6), argPath(m, 6+MaxPath/2)
	sd, _ := splitDrive(src)
	dd, _ := splitDrive(dst)
	if sd == 0 {
		sd = s.cfg.Drive
	}
	if dd == 0 {
		dd = s.cfg.Drive
	}
	if sd != dd {
		s.status(OffFrenameStatus, EPTHNF)
		return
	}
	err := s.Controller.Critical(func() error {
		from, err := s.local(src)
		if err != nil {
			return err
		}
		to, err := s.local(dst)
		if err != nil {
			return err
		}
		s.tracef("gemdrive: Frename %s %s", from, to)
		return s.fs.Rename(from, to)
	})
	s.status(OffFrenameStatus, err)
}

func (s *Server) fdatime(m *protocol.Message) {
	flag, fd := m.Word(0), m.Word(2)
	date, tod := m.Word(4), m.Word(5)
	s.w.SetLong(OffFdatetimeDate, 0)
	s.w.SetLong(OffFdatetimeTime, 0)
	f := s.files.get(fd)
	if f == nil {
		s.status(OffFdatetimeStatus, EIHNDL)
		return
	}
	err := s.Controller.Critical(func() error {
		if flag == inquire {
			fi, err := s.fs.Stat(f.path)
			if err != nil {
				return EFILNF
			}
			date, tod := s.dosTime(fi.ModTime())
			s.w.SetLong(OffFdatetimeDate, uint32(date))
			s.w.SetLong(OffFdatetimeTime, uint32(tod))
			return nil
		}
		t := rtc.FromMSDOS(uint32(date)<<16|uint32(tod), s.cfg.Location)
		if err := s.fs.Chtimes(f.path, t); err != nil {
			return EFILNF
		}
		return nil
	})
	s.status(OffFdatetimeStatus, err)
}

// transferSize returns the number of bytes to transfer. The host passes
// the size of the call and the bytes still pending, the latter takes
// precedence.
func transferSize(m *protocol.Message) int {
	n := m.Long(4)
	if n == 0 {
		n = m.Long(2)
	}
	return int(min(n, MaxRead))
}

// read fills the read buffer from the current offset of a file.
func (s *Server) read(m *protocol.Message) {
	fd := m.Word(0)
	f := s.files.get(fd)
	if f == nil {
		s.status(OffReadBytes, EIHNDL)
		return
	}
	buf := s.w.Bytes(OffReadBuff, MaxRead)[:transferSize(m)]
	var n int
	err := s.Controller.Critical(func() (err error) {
		if _, err = f.file.Seek(f.offset, io.SeekStart); err != nil {
			return err
		}
		n, err = io.ReadFull(f.file, buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = nil
		}
		return err
	})
	if err != nil {
		s.Controller.Logf("gemdrive: read %d: %v", fd, err)
		s.status(OffReadBytes, EINTRN)
		return
	}
	ris.Swap(buf[:n+n&1])
	f.offset += int64(n)
	s.tracef("gemdrive: read %d: %d bytes, offset %d", fd, n, f.offset)
	s.w.SetLong(OffReadBytes, uint32(n))
}

// write writes the data following the registers at the current offset of
// a file. The checksum of the data is always published in OffWriteChk, which
// the host compares against its own before confirming with WriteBuffCheck.
// A frame may also carry the checksum as the word after the data. If it
// doesn't match, the command is rejected and write reports false.
func (s *Server) write(m *protocol.Message) bool {
	fd := m.Word(0)
	f := s.files.get(fd)
	if f == nil {
		s.status(OffWriteBytes, EIHNDL)
		return true
	}
	avail := max(int(m.Size)-16, 0)
	n := min(transferSize(m), avail, MaxWrite)
	data := s.buf[:n]
	m.Bytes(6, data)
	sum := ris.Sum16(data)
	if padded := n + n&1; avail == padded+2 {
		if chk := m.Word(6 + padded/2); chk != sum {
			s.Controller.Logf("gemdrive: write %d: %v", fd, device.ErrChecksumMismatch)
			s.Controller.Reject(m.Token())
			return false
		}
	}
	if !f.writable {
		s.status(OffWriteBytes, EACCDN)
		return true
	}
	var written int
	err := s.Controller.Critical(func() (err error) {
		if _, err = f.file.Seek(f.offset, io.SeekStart); err != nil {
			return err
		}
		written, err = f.file.Write(data)
		return err
	})
	f.offset += int64(written)
	if err != nil {
		s.Controller.Logf("gemdrive: write %d: %v", fd, err)
		s.status(OffWriteBytes, EINTRN)
		return true
	}
	s.tracef("gemdrive: write %d: %d bytes, offset %d", fd, written, f.offset)
	s.w.SetLong(OffWriteChk, uint32(sum))
	s.w.SetLong(OffWriteBytes, uint32(written))
	return true
}

// Close closes all open files.
func (s *Server) Close() error {
	s.dtas.clear()
	return s.files.closeAll()
}

var _ device.Service = (*Server)(nil)
