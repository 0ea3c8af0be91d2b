// Package rtc implements the real-time clock personality.
//
// Two dialects exist. The native one answers ReadTime commands through the
// command window with the time in the layout of the host's keyboard
// processor clock. The Dallas dialect emulates a DS1216 clock chip, which
// the host talks to with plain reads of the ROM.
package rtc

import (
	"fmt"
	"strings"
	"time"

	"github.com/clktmr/sidecart/debug"
	"github.com/clktmr/sidecart/device"
	"github.com/clktmr/sidecart/protocol"
	"github.com/clktmr/sidecart/ris"
	"github.com/clktmr/sidecart/shm"
)

// Commands
const (
	TestNTP = 0x0300 + iota
	ReadTime
	SaveVectors
	ReentryLock
	ReentryUnlock
	SetSharedVar
)

// Offsets inside the shared window
const (
	OffToken         = 0
	OffSeed          = 4
	OffNTPSuccess    = 8
	OffDatetimeBCD   = 12
	OffDatetimeMSDOS = 20
	OffXBIOSTrap     = 28
	OffReentryTrap   = 32
	OffY2KPatch      = 36
	OffSharedVars    = 44
)

// y2kAddend moves a year of the 21st century into the range the host's
// 1980 based date encoding accepts.
var y2kAddend = ToBCD((2000 - 1980) + (80 - 30))

var Layout = shm.Layout{
	Token:       OffToken,
	Seed:        OffSeed,
	SharedVars:  OffSharedVars,
	ReentryTrap: OffReentryTrap,
}

// Kind selects the dialect.
type Kind uint8

const (
	Native Kind = iota
	DallasKind
)

func (k Kind) String() string {
	switch k {
	case Native:
		return "SIDECART"
	case DallasKind:
		return "DALLAS"
	}
	return "unknown"
}

// ParseKind parses the RTC_TYPE configuration value.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(s) {
	case "SIDECART", "":
		return Native, nil
	case "DALLAS":
		return DallasKind, nil
	}
	return 0, fmt.Errorf("rtc: unknown type %q", s)
}

type Config struct {
	Kind     Kind
	Y2KPatch bool
	Lead     int // lead of the Dallas time bits, zero means DallasLead
}

// Server serves the RTC commands.
type Server struct {
	Controller *device.Controller
	Dallas     *Dallas
	Verbose    bool

	clock Clock
	cfg   Config
	w     *shm.Window
}

func New(img *ris.Image, clock Clock, cfg Config) *Server {
	w := shm.New(img, Layout)
	s := &Server{
		Controller: device.New(w),
		Dallas:     NewDallas(img),
		clock:      clock,
		cfg:        cfg,
		w:          w,
	}
	if cfg.Lead != 0 {
		s.Dallas.Lead = cfg.Lead
	}
	s.Controller.Tick = s.tick
	return s
}

// Start initializes the shared window.
func (s *Server) Start() {
	s.w.Clear(0, OffSharedVars+4*shm.MaxSharedVars)
	var y2k uint32
	if s.cfg.Y2KPatch {
		y2k = 0xffffffff
	}
	s.w.SetLong(OffY2KPatch, y2k)
	s.w.SetReentryTrap(false)
	s.Controller.RefreshSeed()
	s.tick()
}

func (s *Server) tick() {
	if s.cfg.Kind != DallasKind {
		return
	}
	if t, ok := s.clock.Now(); ok {
		s.Dallas.Update(t)
	}
}

// Observe is the bus observer of the RTC personality.
//
//go:nosplit
func (s *Server) Observe(off uint32, now int64) {
	if s.cfg.Kind == DallasKind {
		s.Dallas.Observe(off, now)
		return
	}
	s.Controller.Observe(uint16(off), now)
}

// Serve implements device.Service.
func (s *Server) Serve(c *device.Controller, m *protocol.Message) {
	switch m.Command {
	case TestNTP:
		var ok uint16
		if _, set := s.clock.Now(); set {
			ok = 0xffff
		}
		s.w.SetWord(OffNTPSuccess, ok)
		c.Publish(m.Token())
	case ReadTime:
		t, ok := s.clock.Now()
		if !ok {
			c.Logf("rtc: clock not set")
			c.Reject(m.Token())
			return
		}
		s.setDatetime(t)
		c.Publish(m.Token())
	case SaveVectors:
		s.w.SetLong(OffXBIOSTrap, m.LongHi(0))
		c.Publish(m.Token())
	case ReentryLock:
		c.Reentry(true, m.Token())
	case ReentryUnlock:
		c.Reentry(false, m.Token())
	case SetSharedVar:
		c.SetSharedVar(m)
	default:
		c.Logf("rtc: unknown command %#04x", m.Command)
	}
}

// IKBDTime encodes t like the host's keyboard processor reports the time:
// the packet header followed by year, month, day, hour, minute and second
// in BCD.
func IKBDTime(t time.Time, y2k bool) [8]byte {
	year := ToBCD(uint8(t.Year() % 100))
	if y2k {
		year = AddBCD(year, y2kAddend)
	}
	return [8]byte{
		0x1b,
		year,
		ToBCD(uint8(t.Month())),
		ToBCD(uint8(t.Day())),
		ToBCD(uint8(t.Hour())),
		ToBCD(uint8(t.Minute())),
		ToBCD(uint8(t.Second())),
		0,
	}
}

// MSDOSTime encodes t as MS-DOS date in the high and time in the low word.
func MSDOSTime(t time.Time) uint32 {
	date := uint32(t.Year()-1980)<<9 | uint32(t.Month())<<5 | uint32(t.Day())
	tod := uint32(t.Hour())<<11 | uint32(t.Minute())<<5 | uint32(t.Second()/2)
	return date<<16 | tod
}

func (s *Server) setDatetime(t time.Time) {
	// EmuTOS reports a negative version and handles years past 2000 itself.
	version := int16(s.w.SharedVar(shm.SVersion))
	y2k := s.cfg.Y2KPatch && version >= 0
	if !y2k {
		s.w.SetLong(OffY2KPatch, 0)
	}
	debug.Printf("rtc: %v, gemdos %#x, y2k %v", t, uint16(version), y2k)
	bcd := IKBDTime(t, y2k)
	s.w.SetBytes(OffDatetimeBCD, bcd[:])
	s.w.SetLong(OffDatetimeMSDOS, MSDOSTime(t))
}

var _ device.Service = (*Server)(nil)

// FromMSDOS decodes an MS-DOS date and time as returned by MSDOSTime.
func FromMSDOS(v uint32, loc *time.Location) time.Time {
	date, tod := v>>16, v&0xffff
	return time.Date(int(date>>9)+1980, time.Month(date>>5&0x0f), int(date&0x1f),
		int(tod>>11), int(tod>>5&0x3f), int(tod&0x1f)*2, 0, loc)
}
