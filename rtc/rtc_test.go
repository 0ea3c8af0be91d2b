package rtc_test

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/clktmr/sidecart/bus"
	"github.com/clktmr/sidecart/host"
	"github.com/clktmr/sidecart/ris"
	"github.com/clktmr/sidecart/rtc"
	"github.com/clktmr/sidecart/shm"
)

type fixedClock struct {
	t  time.Time
	ok bool
}

func (c *fixedClock) Now() (time.Time, bool) { return c.t, c.ok }
func (c *fixedClock) Set(t time.Time)        { c.t, c.ok = t, true }

var friday = time.Date(2024, 5, 17, 13, 45, 30, 0, time.UTC)

func setup(t *testing.T, clk rtc.Clock, cfg rtc.Config) (*rtc.Server, *host.Computer, *host.Clock) {
	img := ris.New()
	srv := rtc.New(img, clk, cfg)
	srv.Start()
	var busclk host.Clock
	b, err := bus.Init(img, func(off uint32) {
		srv.Observe(off, busclk.Now())
	}, bus.WithClock(busclk.Now))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	h := host.New(b, rtc.OffToken, func() bool { return srv.Controller.Step(srv) })
	return srv, h, &busclk
}

func TestBCD(t *testing.T) {
	tests := map[string]struct {
		got, expected uint8
	}{
		"to":        {rtc.ToBCD(59), 0x59},
		"from":      {rtc.FromBCD(0x59), 59},
		"add":       {rtc.AddBCD(0x19, 0x01), 0x20},
		"add y2k":   {rtc.AddBCD(0x24, 0x70), 0x94},
		"add wrap":  {rtc.AddBCD(0x99, 0x01), 0x00},
		"add carry": {rtc.AddBCD(0x30, 0x70), 0x00},
		"sub":       {rtc.SubBCD(0x20, 0x01), 0x19},
		"sub wrap":  {rtc.SubBCD(0x00, 0x01), 0x99},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if tc.got != tc.expected {
				t.Fatalf("expected %#02x, got %#02x", tc.expected, tc.got)
			}
		})
	}
}

func TestReadTime(t *testing.T) {
	tests := map[string]struct {
		y2k     bool
		version uint32
		year    byte
	}{
		"tos":     {true, 0x0104, 0x94},
		"emutos":  {true, 0xffff, 0x24},
		"y2k off": {false, 0x0104, 0x24},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, h, _ := setup(t, &fixedClock{friday, true}, rtc.Config{Y2KPatch: tc.y2k})
			err := h.Call(rtc.SetSharedVar, host.Join(host.Register(shm.SVersion), host.Register(tc.version))...)
			if err != nil {
				t.Fatal(err)
			}
			if err := h.Call(rtc.ReadTime); err != nil {
				t.Fatal(err)
			}
			expected := []byte{0x1b, tc.year, 0x05, 0x17, 0x13, 0x45, 0x30, 0x00}
			if got := h.ReadBytes(rtc.OffDatetimeBCD, 8); string(got) != string(expected) {
				t.Fatalf("expected % x, got % x", expected, got)
			}
			date := uint32(44<<9 | 5<<5 | 17)
			tod := uint32(13<<11 | 45<<5 | 15)
			if got := h.Read32(rtc.OffDatetimeMSDOS); got != date<<16|tod {
				t.Fatalf("expected %#x, got %#x", date<<16|tod, got)
			}
			y2k := h.Read32(rtc.OffY2KPatch) != 0
			if y2k != (tc.year == 0x94) {
				t.Fatalf("unexpected y2k patch %v", y2k)
			}
		})
	}
}

func TestClockNotSet(t *testing.T) {
	_, h, _ := setup(t, &fixedClock{}, rtc.Config{})
	if err := h.Call(rtc.TestNTP); err != nil {
		t.Fatal(err)
	}
	if v := h.Read16(rtc.OffNTPSuccess); v != 0 {
		t.Fatalf("expected 0, got %#x", v)
	}
	if err := h.Call(rtc.ReadTime); !errors.Is(err, host.ErrTimeout) {
		t.Fatalf("expected %v, got %v", host.ErrTimeout, err)
	}
}

func TestNativeCommands(t *testing.T) {
	_, h, _ := setup(t, &fixedClock{friday, true}, rtc.Config{})
	if err := h.Call(rtc.TestNTP); err != nil {
		t.Fatal(err)
	}
	if v := h.Read16(rtc.OffNTPSuccess); v != 0xffff {
		t.Fatalf("expected %#x, got %#x", 0xffff, v)
	}
	if err := h.Call(rtc.SaveVectors, host.Long(0x00e01234)...); err != nil {
		t.Fatal(err)
	}
	if v := h.Read32(rtc.OffXBIOSTrap); v != 0x00e01234 {
		t.Fatalf("expected %#x, got %#x", 0x00e01234, v)
	}
	if err := h.Call(rtc.ReentryLock); err != nil {
		t.Fatal(err)
	}
	if v := h.Read16(rtc.OffReentryTrap); v != 0xffff {
		t.Fatalf("expected locked trap, got %#x", v)
	}
	if err := h.Call(rtc.ReentryUnlock); err != nil {
		t.Fatal(err)
	}
	if v := h.Read16(rtc.OffReentryTrap); v != 0 {
		t.Fatalf("expected unlocked trap, got %#x", v)
	}
}

func magicSequence() []uint32 {
	seq := []uint32{0, 0}
	for i := range 64 {
		if uint64(rtc.DallasMagic)>>i&1 != 0 {
			seq = append(seq, rtc.DallasOne)
		} else {
			seq = append(seq, rtc.DallasZero)
		}
	}
	return seq
}

// readDallas unlocks the clock and returns the 8 bytes read from it.
func readDallas(h *host.Computer) (b [8]byte) {
	for _, addr := range magicSequence() {
		h.Bus.Read(ris.HostROM3 + addr)
	}
	for i := range 64 {
		w := h.Bus.Read(ris.HostROM3 + rtc.DallasRead)
		if w&0xff == 0xff {
			b[i/8] |= 1 << (i % 8)
		}
	}
	return
}

func TestDallas(t *testing.T) {
	srv, h, _ := setup(t, &fixedClock{friday, true}, rtc.Config{Kind: rtc.DallasKind, Lead: 1})
	expected := [8]byte{0x00, 0x30, 0x45, 0x13, 0x05, 0x17, 0x05, 0x24}
	if got := readDallas(h); got != expected {
		t.Fatalf("expected % x, got % x", expected, got)
	}
	if n := srv.Dallas.Matched(); n != 0 {
		t.Fatalf("expected reset after 64 reads, got %d", n)
	}

	// A second read sees the updated time.
	srv.Controller.Step(srv)
	if got := readDallas(h); got != expected {
		t.Fatalf("expected % x, got % x", expected, got)
	}
}

func TestDallasGap(t *testing.T) {
	srv, h, clk := setup(t, &fixedClock{friday, true}, rtc.Config{Kind: rtc.DallasKind, Lead: 1})
	seq := magicSequence()
	for _, addr := range seq[:30] {
		h.Bus.Read(ris.HostROM3 + addr)
	}
	clk.Advance(rtc.DallasResetGap + 1)
	for _, addr := range seq[30:] {
		h.Bus.Read(ris.HostROM3 + addr)
	}
	if n := srv.Dallas.Matched(); n >= len(seq) {
		t.Fatalf("expected no match after gap, got %d", n)
	}
}

func TestDallasMismatch(t *testing.T) {
	srv, h, _ := setup(t, &fixedClock{friday, true}, rtc.Config{Kind: rtc.DallasKind})
	seq := magicSequence()
	seq[40] ^= 2 // flip one bit
	for _, addr := range seq {
		h.Bus.Read(ris.HostROM3 + addr)
	}
	if n := srv.Dallas.Matched(); n >= len(seq) {
		t.Fatalf("expected no match, got %d", n)
	}
	if w := h.Bus.Read(ris.HostROM3 + rtc.DallasRead); w != 0 {
		t.Fatalf("expected untouched window, got %#x", w)
	}
}

func TestParseKind(t *testing.T) {
	for s, expected := range map[string]rtc.Kind{"DALLAS": rtc.DallasKind, "dallas": rtc.DallasKind, "SIDECART": rtc.Native, "": rtc.Native} {
		if k, err := rtc.ParseKind(s); err != nil || k != expected {
			t.Errorf("%q: expected %v, got %v %v", s, expected, k, err)
		}
	}
	if _, err := rtc.ParseKind("RP5C15"); err == nil {
		t.Error("expected error")
	}
}

func ntpResponse(t time.Time) []byte {
	b := make([]byte, rtc.NTPMsgLen)
	b[0] = 0x24 // version 4, server
	b[1] = 2
	binary.BigEndian.PutUint32(b[40:], uint32(t.Unix()+2208988800))
	return b
}

func TestParseNTPResponse(t *testing.T) {
	got, err := rtc.ParseNTPResponse(ntpResponse(friday))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(friday) {
		t.Fatalf("expected %v, got %v", friday, got)
	}
	bad := ntpResponse(friday)
	bad[1] = 0 // kiss of death
	if _, err := rtc.ParseNTPResponse(bad); !errors.Is(err, rtc.ErrBadResponse) {
		t.Fatalf("expected %v, got %v", rtc.ErrBadResponse, err)
	}
}

func TestSNTP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skip(err)
	}
	defer conn.Close()
	go func() {
		buf := make([]byte, 128)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil || n != rtc.NTPMsgLen || buf[0] != 0x1b {
			return
		}
		conn.WriteTo(ntpResponse(friday), addr)
	}()

	port := conn.LocalAddr().(*net.UDPAddr).Port
	s := rtc.SNTP{Host: "127.0.0.1", Port: port, Timeout: time.Second}
	clk := &rtc.SoftClock{Offset: 2 * time.Hour}
	if err := s.Sync(context.Background(), clk); err != nil {
		t.Fatal(err)
	}
	now, ok := clk.Now()
	if !ok {
		t.Fatal("clock not set")
	}
	if d := now.Sub(friday.Add(2 * time.Hour)); d < 0 || d > time.Second {
		t.Fatalf("unexpected time %v", now)
	}
}
