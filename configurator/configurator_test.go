package configurator_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/clktmr/sidecart/bus"
	"github.com/clktmr/sidecart/config"
	"github.com/clktmr/sidecart/configurator"
	"github.com/clktmr/sidecart/flash"
	"github.com/clktmr/sidecart/host"
	"github.com/clktmr/sidecart/ris"
	"github.com/clktmr/sidecart/storage"
)

type env struct {
	srv   *configurator.Server
	host  *host.Computer
	flash *flash.Mem
	root  string
}

func setup(t *testing.T, files map[string][]byte) *env {
	root := t.TempDir()
	for name, data := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	f := flash.NewMem(flash.Size)
	img := ris.New()
	srv := configurator.New(img, storage.Dir(root), config.New(f), f)
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	var clk host.Clock
	b, err := bus.Init(img, func(off uint32) {
		srv.Controller.Observe(uint16(off), clk.Now())
	}, bus.WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	h := host.New(b, configurator.OffToken, func() bool { return srv.Controller.Step(srv) })
	return &env{srv, h, f, root}
}

// readList reads a file list from bank 0 the way the host's menu does.
func readList(h *host.Computer) (names []string, ok bool) {
	var cur []byte
	for off := 0; off < configurator.DataSize; off += 2 {
		w := h.ReadROM(off)
		if len(cur) == 0 && w == 0 {
			return names, h.ReadROM(off+2) == 0xffff
		}
		for _, ch := range []byte{byte(w >> 8), byte(w)} {
			if ch == 0 {
				if len(cur) > 0 {
					names = append(names, string(cur))
				}
				cur = nil
				continue
			}
			cur = append(cur, ch)
		}
	}
	return names, false
}

func entry(key, value string) []uint16 {
	b := make([]byte, config.EntrySize)
	copy(b, key)
	copy(b[config.KeySize+2:], value)
	return host.Bytes(b)
}

func TestListFiles(t *testing.T) {
	e := setup(t, map[string][]byte{
		"floppies/b.st":     {0},
		"floppies/a.st":     {0},
		"floppies/.hidden":  {0},
		"floppies/sub/x.st": {0},
		"roms/tos.img":      {0},
	})
	tests := map[string]struct {
		cmd  uint16
		want []string
	}{
		"floppies": {configurator.ListFloppies, []string{"a.st", "b.st"}},
		"roms":     {configurator.ListROMs, []string{"tos.img"}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if err := e.host.Call(tc.cmd); err != nil {
				t.Fatal(err)
			}
			names, ok := readList(e.host)
			if !ok {
				t.Fatalf("expected end mark")
			}
			if len(names) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, names)
			}
			for i := range names {
				if names[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, names)
				}
			}
		})
	}
}

func TestGetPutConfig(t *testing.T) {
	e := setup(t, nil)
	if err := e.host.Call(configurator.PutConfigString, entry(config.Hostname, "falcon")...); err != nil {
		t.Fatal(err)
	}
	if err := e.host.Call(configurator.PutConfigInteger, entry(config.RTCUTCOffset, "2")...); err != nil {
		t.Fatal(err)
	}
	if err := e.host.Call(configurator.PutConfigBool, entry(config.GemdriveRTC, "false")...); err != nil {
		t.Fatal(err)
	}
	if err := e.host.Call(configurator.PutConfigInteger, entry(config.RTCUTCOffset, "two")...); err == nil {
		t.Fatalf("expected invalid integer to be rejected")
	}
	if err := e.host.Call(configurator.GetConfig); err != nil {
		t.Fatal(err)
	}

	if got := uint32(e.host.ReadROM(0))<<16 | uint32(e.host.ReadROM(2)); got != config.Magic|config.Version {
		t.Fatalf("expected magic %#x, got %#x", config.Magic|config.Version, got)
	}
	got := map[string]string{}
	for off := 4; ; off += config.EntrySize {
		b := make([]byte, config.EntrySize)
		for i := 0; i < len(b); i += 2 {
			w := e.host.ReadROM(off + i)
			b[i], b[i+1] = byte(w>>8), byte(w)
		}
		if b[0] == 0 {
			break
		}
		key := string(bytes.TrimRight(b[:config.KeySize], "\x00"))
		got[key] = string(bytes.TrimRight(b[config.KeySize+2:], "\x00"))
	}
	want := map[string]string{
		config.Hostname:     "falcon",
		config.RTCUTCOffset: "2",
		config.GemdriveRTC:  "false",
		config.BootFeature:  "CONFIGURATOR",
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("expected %s=%s, got %s", key, value, got[key])
		}
	}
	if e.srv.Done() != configurator.None {
		t.Fatalf("expected configurator to keep running, got %v", e.srv.Done())
	}
}

func TestSaveConfig(t *testing.T) {
	e := setup(t, nil)
	if err := e.host.Call(configurator.PutConfigString, entry(config.Hostname, "mega")...); err != nil {
		t.Fatal(err)
	}
	if err := e.host.Call(configurator.SaveConfig); err != nil {
		t.Fatal(err)
	}
	if e.srv.Done() != configurator.Saved {
		t.Fatalf("expected %v, got %v", configurator.Saved, e.srv.Done())
	}
	s, err := config.Load(e.flash)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.String(config.Hostname); got != "mega" {
		t.Fatalf("expected mega, got %s", got)
	}
}

func TestLoadROM(t *testing.T) {
	rom := make([]byte, flash.ROMSize/2+4)
	for i := 4; i < len(rom); i++ {
		rom[i] = byte(i)
	}
	e := setup(t, map[string][]byte{"roms/game.stc": rom})

	if err := e.host.Call(configurator.LoadROM, 1); err == nil {
		t.Fatalf("expected load without list to fail")
	}
	if err := e.host.Call(configurator.ListROMs); err != nil {
		t.Fatal(err)
	}
	if err := e.host.Call(configurator.LoadROM, 2); err == nil {
		t.Fatalf("expected index out of range to fail")
	}
	if err := e.host.Call(configurator.LoadROM, 1); err != nil {
		t.Fatal(err)
	}
	if e.srv.Done() != configurator.ROMLoaded {
		t.Fatalf("expected %v, got %v", configurator.ROMLoaded, e.srv.Done())
	}
	got := e.flash.Bytes()[flash.ROMOffset : flash.ROMOffset+flash.ROMSize]
	if !bytes.Equal(got[:len(rom)-4], rom[4:]) {
		t.Fatalf("expected header to be stripped")
	}
	if got[len(rom)-4] != 0xff {
		t.Fatalf("expected erased remainder, got %#x", got[len(rom)-4])
	}
	s, _ := config.Load(e.flash)
	if got := s.String(config.BootFeature); got != "ROM_EMULATOR" {
		t.Fatalf("expected ROM_EMULATOR, got %s", got)
	}
}

func TestSelectFloppy(t *testing.T) {
	tests := map[string]struct {
		cmd     uint16
		files   []string
		want    string
		rwExist bool
	}{
		"readOnly":  {configurator.LoadFloppyRO, []string{"disk.st"}, "disk.st", false},
		"readWrite": {configurator.LoadFloppyRW, []string{"disk.st"}, "disk.st.rw", true},
		"twin":      {configurator.LoadFloppyRW, []string{"disk.st.rw"}, "disk.st.rw", true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			files := map[string][]byte{}
			for _, f := range tc.files {
				files["floppies/"+f] = []byte("image")
			}
			e := setup(t, files)
			if err := e.host.Call(configurator.ListFloppies); err != nil {
				t.Fatal(err)
			}
			if err := e.host.Call(tc.cmd, 1); err != nil {
				t.Fatal(err)
			}
			s, _ := config.Load(e.flash)
			if got := s.String(config.FloppyImageA); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if got := s.String(config.BootFeature); got != "FLOPPY_EMULATOR" {
				t.Fatalf("expected FLOPPY_EMULATOR, got %s", got)
			}
			_, err := os.Stat(filepath.Join(e.root, "floppies", "disk.st.rw"))
			if exists := err == nil; exists != tc.rwExist {
				t.Fatalf("expected writable copy %v, got %v", tc.rwExist, exists)
			}
		})
	}
}

func TestNetworkUnsupported(t *testing.T) {
	e := setup(t, nil)
	if err := e.host.Call(configurator.LaunchScanNetworks); err == nil {
		t.Fatalf("expected network command to be rejected")
	}
}
