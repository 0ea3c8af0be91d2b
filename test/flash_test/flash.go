//go:build rp2040

package flash_test

import (
	"bytes"
	"testing"

	"github.com/clktmr/sidecart/config"
	"github.com/clktmr/sidecart/flash"
)

// preserve restores the configuration sector after the test.
func preserve(tb testing.TB) {
	saved := make([]byte, flash.ConfigSize)
	if _, err := (flash.Internal{}).ReadAt(saved, flash.ConfigOffset); err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := flash.Write(flash.Internal{}, flash.ConfigOffset, saved); err != nil {
			tb.Error("restore:", err)
		}
	})
}

func TestInternal(t *testing.T) {
	preserve(t)
	f := flash.Internal{}

	pattern := make([]byte, flash.SectorSize)
	for i := range pattern {
		pattern[i] = byte(i * 7)
	}
	if err := flash.Write(f, flash.ConfigOffset, pattern); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(pattern))
	if _, err := f.ReadAt(got, flash.ConfigOffset); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pattern) {
		t.Fatalf("expected pattern, got % x", got[:16])
	}

	if err := f.Erase(flash.ConfigOffset, flash.SectorSize); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ReadAt(got, flash.ConfigOffset); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0xff}, len(got))) {
		t.Fatalf("expected erased sector, got % x", got[:16])
	}

	if err := f.Erase(flash.ConfigOffset+1, flash.SectorSize); err == nil {
		t.Fatalf("expected unaligned erase to fail")
	}
}

func TestConfig(t *testing.T) {
	preserve(t)
	s := config.New(flash.Internal{})
	s.PutString(config.Hostname, "sidecart-test")
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	l, err := config.Load(flash.Internal{})
	if err != nil {
		t.Fatal(err)
	}
	if got := l.String(config.Hostname); got != "sidecart-test" {
		t.Fatalf("expected sidecart-test, got %s", got)
	}
}

func BenchmarkRead(b *testing.B) {
	buf := make([]byte, flash.ROMSize)
	b.SetBytes(int64(len(buf)))
	for range b.N {
		(flash.Internal{}).ReadAt(buf, flash.ROMOffset)
	}
}

func BenchmarkWrite(b *testing.B) {
	preserve(b)
	buf := make([]byte, flash.SectorSize)
	b.SetBytes(int64(len(buf)))
	for range b.N {
		flash.Write(flash.Internal{}, flash.ConfigOffset, buf)
	}
}
