package flash

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func testNOR(t *testing.T, f Flash) {
	if err := f.Erase(0, SectorSize); err != nil {
		t.Fatal(err)
	}
	page := bytes.Repeat([]byte{0xf0}, PageSize)
	if err := f.Program(0, page); err != nil {
		t.Fatal(err)
	}
	// programming can only clear bits
	if err := f.Program(0, bytes.Repeat([]byte{0x3c}, PageSize)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, PageSize+1)
	if _, err := f.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x30 || buf[PageSize-1] != 0x30 {
		t.Fatalf("expected %#x, got %#x", 0x30, buf[0])
	}
	if buf[PageSize] != 0xff {
		t.Fatalf("expected erased byte, got %#x", buf[PageSize])
	}

	tests := map[string]error{
		"eraseUnaligned":   f.Erase(PageSize, SectorSize),
		"eraseShort":       f.Erase(0, PageSize),
		"programUnaligned": f.Program(1, page),
		"programShort":     f.Program(0, page[:10]),
		"eraseRange":       f.Erase(Size, SectorSize),
	}
	for name, err := range tests {
		t.Run(name, func(t *testing.T) {
			if !errors.Is(err, ErrAlignment) && !errors.Is(err, ErrRange) {
				t.Fatalf("expected alignment or range error, got %v", err)
			}
		})
	}
}

func TestMem(t *testing.T) {
	testNOR(t, NewMem(Size))
}

func TestFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "flash.bin")
	f, err := OpenFile(name, Size)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	testNOR(t, f)
}

func TestWrite(t *testing.T) {
	m := NewMem(Size)
	data := []byte("hello flash")
	if err := Write(m, ConfigOffset, data); err != nil {
		t.Fatal(err)
	}
	if err := Write(m, ConfigOffset, data[:5]); err != nil {
		t.Fatal(err)
	}
	got := m.Bytes()[ConfigOffset : ConfigOffset+len(data)]
	if string(got[:5]) != "hello" || got[5] != 0xff {
		t.Fatalf("expected rewritten sector, got %q", got)
	}
}

func TestROM(t *testing.T) {
	m := NewMem(Size)
	copy(m.Bytes()[ROMOffset:], "ROM!")
	r := ROM(m)
	if r.Size() != ROMSize {
		t.Fatalf("expected %d, got %d", ROMSize, r.Size())
	}
	buf := make([]byte, 4)
	if _, err := r.Read(buf); err != nil || string(buf) != "ROM!" {
		t.Fatalf("expected ROM!, got %q (%v)", buf, err)
	}
}
