package storage_test

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clktmr/sidecart/storage"
)

func TestDir(t *testing.T) {
	root := t.TempDir()
	d := storage.Dir(root)

	if err := d.Mkdir("/hd"); err != nil {
		t.Fatal(err)
	}
	data := []byte("hello, world\n")
	if err := storage.WriteFile(d, "/hd/test.txt", data); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(root, "hd", "test.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("expected %q, got %q", data, got)
	}

	if err := d.Remove("/hd"); !errors.Is(err, storage.ErrNotEmpty) {
		t.Fatalf("expected %v, got %v", storage.ErrNotEmpty, err)
	}
	if err := storage.WriteFile(d, "/hd/other.txt", nil); err != nil {
		t.Fatal(err)
	}
	if err := d.Rename("/hd/test.txt", "/hd/other.txt"); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected %v, got %v", fs.ErrExist, err)
	}
	if err := d.Rename("/hd/test.txt", "/hd/new.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Stat("/hd/test.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected %v, got %v", fs.ErrNotExist, err)
	}

	infos, err := d.ReadDir("/hd")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(infos))
	}

	if _, err := d.OpenFile("/hd", os.O_RDWR); !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("expected %v, got %v", fs.ErrPermission, err)
	}

	// Paths can't escape the root.
	fi, err := d.Stat("/../../hd")
	if err != nil || !fi.IsDir() {
		t.Fatalf("expected directory, got %v %v", fi, err)
	}
}

func TestAttr(t *testing.T) {
	d := storage.Dir(t.TempDir())
	if err := storage.WriteFile(d, "/A.TXT", []byte("a")); err != nil {
		t.Fatal(err)
	}
	d.Mkdir("/DIR")

	tests := map[string]struct {
		name string
		ro   bool
		attr storage.Attr
	}{
		"file":     {"/A.TXT", false, storage.Archive},
		"readonly": {"/A.TXT", true, storage.Archive | storage.ReadOnly},
		"dir":      {"/DIR", false, storage.Directory},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var attr storage.Attr
			if tc.ro {
				attr = storage.ReadOnly
			}
			if err := d.Chmod(tc.name, attr); err != nil {
				t.Fatal(err)
			}
			fi, err := d.Stat(tc.name)
			if err != nil {
				t.Fatal(err)
			}
			if got := storage.AttrOf(fi); got != tc.attr {
				t.Fatalf("expected %v, got %v", tc.attr, got)
			}
		})
	}
}

func TestChtimes(t *testing.T) {
	d := storage.Dir(t.TempDir())
	storage.WriteFile(d, "/F", nil)
	mtime := time.Date(1992, 3, 4, 5, 6, 8, 0, time.Local)
	if err := d.Chtimes("/F", mtime); err != nil {
		t.Fatal(err)
	}
	fi, _ := d.Stat("/F")
	if !fi.ModTime().Equal(mtime) {
		t.Fatalf("expected %v, got %v", mtime, fi.ModTime())
	}
}

func TestDirUsage(t *testing.T) {
	d := storage.Dir(t.TempDir())
	d.Capacity = 1 << 20
	storage.WriteFile(d, "/F", make([]byte, 4096))
	u, err := d.Usage()
	if err != nil {
		t.Fatal(err)
	}
	if u.Clusters*u.ClusterSize != d.Capacity {
		t.Fatalf("expected %d bytes, got %d", d.Capacity, u.Clusters*u.ClusterSize)
	}
	if used := u.Clusters - u.Free; used < 4 {
		t.Fatalf("expected at least 4 used clusters, got %d", used)
	}
}

func TestImage(t *testing.T) {
	if testing.Short() {
		t.Skip("creates a 64 MiB image")
	}
	name := filepath.Join(t.TempDir(), "sd.img")
	img, err := storage.CreateImage(name, 64<<20, "SIDECART")
	if err != nil {
		t.Fatal(err)
	}
	if err := img.Mkdir("/floppies"); err != nil {
		t.Fatal(err)
	}
	data := bytes.Repeat([]byte{0xe5, 0xf6}, 256)
	if err := storage.WriteFile(img, "/floppies/blank.st", data); err != nil {
		t.Fatal(err)
	}

	img, err = storage.OpenImage(name)
	if err != nil {
		t.Fatal(err)
	}
	got, err := storage.ReadFile(img, "/floppies/blank.st")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("file content differs")
	}
	if _, err := img.Stat("/FLOPPIES/BLANK.ST"); err != nil {
		t.Fatal(err)
	}
	if _, err := img.Stat("/floppies/none.st"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected %v, got %v", fs.ErrNotExist, err)
	}
	if err := img.Remove("/floppies/blank.st"); !errors.Is(err, errors.ErrUnsupported) {
		t.Fatalf("expected %v, got %v", errors.ErrUnsupported, err)
	}
}
