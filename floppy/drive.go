package floppy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/clktmr/sidecart/device"
	"github.com/clktmr/sidecart/storage"
)

var ErrConflict = errors.New("floppy: image already mounted read-write in other drive")

// State is the mount state of a drive.
type State uint8

const (
	Empty State = iota
	Mounting
	Mounted
	Unmounting
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Mounting:
		return "Mounting"
	case Mounted:
		return "Mounted"
	case Unmounting:
		return "Unmounting"
	}
	return "unknown"
}

// Writable reports whether an image may be written. Only images named with
// the extension ".rw" are writable.
func Writable(name string) bool {
	return strings.EqualFold(path.Ext(name), ".rw")
}

// Drive is one of the two emulated floppy drives.
type Drive struct {
	Path     string
	State    State
	Writable bool
	BPB      BPB

	file storage.File
}

func (d *Drive) mount(fsys storage.FS, name string, disk int) (err error) {
	if d.State != Empty {
		return fmt.Errorf("floppy: mount %s: drive is %v", name, d.State)
	}
	d.State = Mounting
	defer func() {
		if err != nil {
			d.State = Empty
		}
	}()

	writable := Writable(name)
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := fsys.OpenFile(name, flag)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", device.ErrNotFound, name)
	} else if err != nil {
		return fmt.Errorf("%w: %w", device.ErrIO, err)
	}

	var boot [512]byte
	if _, err = io.ReadFull(f, boot[:]); err != nil {
		f.Close()
		return fmt.Errorf("%w: read boot sector of %s: %w", device.ErrIO, name, err)
	}
	bpb, err := ParseBPB(boot[:], disk)
	if err != nil {
		f.Close()
		return err
	}

	d.Path, d.Writable, d.BPB, d.file = name, writable, bpb, f
	d.State = Mounted
	return nil
}

func (d *Drive) unmount() error {
	if d.State != Mounted {
		return nil
	}
	d.State = Unmounting
	err := d.file.Close()
	*d = Drive{}
	return err
}

// ReadSector reads the sector at logical sector number sector into p. A
// partial sector at the end of the image is padded with zeros.
func (d *Drive) ReadSector(sector int, p []byte) error {
	if d.State != Mounted {
		return device.ErrNotReady
	}
	if _, err := d.file.Seek(int64(sector)*int64(len(p)), io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", device.ErrIO, err)
	}
	n, err := io.ReadFull(d.file, p)
	if err == io.ErrUnexpectedEOF {
		clear(p[n:])
		err = nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", device.ErrIO, err)
	}
	return nil
}

// WriteSector writes p to the logical sector number sector.
func (d *Drive) WriteSector(sector int, p []byte) error {
	if d.State != Mounted {
		return device.ErrNotReady
	}
	if !d.Writable {
		return fmt.Errorf("%w: %s is read-only", device.ErrAccessDenied, d.Path)
	}
	if _, err := d.file.Seek(int64(sector)*int64(len(p)), io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", device.ErrIO, err)
	}
	if _, err := d.file.Write(p); err != nil {
		return fmt.Errorf("%w: %w", device.ErrIO, err)
	}
	return nil
}
