// Package storage is the file API consumed by the device personalities.
//
// Paths are absolute, slash separated and relative to the root of the
// storage, usually an SD card. Two backends exist: Dir serves a directory of
// the local file system, Image serves a FAT32 file system inside a disk
// image.
package storage

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"
)

// File is an open file.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// FS is a writable file system.
type FS interface {
	OpenFile(name string, flag int) (File, error)
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.FileInfo, error)
	Mkdir(name string) error
	Remove(name string) error
	Rename(oldname, newname string) error
	Chmod(name string, attr Attr) error
	Chtimes(name string, mtime time.Time) error
	Usage() (Usage, error)
}

// Usage reports the capacity of a file system in clusters.
type Usage struct {
	ClusterSize int64 // bytes per cluster
	Clusters    int64
	Free        int64
}

// SectorSize is the sector size reported to the host.
const SectorSize = 512

var ErrNotEmpty = errors.New("storage: directory not empty")

// Attr is the file attribute byte of FAT file systems. The bits are the same
// the host uses in its directory entries.
type Attr uint8

const (
	ReadOnly Attr = 1 << iota
	Hidden
	System
	Label
	Directory
	Archive
)

func (a Attr) String() string {
	const names = "RHSLDA"
	var b strings.Builder
	for i := range len(names) {
		if a&(1<<i) != 0 {
			b.WriteByte(names[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// AttrOf derives the attributes of a file from its mode.
func AttrOf(fi fs.FileInfo) Attr {
	if a, ok := fi.Sys().(Attr); ok {
		return a
	}
	var a Attr
	if fi.IsDir() {
		a |= Directory
	} else {
		a |= Archive
	}
	if fi.Mode().Perm()&0200 == 0 {
		a |= ReadOnly
	}
	if strings.HasPrefix(fi.Name(), ".") {
		a |= Hidden
	}
	return a
}

// Clean returns the canonical absolute form of name.
func Clean(name string) string {
	return path.Clean("/" + name)
}

// ReadFile reads the whole named file.
func ReadFile(fsys FS, name string) ([]byte, error) {
	f, err := fsys.OpenFile(name, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFile creates or truncates the named file and writes data to it.
func WriteFile(fsys FS, name string, data []byte) error {
	f, err := fsys.OpenFile(name, writeFlags)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
