package gemdrive

import (
	"errors"
	"slices"

	"github.com/clktmr/sidecart/storage"
)

// FirstFileDescriptor is the smallest handle given to the host. Handles
// below belong to the host's own drives.
const FirstFileDescriptor = 16384

// MaxOpenFiles limits the number of files open at the same time.
const MaxOpenFiles = 64

// openFile is an open file of the host. The offset is the authoritative
// read position, the host keeps its own copy.
type openFile struct {
	fd       uint16
	path     string
	file     storage.File
	offset   int64
	writable bool
}

// fdTable holds the open files ordered by handle.
type fdTable struct {
	files []*openFile
}

// alloc returns the smallest free handle.
func (t *fdTable) alloc() (uint16, error) {
	if len(t.files) >= MaxOpenFiles {
		return 0, ENHNDL
	}
	fd := uint16(FirstFileDescriptor)
	for _, f := range t.files {
		if f.fd != fd {
			break
		}
		fd++
	}
	return fd, nil
}

func (t *fdTable) add(f *openFile) {
	i, _ := slices.BinarySearchFunc(t.files, f.fd, func(f *openFile, fd uint16) int {
		return int(f.fd) - int(fd)
	})
	t.files = slices.Insert(t.files, i, f)
}

func (t *fdTable) get(fd uint16) *openFile {
	for _, f := range t.files {
		if f.fd == fd {
			return f
		}
	}
	return nil
}

func (t *fdTable) byPath(name string) *openFile {
	for _, f := range t.files {
		if f.path == name {
			return f
		}
	}
	return nil
}

// close closes and removes the file with handle fd.
func (t *fdTable) close(fd uint16) error {
	i := slices.IndexFunc(t.files, func(f *openFile) bool { return f.fd == fd })
	if i < 0 {
		return EIHNDL
	}
	f := t.files[i]
	t.files = slices.Delete(t.files, i, i+1)
	return f.file.Close()
}

func (t *fdTable) closeAll() error {
	var errs []error
	for _, f := range t.files {
		errs = append(errs, f.file.Close())
	}
	t.files = t.files[:0]
	return errors.Join(errs...)
}

func (t *fdTable) len() int {
	return len(t.files)
}
