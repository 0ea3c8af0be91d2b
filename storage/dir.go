package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const writeFlags = os.O_RDWR | os.O_CREATE | os.O_TRUNC

// DefaultCapacity is the size reported by a Dir without an explicit
// capacity.
const DefaultCapacity = 2 << 30

// DirFS serves a directory of the local file system.
type DirFS struct {
	Root     string
	Capacity int64 // bytes, zero means DefaultCapacity
}

// Dir returns a FS rooted at the local directory root.
func Dir(root string) *DirFS {
	return &DirFS{Root: root}
}

func (d *DirFS) join(name string) string {
	return filepath.Join(d.Root, filepath.FromSlash(Clean(name)))
}

func (d *DirFS) OpenFile(name string, flag int) (File, error) {
	fi, err := os.Stat(d.join(name))
	if err == nil && fi.IsDir() && flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	f, err := os.OpenFile(d.join(name), flag, 0644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *DirFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(d.join(name))
}

func (d *DirFS) ReadDir(name string) ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(d.join(name))
	if err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue // removed meanwhile
		}
		infos = append(infos, fi)
	}
	return infos, nil
}

func (d *DirFS) Mkdir(name string) error {
	return os.Mkdir(d.join(name), 0755)
}

func (d *DirFS) Remove(name string) error {
	p := d.join(name)
	if entries, err := os.ReadDir(p); err == nil && len(entries) > 0 {
		return &fs.PathError{Op: "remove", Path: name, Err: ErrNotEmpty}
	}
	return os.Remove(p)
}

func (d *DirFS) Rename(oldname, newname string) error {
	if _, err := os.Stat(d.join(newname)); err == nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: fs.ErrExist}
	}
	return os.Rename(d.join(oldname), d.join(newname))
}

func (d *DirFS) Chmod(name string, attr Attr) error {
	fi, err := os.Stat(d.join(name))
	if err != nil {
		return err
	}
	mode := fi.Mode().Perm() | 0200
	if attr&ReadOnly != 0 {
		mode &^= 0222
	}
	return os.Chmod(d.join(name), mode)
}

func (d *DirFS) Chtimes(name string, mtime time.Time) error {
	return os.Chtimes(d.join(name), mtime, mtime)
}

// Usage sums up the sizes of all files below Root and reports the rest of
// Capacity as free.
func (d *DirFS) Usage() (u Usage, err error) {
	capacity := d.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	u.ClusterSize = 2 * SectorSize
	var used int64
	err = filepath.WalkDir(d.Root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		fi, err := e.Info()
		if err != nil {
			return err
		}
		used += (fi.Size() + u.ClusterSize - 1) / u.ClusterSize
		return nil
	})
	u.Clusters = capacity / u.ClusterSize
	u.Free = max(u.Clusters-used, 0)
	return
}
