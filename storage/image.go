package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
)

// ImageFS serves the FAT32 file system of an SD card image. The image must
// either be unpartitioned or carry the file system in its first partition.
//
// Only the operations needed to read and write existing files are
// available, the others return errors.ErrUnsupported.
type ImageFS struct {
	disk *disk.Disk
	fs   filesystem.FileSystem
}

// OpenImage opens the disk image or block device at name.
func OpenImage(name string) (*ImageFS, error) {
	d, err := diskfs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("storage: open image: %w", err)
	}
	var fsys filesystem.FileSystem
	for _, part := range [...]int{0, 1} {
		if fsys, err = d.GetFilesystem(part); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("storage: no file system in %s: %w", name, err)
	}
	if fsys.Type() != filesystem.TypeFat32 {
		return nil, fmt.Errorf("storage: %s: unsupported file system type %v", name, fsys.Type())
	}
	return &ImageFS{d, fsys}, nil
}

// CreateImage creates an unpartitioned image of size bytes with an empty
// FAT32 file system.
func CreateImage(name string, size int64, label string) (*ImageFS, error) {
	d, err := diskfs.Create(name, size, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return nil, fmt.Errorf("storage: create image: %w", err)
	}
	fsys, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   0,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: label,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: format image: %w", err)
	}
	return &ImageFS{d, fsys}, nil
}

// Label returns the volume label.
func (img *ImageFS) Label() string {
	return strings.TrimSpace(img.fs.Label())
}

func (img *ImageFS) OpenFile(name string, flag int) (File, error) {
	f, err := img.fs.OpenFile(Clean(name), flag)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: mapImageErr(err)}
	}
	return f, nil
}

func (img *ImageFS) ReadDir(name string) ([]fs.FileInfo, error) {
	infos, err := img.fs.ReadDir(Clean(name))
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: mapImageErr(err)}
	}
	out := infos[:0]
	for _, fi := range infos {
		if n := fi.Name(); n == "." || n == ".." {
			continue
		}
		out = append(out, fi)
	}
	return out, nil
}

// Stat looks up name in its parent directory. FAT names are matched case
// insensitive.
func (img *ImageFS) Stat(name string) (fs.FileInfo, error) {
	name = Clean(name)
	if name == "/" {
		return rootInfo{}, nil
	}
	dir, elem := path.Split(name)
	infos, err := img.ReadDir(dir)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	for _, fi := range infos {
		if strings.EqualFold(fi.Name(), elem) {
			return fi, nil
		}
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (img *ImageFS) Mkdir(name string) error {
	if _, err := img.Stat(name); err == nil {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrExist}
	}
	return img.fs.Mkdir(Clean(name))
}

func (img *ImageFS) Remove(name string) error {
	return &fs.PathError{Op: "remove", Path: name, Err: errors.ErrUnsupported}
}

func (img *ImageFS) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: errors.ErrUnsupported}
}

func (img *ImageFS) Chmod(name string, attr Attr) error {
	return &fs.PathError{Op: "chmod", Path: name, Err: errors.ErrUnsupported}
}

func (img *ImageFS) Chtimes(name string, mtime time.Time) error {
	return &fs.PathError{Op: "chtimes", Path: name, Err: errors.ErrUnsupported}
}

// Usage reports the image size as capacity and derives the free space from
// the sizes of all files.
func (img *ImageFS) Usage() (u Usage, err error) {
	u.ClusterSize = 8 * SectorSize
	var used int64
	var walk func(dir string) error
	walk = func(dir string) error {
		infos, err := img.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, fi := range infos {
			used += (fi.Size() + u.ClusterSize - 1) / u.ClusterSize
			if fi.IsDir() {
				used++
				if err := walk(path.Join(dir, fi.Name())); err != nil {
					return err
				}
			}
		}
		return nil
	}
	err = walk("/")
	u.Clusters = img.disk.Size / u.ClusterSize
	u.Free = max(u.Clusters-used, 0)
	return
}

func mapImageErr(err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return fs.ErrNotExist
	}
	if strings.Contains(err.Error(), "not exist") || strings.Contains(err.Error(), "not found") {
		return fs.ErrNotExist
	}
	return err
}

type rootInfo struct{}

func (rootInfo) Name() string       { return "/" }
func (rootInfo) Size() int64        { return 0 }
func (rootInfo) Mode() fs.FileMode  { return fs.ModeDir | 0755 }
func (rootInfo) ModTime() time.Time { return time.Time{} }
func (rootInfo) IsDir() bool        { return true }
func (rootInfo) Sys() any           { return Directory }
