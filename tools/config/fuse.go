//go:build linux || darwin

package config

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"rsc.io/rsc/fuse"

	"github.com/clktmr/sidecart/config"
	"github.com/clktmr/sidecart/flash"
)

func mount(f flash.Flash, dir string, sigintr <-chan os.Signal) error {
	s, err := config.Load(f)
	if err != nil && !errors.Is(err, config.ErrMagic) {
		return err
	}
	c, err := fuse.Mount(dir)
	if err != nil {
		return err
	}

	go c.Serve(&fusefs{store: s, mtime: time.Now()})
	<-sigintr

	cmd := exec.Command("/bin/umount", dir)
	_, err = cmd.CombinedOutput()
	return err
}

// fusefs implements the file system and the root dir Node. Every entry is a
// file named by its key holding the value followed by a newline.
type fusefs struct {
	mu    sync.Mutex
	store *config.Store
	mtime time.Time
}

func (p *fusefs) Root() (fuse.Node, fuse.Error) {
	return p, nil
}

func (p *fusefs) Attr() fuse.Attr {
	return fuse.Attr{
		Mode:  os.ModeDir | 0755,
		Mtime: p.mtime,
	}
}

func (p *fusefs) Lookup(name string, intr fuse.Intr) (fuse.Node, fuse.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.store.Get(name); !ok {
		return nil, fuse.Errno(syscall.ENOENT)
	}
	return &fusefile{key: name, fs: p}, nil
}

func (p *fusefs) ReadDir(intr fuse.Intr) ([]fuse.Dirent, fuse.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := p.store.Entries()
	fuseEntries := make([]fuse.Dirent, len(entries))
	for i, v := range entries {
		fuseEntries[i] = fuse.Dirent{
			Name: v.Key,
		}
	}
	return fuseEntries, nil
}

func (p *fusefs) Create(req *fuse.CreateRequest, res *fuse.CreateResponse, intr fuse.Intr) (fuse.Node, fuse.Handle, fuse.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.PutString(req.Name, ""); err != nil {
		return nil, nil, errno(err)
	}
	file := &fusefile{key: req.Name, fs: p}
	return file, file, nil
}

func (p *fusefs) value(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.String(key) + "\n"
}

func (p *fusefs) set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Parse(key, strings.TrimRight(value, "\r\n")); err != nil {
		return err
	}
	if err := p.store.Save(); err != nil {
		return err
	}
	p.mtime = time.Now()
	return nil
}

// fusefile implements both Node and Handle.
type fusefile struct {
	key string
	fs  *fusefs
}

func (p *fusefile) Attr() fuse.Attr {
	return fuse.Attr{
		Mode:  0644,
		Mtime: p.fs.mtime,
		Size:  uint64(len(p.fs.value(p.key))),
	}
}

func (p *fusefile) ReadAll(intr fuse.Intr) ([]byte, fuse.Error) {
	return []byte(p.fs.value(p.key)), nil
}

// Only WriteAll is supported, every write replaces the value and saves the
// store.
func (p *fusefile) WriteAll(data []byte, intr fuse.Intr) fuse.Error {
	if err := p.fs.set(p.key, string(data)); err != nil {
		return errno(err)
	}
	return nil
}

func (p *fusefile) Fsync(req *fuse.FsyncRequest, intr fuse.Intr) fuse.Error {
	return nil
}

func errno(err error) fuse.Error {
	if errors.Is(err, config.ErrFull) {
		return fuse.Errno(syscall.ENOSPC)
	} else if errors.Is(err, config.ErrKey) {
		return fuse.Errno(syscall.ENAMETOOLONG)
	} else if errors.Is(err, config.ErrType) {
		return fuse.Errno(syscall.EINVAL)
	} else {
		return fuse.EIO
	}
}
