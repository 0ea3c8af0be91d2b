package flash

import (
	"io"
	"os"
	"sync"
)

// Mem is a flash simulated in memory.
type Mem struct {
	mu   sync.Mutex
	data []byte
}

// NewMem returns an erased flash of size bytes.
func NewMem(size int64) *Mem {
	m := &Mem{data: make([]byte, size)}
	fill(m.data)
	return m
}

func fill(p []byte) {
	for i := range p {
		p[i] = 0xff
	}
}

func (m *Mem) ReadAt(p []byte, off int64) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (m *Mem) Erase(off, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkErase(off, n, int64(len(m.data))); err != nil {
		return err
	}
	fill(m.data[off : off+n])
	return nil
}

func (m *Mem) Program(off int64, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkProgram(off, len(p), int64(len(m.data))); err != nil {
		return err
	}
	for i, b := range p {
		m.data[off+int64(i)] &= b
	}
	return nil
}

// Bytes returns the content of the flash. The slice is shared.
func (m *Mem) Bytes() []byte { return m.data }

// File is a flash backed by a file on the host, e.g. a dump of the board's
// flash. The file is grown to the flash size if it's smaller.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens or creates the flash file name of size bytes.
func OpenFile(name string, size int64) (*File, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if cur := fi.Size(); cur < size {
		pad := make([]byte, size-cur)
		fill(pad)
		if _, err := f.WriteAt(pad, cur); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &File{f: f, size: size}, nil
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if off >= f.size {
		return 0, io.EOF
	}
	if max := f.size - off; int64(len(p)) > max {
		n, err = f.f.ReadAt(p[:max], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return f.f.ReadAt(p, off)
}

func (f *File) Erase(off, n int64) error {
	if err := checkErase(off, n, f.size); err != nil {
		return err
	}
	buf := make([]byte, n)
	fill(buf)
	_, err := f.f.WriteAt(buf, off)
	return err
}

func (f *File) Program(off int64, p []byte) error {
	if err := checkProgram(off, len(p), f.size); err != nil {
		return err
	}
	cur := make([]byte, len(p))
	if _, err := f.f.ReadAt(cur, off); err != nil {
		return err
	}
	for i, b := range p {
		cur[i] &= b
	}
	_, err := f.f.WriteAt(cur, off)
	return err
}

func (f *File) Close() error {
	return f.f.Close()
}
