package gemdrive

import (
	"io/fs"

	"github.com/clktmr/sidecart/storage"
)

const dtaBuckets = 512

// search is the state of a Fsfirst/Fsnext sequence of one DTA.
type search struct {
	attr    storage.Attr
	matches []fs.FileInfo
	next    int
}

// started reports whether Fsfirst was called for this DTA.
func (s *search) started() bool {
	return s.matches != nil
}

// pop returns the next match.
func (s *search) pop() (fs.FileInfo, bool) {
	if s.next >= len(s.matches) {
		return nil, false
	}
	fi := s.matches[s.next]
	s.next++
	return fi, true
}

type dtaNode struct {
	addr   uint32
	search search
	next   *dtaNode
}

// dtaTable maps the host addresses of DTAs to their search state. Colliding
// addresses are chained.
type dtaTable struct {
	buckets [dtaBuckets]*dtaNode
	count   int
}

func dtaHash(addr uint32) int {
	return int(addr % dtaBuckets)
}

func (t *dtaTable) lookup(addr uint32) *search {
	for n := t.buckets[dtaHash(addr)]; n != nil; n = n.next {
		if n.addr == addr {
			return &n.search
		}
	}
	return nil
}

// insert adds a fresh entry for addr and returns its search state. An
// existing entry is replaced.
func (t *dtaTable) insert(addr uint32) *search {
	t.release(addr)
	h := dtaHash(addr)
	t.buckets[h] = &dtaNode{addr: addr, next: t.buckets[h]}
	t.count++
	return &t.buckets[h].search
}

func (t *dtaTable) release(addr uint32) bool {
	for p := &t.buckets[dtaHash(addr)]; *p != nil; p = &(*p).next {
		if (*p).addr == addr {
			*p = (*p).next
			t.count--
			return true
		}
	}
	return false
}

func (t *dtaTable) len() int {
	return t.count
}

func (t *dtaTable) clear() {
	clear(t.buckets[:])
	t.count = 0
}
