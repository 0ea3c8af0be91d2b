// Package config implements the configuration store kept in a flash sector.
//
// The store is a list of typed key/value entries. It's serialized as a
// little-endian header with magic and version, the entries, an empty
// terminating entry and a CRC-8 over everything before it. A store that
// can't be read falls back to Defaults.
package config

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sigurn/crc8"

	"github.com/clktmr/sidecart/flash"
)

const (
	Magic   = 0x1234_0000
	Version = 1

	KeySize   = 20
	ValueSize = 64
	EntrySize = KeySize + 2 + ValueSize

	headerSize = 4

	// MaxEntries is the number of entries fitting the flash sector next to
	// header, terminator and checksum.
	MaxEntries = (flash.ConfigSize-headerSize-1)/EntrySize - 1
)

var (
	ErrMagic    = errors.New("config: no configuration found")
	ErrChecksum = errors.New("config: checksum mismatch")
	ErrFull     = errors.New("config: too many entries")
	ErrKey      = errors.New("config: invalid key")
	ErrType     = errors.New("config: type mismatch")
)

var crcTable = crc8.MakeTable(crc8.CRC8_MAXIM)

// Type of an entry's value.
type Type uint16

const (
	Int Type = iota
	String
	Bool
)

func (t Type) String() string {
	switch t {
	case Int:
		return "INT"
	case String:
		return "STRING"
	case Bool:
		return "BOOL"
	}
	return "UNKNOWN"
}

// Entry is a single configuration value. Values of all types are stored as
// text.
type Entry struct {
	Key   string
	Type  Type
	Value string
}

func (e Entry) marshal(b []byte) {
	clear(b[:EntrySize])
	copy(b[:KeySize-1], e.Key)
	binary.LittleEndian.PutUint16(b[KeySize:], uint16(e.Type))
	copy(b[KeySize+2:EntrySize-1], e.Value)
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func unmarshalEntry(b []byte) Entry {
	return Entry{
		Key:   cstring(b[:KeySize]),
		Type:  Type(binary.LittleEndian.Uint16(b[KeySize:])),
		Value: cstring(b[KeySize+2 : EntrySize]),
	}
}

// Store is the configuration in memory. Changes are persisted with Save.
type Store struct {
	entries []Entry
	flash   flash.Flash
}

// New returns a store with the default entries, saving to f.
func New(f flash.Flash) *Store {
	s := &Store{flash: f}
	s.Reset()
	return s
}

// Load reads the store from f. The entries of the flash override the
// defaults, unknown keys are dropped. If the flash holds no valid
// configuration, the defaults and the reason are returned.
func Load(f flash.Flash) (*Store, error) {
	s := New(f)
	buf := make([]byte, flash.ConfigSize)
	if _, err := f.ReadAt(buf, flash.ConfigOffset); err != nil && err != io.EOF {
		return s, err
	}
	entries, err := Unmarshal(buf)
	if err != nil {
		return s, err
	}
	for _, e := range entries {
		if i := s.index(e.Key); i >= 0 {
			s.entries[i] = e
		}
	}
	s.migrate()
	return s, nil
}

// Unmarshal parses a serialized store.
func Unmarshal(b []byte) ([]Entry, error) {
	if len(b) < headerSize+EntrySize+1 {
		return nil, io.ErrUnexpectedEOF
	}
	if binary.LittleEndian.Uint32(b) != Magic|Version {
		return nil, ErrMagic
	}
	var entries []Entry
	off := headerSize
	for {
		if off+EntrySize+1 > len(b) {
			return nil, io.ErrUnexpectedEOF
		}
		if b[off] == 0 {
			off += EntrySize
			break
		}
		entries = append(entries, unmarshalEntry(b[off:]))
		off += EntrySize
	}
	if crc8.Checksum(b[:off], crcTable) != b[off] {
		return nil, ErrChecksum
	}
	return entries, nil
}

// MarshalBinary serializes the store.
func (s *Store) MarshalBinary() ([]byte, error) {
	if len(s.entries) > MaxEntries {
		return nil, ErrFull
	}
	b := make([]byte, headerSize+(len(s.entries)+1)*EntrySize+1)
	binary.LittleEndian.PutUint32(b, Magic|Version)
	off := headerSize
	for _, e := range s.entries {
		e.marshal(b[off:])
		off += EntrySize
	}
	off += EntrySize // terminator
	b[off] = crc8.Checksum(b[:off], crcTable)
	return b, nil
}

// Save writes the store to flash.
func (s *Store) Save() error {
	b, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	if s.flash == nil {
		return errors.New("config: no flash")
	}
	if err := flash.Write(s.flash, flash.ConfigOffset, b); err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	return nil
}

// Reset replaces all entries with the defaults. The flash is not changed
// until Save.
func (s *Store) Reset() {
	s.entries = append(s.entries[:0], Defaults...)
}

// Entries returns all entries in order.
func (s *Store) Entries() []Entry {
	return s.entries
}

func (s *Store) index(key string) int {
	for i := range s.entries {
		if s.entries[i].Key == key {
			return i
		}
	}
	return -1
}

// Get returns the entry of key.
func (s *Store) Get(key string) (Entry, bool) {
	if i := s.index(key); i >= 0 {
		return s.entries[i], true
	}
	return Entry{}, false
}

// String returns the value of key or the empty string.
func (s *Store) String(key string) string {
	e, _ := s.Get(key)
	return e.Value
}

// Int returns the value of key as an integer. Missing or invalid values
// are zero.
func (s *Store) Int(key string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s.String(key)))
	return v
}

// Bool reports whether key is set to true.
func (s *Store) Bool(key string) bool {
	return strings.EqualFold(s.String(key), "true")
}

// Put sets the value of key, adding an entry if needed. Values are
// truncated to fit the flash layout.
func (s *Store) Put(key string, t Type, value string) error {
	if key == "" || len(key) >= KeySize {
		return fmt.Errorf("%w: %q", ErrKey, key)
	}
	if len(value) >= ValueSize {
		value = value[:ValueSize-1]
	}
	e := Entry{Key: key, Type: t, Value: value}
	if i := s.index(key); i >= 0 {
		s.entries[i] = e
		return nil
	}
	if len(s.entries) >= MaxEntries {
		return ErrFull
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *Store) PutString(key, value string) error {
	return s.Put(key, String, value)
}

func (s *Store) PutInt(key string, value int) error {
	return s.Put(key, Int, strconv.Itoa(value))
}

func (s *Store) PutBool(key string, value bool) error {
	return s.Put(key, Bool, strconv.FormatBool(value))
}

// Parse sets key from its textual form, checking it against the type of the
// existing entry.
func (s *Store) Parse(key, value string) error {
	e, ok := s.Get(key)
	if !ok {
		return s.PutString(key, value)
	}
	switch e.Type {
	case Int:
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrType, key, err)
		}
		return s.PutInt(key, v)
	case Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrType, key, err)
		}
		return s.PutBool(key, v)
	}
	return s.PutString(key, value)
}

// WriteTo prints the store as a table.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	line := "+--------------------------------+--------------------------------+----------+\n"
	buf.WriteString(line)
	fmt.Fprintf(&buf, "| %-30s | %-30s | %-8s |\n", "Key", "Value", "Type")
	buf.WriteString(line)
	for _, e := range s.entries {
		v := e.Value
		if strings.Contains(e.Key, "PASSWORD") && v != "" {
			v = "********"
		}
		fmt.Fprintf(&buf, "| %-30s | %-30.30s | %-8s |\n", e.Key, v, e.Type)
	}
	buf.WriteString(line)
	return buf.WriteTo(w)
}
