package ris

// Swap exchanges the bytes of each 16-bit pair in b. It converts between the
// microcontroller's memory order and the host's bus order in both directions.
// A trailing odd byte is left untouched.
func Swap(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}

// Swapped returns a swapped copy of b, padded to an even length.
func Swapped(b []byte) []byte {
	s := make([]byte, len(b)+len(b)&1)
	copy(s, b)
	Swap(s)
	return s
}

// Sum16 returns the additive checksum of b interpreted as big-endian 16-bit
// words, the way the host computes it over a sector or buffer.
func Sum16(b []byte) uint16 {
	var sum uint16
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint16(b[i])<<8 | uint16(b[i+1])
	}
	if len(b)&1 != 0 {
		sum += uint16(b[len(b)-1]) << 8
	}
	return sum
}

// CopyIn copies b, given in host byte order, into the image at off. The
// copy is done word by word so each word changes atomically.
func (img *Image) CopyIn(off int, b []byte) {
	for i := 0; i < len(b); i += 2 {
		w := uint16(b[i]) << 8
		if i+1 < len(b) {
			w |= uint16(b[i+1])
		}
		img.SetWord(off+i, w)
	}
}

// CopyOut copies n bytes in host byte order from the image at off.
func (img *Image) CopyOut(off int, b []byte) {
	for i := range b {
		b[i] = img.HostByte(off + i)
	}
}
