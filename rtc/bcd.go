package rtc

// ToBCD converts a binary value below 100 to packed BCD.
func ToBCD(v uint8) uint8 {
	return (v/10)<<4 | v%10
}

// FromBCD converts a packed BCD value to binary.
func FromBCD(b uint8) uint8 {
	return (b>>4)*10 + b&0xf
}

// AddBCD adds two packed BCD values. The result wraps at 100.
func AddBCD(a, b uint8) uint8 {
	lo := uint16(a&0x0f) + uint16(b&0x0f)
	hi := uint16(a&0xf0) + uint16(b&0xf0)
	if lo > 9 {
		lo += 6
	}
	hi += lo & 0xf0
	lo &= 0x0f
	if hi&0x1f0 > 0x90 {
		hi += 0x60
	}
	return uint8(hi&0xf0) | uint8(lo)
}

// SubBCD subtracts b from a, both packed BCD values. The result wraps
// below zero.
func SubBCD(a, b uint8) uint8 {
	lo := (a & 0x0f) - (b & 0x0f)
	hi := (a & 0xf0) - (b & 0xf0)
	if lo > 9 {
		lo -= 6
		hi -= 0x10
	}
	if hi > 0x90 {
		hi -= 0x60
	}
	return hi&0xf0 | lo&0x0f
}
