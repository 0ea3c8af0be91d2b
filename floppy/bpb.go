package floppy

import (
	"errors"
	"fmt"
)

var ErrBadBootSector = errors.New("floppy: invalid boot sector")

// BPB is the BIOS parameter block the host uses to address a disk, followed
// by the geometry and the disk number the emulator stores along with it.
type BPB struct {
	RecSize   uint16 // sector size in bytes
	ClSiz     uint16 // cluster size in sectors
	ClSizB    uint16 // cluster size in bytes
	RDLen     uint16 // root directory length in sectors
	FSiz      uint16 // FAT size in sectors
	FATRec    uint16 // sector number of the second FAT
	DatRec    uint16 // sector number of the first data cluster
	NumCl     uint16 // number of data clusters
	BFlags    uint16
	TrackCnt  uint16
	SideCnt   uint16
	SecPCyl   uint16
	SecPTrack uint16
	_         [3]uint16
	Disk      uint16
}

// BPBWords is the size of a BPB in the shared window in words.
const BPBWords = 17

// ParseBPB derives the BPB from the boot sector of a disk image.
func ParseBPB(boot []byte, disk int) (bpb BPB, err error) {
	if len(boot) < 32 {
		return bpb, ErrBadBootSector
	}
	le16 := func(i int) uint16 { return uint16(boot[i]) | uint16(boot[i+1])<<8 }

	bpb.RecSize = le16(11)
	bpb.ClSiz = uint16(boot[13])
	if bpb.RecSize == 0 || bpb.RecSize&1 != 0 || bpb.ClSiz == 0 {
		return bpb, fmt.Errorf("%w: sector size %d, cluster size %d", ErrBadBootSector, bpb.RecSize, bpb.ClSiz)
	}
	bpb.ClSizB = bpb.ClSiz * bpb.RecSize
	bpb.RDLen = le16(17) * 32 / bpb.RecSize
	bpb.FSiz = le16(22)
	bpb.FATRec = bpb.FSiz + 1
	bpb.DatRec = bpb.RDLen + bpb.FATRec + bpb.FSiz
	sectors := le16(19)
	if sectors < bpb.DatRec {
		return bpb, fmt.Errorf("%w: %d sectors", ErrBadBootSector, sectors)
	}
	bpb.NumCl = (sectors - bpb.DatRec) / bpb.ClSiz
	bpb.SideCnt = le16(26)
	bpb.SecPTrack = le16(24)
	bpb.SecPCyl = bpb.SecPTrack * bpb.SideCnt
	if bpb.SecPCyl != 0 {
		bpb.TrackCnt = sectors / bpb.SecPCyl
	}
	bpb.Disk = uint16(disk)
	return bpb, nil
}

// Words returns the BPB in the order it's stored in the shared window.
func (b *BPB) Words() [BPBWords]uint16 {
	return [BPBWords]uint16{
		b.RecSize, b.ClSiz, b.ClSizB, b.RDLen, b.FSiz, b.FATRec, b.DatRec,
		b.NumCl, b.BFlags, b.TrackCnt, b.SideCnt, b.SecPCyl, b.SecPTrack,
		0, 0, 0, b.Disk,
	}
}
