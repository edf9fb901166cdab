package fatx

import (
	"encoding/binary"

	"github.com/xboxfatx/fatx/checkpoint"
)

// Kind discriminates the two partition header/chain-map layouts. They
// differ only in header-read arithmetic (§4.1, §9 "Polymorphism over
// partitions"), so this is modeled as a tag on a single shared struct
// rather than as an inheritance hierarchy.
type Kind int

const (
	// KindRegular is used by every partition except a USB stick's Data
	// partition.
	KindRegular Kind = iota
	// KindUSB is used by a USB stick's single Data partition, whose
	// physical layout reserves a fixed, oversized chain-map region.
	KindUSB
)

const (
	fatxMagic = 0x58544146 // "FATX" read as a big-endian uint32.

	sectorSize        = 512
	partitionHeaderSize = 0x10 // magic, id, sectorsPerCluster, rootDirFirstCluster
	chainMapAlignment = 4096
	direntSize        = 0x40

	// ClusterFree marks a chain-map entry that addresses no file.
	ClusterFree uint32 = 0
	// ClusterEOF marks the last cluster in a chain.
	ClusterEOF uint32 = 0xFFFFFFFF

	// entrySizeThreshold: below this cluster count, chain-map entries are
	// 2 bytes; at or above it, 4 bytes (§3).
	entrySizeThreshold = 0xFFF0

	// headerReserved is the fixed gap between a partition's header and
	// its chain map.
	headerReserved = 0x1000

	// usbChainMapReserved is the fixed size a USB stick's FATX volume
	// reserves for its chain map, independent of the stick's actual
	// capacity (see DESIGN.md, "USB chain map region").
	usbChainMapReserved = 0x400000
	// usbDataStart is the fixed byte offset (relative to the partition
	// start) where a USB stick's file area begins.
	usbDataStart = headerReserved + usbChainMapReserved
)

// Partition owns a partition header, its chain map, dirent caches, and
// cluster I/O for one FATX volume. It never owns the underlying stream —
// that belongs to the Device it was constructed from — so its lifetime is
// bounded by its Device's.
type Partition struct {
	device *Device
	kind   Kind

	// Name is a human-friendly label (e.g. "Data", "System") assigned by
	// the device layout, not read from disk.
	Name   string
	Offset int64
	Size   int64

	Magic               uint32
	ID                  uint32
	SectorsPerCluster   uint32
	RootDirFirstCluster uint32

	ClusterSize       uint32
	ClusterCount      uint32
	EntrySize         int // 2 or 4
	ChainMapOffset    int64
	ChainMapSize      int64
	FileAreaOffset    int64
	DirentsPerCluster uint32

	chainMap []uint32
	valid    bool

	rootCache            []*Dirent
	lastRequestedCluster uint32
	lastRequestedCache   []*Dirent
	haveLastRequested    bool
}

func newPartition(device *Device, kind Kind, name string, offset, size int64) *Partition {
	return &Partition{
		device: device,
		kind:   kind,
		Name:   name,
		Offset: offset,
		Size:   size,
	}
}

// IsValid reports whether the partition's header validated on read.
func (p *Partition) IsValid() bool { return p.valid }

func roundUp(n, align int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + align - 1) / align * align
}

// read loads the partition header and chain map. A magic mismatch marks
// the partition invalid and returns ErrNotFATX; the device layer drops
// such partitions from its list rather than treating this as fatal.
func (p *Partition) read() error {
	header := make([]byte, partitionHeaderSize)
	if err := p.device.readAt(p.Offset, header); err != nil {
		return checkpoint.Wrap(err, ErrNotFATX)
	}

	p.Magic = binary.BigEndian.Uint32(header[0:4])
	if p.Magic != fatxMagic {
		p.valid = false
		return checkpoint.From(ErrNotFATX)
	}

	p.ID = binary.BigEndian.Uint32(header[4:8])
	p.SectorsPerCluster = binary.BigEndian.Uint32(header[8:12])
	p.RootDirFirstCluster = binary.BigEndian.Uint32(header[12:16])

	p.ClusterSize = p.SectorsPerCluster * sectorSize
	p.DirentsPerCluster = p.ClusterSize / direntSize
	p.ChainMapOffset = p.Offset + headerReserved

	switch p.kind {
	case KindUSB:
		p.computeUSBLayout()
	default:
		p.computeRegularLayout()
	}

	if err := p.readChainMap(); err != nil {
		return err
	}

	p.valid = true
	return nil
}

func (p *Partition) computeRegularLayout() {
	p.ClusterCount = uint32(p.Size) / p.ClusterSize
	p.EntrySize = entrySizeFor(p.ClusterCount)
	p.ChainMapSize = roundUp(int64(p.ClusterCount)*int64(p.EntrySize), chainMapAlignment)
	p.FileAreaOffset = p.ChainMapOffset + p.ChainMapSize
}

func (p *Partition) computeUSBLayout() {
	p.ClusterCount = uint32((p.Size - usbDataStart) / int64(p.ClusterSize))
	p.EntrySize = entrySizeFor(p.ClusterCount)
	p.ChainMapSize = roundUp(usbDataStart-headerReserved, chainMapAlignment)
	p.FileAreaOffset = usbDataStart + p.Offset

	// Sanity-check the assumed entry size against the actual on-disk
	// encoding: a 16-bit chain map's very first entry is always the
	// media-descriptor sentinel 0xFFF8 in this format's convention; if
	// the first two bytes don't read that way, the volume is using
	// 32-bit entries regardless of what the cluster-count threshold
	// suggested.
	peek := make([]byte, 2)
	if err := p.device.readAt(p.ChainMapOffset, peek); err == nil {
		if binary.BigEndian.Uint16(peek) == 0xFFF8 {
			p.EntrySize = 2
		} else {
			p.EntrySize = 4
		}
	}
}

func entrySizeFor(clusterCount uint32) int {
	if clusterCount < entrySizeThreshold {
		return 2
	}
	return 4
}
