package xdbf

// Namespace tags an allocated section by the kind of data it holds. The
// values match the on-disk XDBF format exactly; do not renumber.
type Namespace int16

const (
	NamespaceAchievement Namespace = 1
	NamespaceImage       Namespace = 2
	NamespaceSetting     Namespace = 3
	NamespaceTitle       Namespace = 4
	NamespaceString      Namespace = 5
	NamespaceAvatarAward Namespace = 6
)

const (
	magic          uint32 = 0x58444246
	defaultVersion uint32 = 0x10000
	defaultEntryMax uint32 = 0x200
	defaultFreeMax  uint32 = 0x200

	headerSize    = 0x18
	allocatedSize = 0x12 // namespace(2) + id(8) + offset(4) + size(4)
	freeSize      = 8    // offset(4) + size(4)
)

// AllocatedSection describes one occupied region of the data area, keyed
// uniquely by (Namespace, ID).
type AllocatedSection struct {
	Namespace Namespace
	ID        int64
	Offset    int32 // data-area-relative
	Size      int32
}

// FreeSection describes one unoccupied region of the data area.
type FreeSection struct {
	Offset int32
	Size   uint32
}

// end returns the offset one past the last byte of the section.
func (a AllocatedSection) end() int64 { return int64(a.Offset) + int64(a.Size) }
func (f FreeSection) end() int64      { return int64(f.Offset) + int64(f.Size) }
