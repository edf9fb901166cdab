package fatx

import (
	"encoding/binary"
	"time"
)

// Attribute bit flags, stored in a dirent's single attribute byte.
const (
	AttrReadOnly  byte = 0x01
	AttrHidden    byte = 0x02
	AttrSystem    byte = 0x04
	AttrDirectory byte = 0x10
	AttrArchive   byte = 0x20
	AttrDevice    byte = 0x40

	// AttrNormal is the base attribute set given to newly created
	// dirents before the Directory bit is added for directories.
	AttrNormal byte = 0x00
)

// Name-length byte values with special meaning, per §3.
const (
	nameLengthEmptyZero    = 0x00
	nameLengthEmptyFF      = 0xFF
	nameLengthSoftDeleted  = 0xE5
	nameLengthMax          = 42
	nameFieldSize          = 42
)

// Dirent is a decoded 64-byte directory entry, plus the in-memory
// bookkeeping needed to write it back to the exact slot it was read from.
type Dirent struct {
	NameLength byte
	Attributes byte
	nameRaw    [nameFieldSize]byte
	Name       string

	FirstCluster uint32
	Size         uint32

	CreationTime time.Time
	ModifiedTime time.Time
	AccessTime   time.Time

	// parentCluster and slotIndex locate this dirent's 64-byte slot for
	// UpdateDirent; they are never persisted.
	parentCluster uint32
	slotIndex     int

	partition *Partition
}

// ParentCluster returns the cluster of the directory this dirent's slot
// lives in, for callers (Fs.Rename) that need to detect a same-directory
// move.
func (d *Dirent) ParentCluster() uint32 { return d.parentCluster }

// IsDirectory reports whether the Directory attribute bit is set.
func (d *Dirent) IsDirectory() bool { return d.Attributes&AttrDirectory != 0 }

// IsFile is the complement of IsDirectory.
func (d *Dirent) IsFile() bool { return !d.IsDirectory() }

// IsDeleted reports whether this slot has been soft-deleted.
func (d *Dirent) IsDeleted() bool { return d.NameLength == nameLengthSoftDeleted }

// isSlotValid reports whether nameLength describes a real or
// soft-deleted entry, as opposed to an empty (end-of-directory) or
// malformed slot.
func isSlotValid(nameLength byte) bool {
	if nameLength == nameLengthEmptyZero || nameLength == nameLengthEmptyFF {
		return false
	}
	return (nameLength >= 1 && nameLength <= nameLengthMax) || nameLength == nameLengthSoftDeleted
}

// isSlotEmpty reports whether nameLength marks an unused (available for
// CreateDirent) slot.
func isSlotEmpty(nameLength byte) bool {
	return nameLength == nameLengthEmptyZero || nameLength == nameLengthEmptyFF
}

// decodeDirent parses one 64-byte slot. It always returns a Dirent (even
// for empty/malformed slots); the caller inspects NameLength to decide
// whether the slot is one ReadDirectory should stop at.
func decodeDirent(raw []byte, parentCluster uint32, slotIndex int) *Dirent {
	d := &Dirent{
		NameLength:    raw[0],
		Attributes:    raw[1],
		parentCluster: parentCluster,
		slotIndex:     slotIndex,
	}
	copy(d.nameRaw[:], raw[2:2+nameFieldSize])

	nameLen := int(d.NameLength)
	if nameLen > nameFieldSize {
		nameLen = 0
	}
	if d.NameLength != nameLengthSoftDeleted && nameLen > 0 {
		d.Name = string(d.nameRaw[:nameLen])
	} else if d.NameLength == nameLengthSoftDeleted {
		// Preserve the recoverable name for UndeleteDirent; the "live"
		// Name is left blank since the slot is logically gone.
		d.Name = ""
	}

	off := 2 + nameFieldSize
	d.FirstCluster = binary.BigEndian.Uint32(raw[off:])
	d.Size = binary.BigEndian.Uint32(raw[off+4:])
	d.CreationTime = unpackDateTime(binary.BigEndian.Uint32(raw[off+8:]))
	d.ModifiedTime = unpackDateTime(binary.BigEndian.Uint32(raw[off+12:]))
	d.AccessTime = unpackDateTime(binary.BigEndian.Uint32(raw[off+16:]))

	return d
}

// encode serializes the dirent back into a 64-byte slot.
func (d *Dirent) encode() []byte {
	raw := make([]byte, direntSize)
	raw[0] = d.NameLength
	raw[1] = d.Attributes
	copy(raw[2:2+nameFieldSize], d.nameRaw[:])

	off := 2 + nameFieldSize
	binary.BigEndian.PutUint32(raw[off:], d.FirstCluster)
	binary.BigEndian.PutUint32(raw[off+4:], d.Size)
	binary.BigEndian.PutUint32(raw[off+8:], packDateTime(d.CreationTime))
	binary.BigEndian.PutUint32(raw[off+12:], packDateTime(d.ModifiedTime))
	binary.BigEndian.PutUint32(raw[off+16:], packDateTime(d.AccessTime))
	return raw
}

// setName validates and stores name into both the display Name field and
// the raw padded buffer that gets persisted.
func (d *Dirent) setName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	d.Name = name
	d.NameLength = byte(len(name))

	var raw [nameFieldSize]byte
	for i := range raw {
		raw[i] = 0xFF
	}
	copy(raw[:], name)
	d.nameRaw = raw
	return nil
}
