// Package xdbf implements the allocator for Xbox 360 XDBF fixed-size
// container files (achievement, avatar-award, and title-metadata blobs).
// A File maintains two parallel tables — allocated sections and free
// sections — over a single backing iostream.Stream, and performs
// best-fit allocation, splitting, and, when fragmentation defeats
// allocation outright, a full rebuild. Free does not merge adjacent free
// sections; only the rebuild collapses them into one.
package xdbf

import (
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/exp/slices"

	"github.com/xboxfatx/fatx/checkpoint"
	"github.com/xboxfatx/fatx/iostream"
)

// File is an open XDBF container.
type File struct {
	stream iostream.Stream

	version uint32

	entryMax     uint32
	entryCurrent uint32
	freeMax      uint32
	freeCurrent  uint32

	allocated []AllocatedSection
	free      []FreeSection
}

// freeSectionStart is the byte offset of the free-section table.
func (f *File) freeSectionStart() int64 {
	return headerSize + int64(f.entryMax)*allocatedSize
}

// sectionStart is the byte offset where the data area begins.
func (f *File) sectionStart() int64 {
	return int64(f.freeMax+3)*8 + int64(f.entryMax)*allocatedSize
}

// New formats an empty XDBF file over stream, sized to hold entryMax
// allocated sections and freeMax free sections, and writes it out.
func New(stream iostream.Stream) (*File, error) {
	f := &File{
		stream:   stream,
		version:  defaultVersion,
		entryMax: defaultEntryMax,
		freeMax:  defaultFreeMax,
	}

	if err := stream.SetLength(f.sectionStart()); err != nil {
		return nil, checkpoint.Wrap(err, errors.New("xdbf: could not size new file"))
	}

	if err := f.save(); err != nil {
		return nil, err
	}
	return f, nil
}

// Open reads an existing XDBF file's header and both tables.
func Open(stream iostream.Stream) (*File, error) {
	f := &File{stream: stream}

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, checkpoint.Wrap(err, errors.New("xdbf: seek to header failed"))
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(stream, header); err != nil {
		return nil, checkpoint.Wrap(err, errors.New("xdbf: could not read header"))
	}

	gotMagic := binary.BigEndian.Uint32(header[0:4])
	if gotMagic != magic {
		return nil, checkpoint.From(ErrInvalidXDBF)
	}

	f.version = binary.BigEndian.Uint32(header[4:8])
	f.entryMax = binary.BigEndian.Uint32(header[8:12])
	f.entryCurrent = binary.BigEndian.Uint32(header[12:16])
	f.freeMax = binary.BigEndian.Uint32(header[16:20])
	f.freeCurrent = binary.BigEndian.Uint32(header[20:24])

	f.allocated = make([]AllocatedSection, 0, f.entryCurrent)
	buf := make([]byte, allocatedSize)
	for i := uint32(0); i < f.entryCurrent; i++ {
		if _, err := io.ReadFull(stream, buf); err != nil {
			return nil, checkpoint.Wrap(err, errors.New("xdbf: could not read allocated table"))
		}
		f.allocated = append(f.allocated, AllocatedSection{
			Namespace: Namespace(int16(binary.BigEndian.Uint16(buf[0:2]))),
			ID:        int64(binary.BigEndian.Uint64(buf[2:10])),
			Offset:    int32(binary.BigEndian.Uint32(buf[10:14])),
			Size:      int32(binary.BigEndian.Uint32(buf[14:18])),
		})
	}

	if _, err := stream.Seek(f.freeSectionStart(), io.SeekStart); err != nil {
		return nil, checkpoint.Wrap(err, errors.New("xdbf: seek to free table failed"))
	}

	f.free = make([]FreeSection, 0, f.freeCurrent)
	fbuf := make([]byte, freeSize)
	for i := uint32(0); i < f.freeCurrent; i++ {
		if _, err := io.ReadFull(stream, fbuf); err != nil {
			return nil, checkpoint.Wrap(err, errors.New("xdbf: could not read free table"))
		}
		f.free = append(f.free, FreeSection{
			Offset: int32(binary.BigEndian.Uint32(fbuf[0:4])),
			Size:   binary.BigEndian.Uint32(fbuf[4:8]),
		})
	}

	return f, nil
}

// save refreshes entryCurrent/freeCurrent and writes the header and both
// tables at their fixed offsets. The data area itself is untouched.
func (f *File) save() error {
	f.entryCurrent = uint32(len(f.allocated))
	f.freeCurrent = uint32(len(f.free))

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[0:4], magic)
	binary.BigEndian.PutUint32(header[4:8], f.version)
	binary.BigEndian.PutUint32(header[8:12], f.entryMax)
	binary.BigEndian.PutUint32(header[12:16], f.entryCurrent)
	binary.BigEndian.PutUint32(header[16:20], f.freeMax)
	binary.BigEndian.PutUint32(header[20:24], f.freeCurrent)

	if _, err := f.stream.Seek(0, io.SeekStart); err != nil {
		return checkpoint.Wrap(err, errors.New("xdbf: seek to header failed"))
	}
	if _, err := f.stream.Write(header); err != nil {
		return checkpoint.Wrap(err, errors.New("xdbf: could not write header"))
	}

	for _, a := range f.allocated {
		buf := make([]byte, allocatedSize)
		binary.BigEndian.PutUint16(buf[0:2], uint16(a.Namespace))
		binary.BigEndian.PutUint64(buf[2:10], uint64(a.ID))
		binary.BigEndian.PutUint32(buf[10:14], uint32(a.Offset))
		binary.BigEndian.PutUint32(buf[14:18], uint32(a.Size))
		if _, err := f.stream.Write(buf); err != nil {
			return checkpoint.Wrap(err, errors.New("xdbf: could not write allocated table"))
		}
	}

	if _, err := f.stream.Seek(f.freeSectionStart(), io.SeekStart); err != nil {
		return checkpoint.Wrap(err, errors.New("xdbf: seek to free table failed"))
	}
	for _, fr := range f.free {
		buf := make([]byte, freeSize)
		binary.BigEndian.PutUint32(buf[0:4], uint32(fr.Offset))
		binary.BigEndian.PutUint32(buf[4:8], fr.Size)
		if _, err := f.stream.Write(buf); err != nil {
			return checkpoint.Wrap(err, errors.New("xdbf: could not write free table"))
		}
	}

	return f.stream.Flush()
}

func sortAllocated(s []AllocatedSection) {
	slices.SortFunc(s, func(a, b AllocatedSection) int {
		if a.Namespace != b.Namespace {
			return int(a.Namespace) - int(b.Namespace)
		}
		return int(a.ID - b.ID)
	})
}

func sortFree(s []FreeSection) {
	slices.SortFunc(s, func(a, b FreeSection) int {
		return int(a.Offset - b.Offset)
	})
}

func (f *File) find(ns Namespace, id int64) (int, bool) {
	for i, a := range f.allocated {
		if a.Namespace == ns && a.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Sections returns the allocated sections in the given namespace, in
// (namespace, id) order.
func (f *File) Sections(ns Namespace) []AllocatedSection {
	var out []AllocatedSection
	for _, a := range f.allocated {
		if a.Namespace == ns {
			out = append(out, a)
		}
	}
	sortAllocated(out)
	return out
}

// AllSections returns every allocated section currently registered.
func (f *File) AllSections() []AllocatedSection {
	out := make([]AllocatedSection, len(f.allocated))
	copy(out, f.allocated)
	return out
}

func (f *File) readAt(off int64, size int32) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := f.stream.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(f.stream, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (f *File) writeAt(off int64, data []byte) error {
	if _, err := f.stream.Seek(off, io.SeekStart); err != nil {
		return err
	}
	_, err := f.stream.Write(data)
	return err
}

func (f *File) zeroAt(off int64, size int64) error {
	if _, err := f.stream.Seek(off, io.SeekStart); err != nil {
		return err
	}
	const chunk = 4096
	zeros := make([]byte, chunk)
	for size > 0 {
		n := int64(chunk)
		if n > size {
			n = size
		}
		if _, err := f.stream.Write(zeros[:n]); err != nil {
			return err
		}
		size -= n
	}
	return nil
}
