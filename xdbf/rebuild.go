package xdbf

import (
	"io"

	"github.com/xboxfatx/fatx/checkpoint"
	"github.com/xboxfatx/fatx/iostream"
)

// Rebuild sorts both tables, then rewrites the entire data area
// contiguously: every allocated section is packed back-to-back starting
// at data-area offset 0 in (namespace, id) order, and every free region
// collapses into a single one at the tail. entryMax and freeMax grow to
// count+10 first if the current table sizes would overflow them, which
// also moves sectionStart, so the data area is relocated wholesale rather
// than shifted in place.
//
// Every allocated section's bytes are staged through a ScratchFileStream
// rather than held in a []byte per section, so a rebuild of a container
// with many megabytes of allocated data doesn't need that much again in
// RAM on top of it.
func (f *File) Rebuild() error {
	sortAllocated(f.allocated)
	sortFree(f.free)

	scratch, err := iostream.NewScratchFileStream("")
	if err != nil {
		return checkpoint.Wrap(err, ErrNoSpace)
	}
	defer scratch.Close()

	type staged struct {
		section      AllocatedSection
		scratchStart int64
	}

	stagedSections := make([]staged, len(f.allocated))
	var scratchOffset int64
	for i, a := range f.allocated {
		data, err := f.readAt(f.sectionStart()+int64(a.Offset), a.Size)
		if err != nil {
			return checkpoint.Wrap(err, ErrNoSpace)
		}
		if _, err := scratch.Seek(scratchOffset, io.SeekStart); err != nil {
			return checkpoint.Wrap(err, ErrNoSpace)
		}
		if _, err := scratch.Write(data); err != nil {
			return checkpoint.Wrap(err, ErrNoSpace)
		}
		stagedSections[i] = staged{section: a, scratchStart: scratchOffset}
		scratchOffset += int64(a.Size)
	}

	var totalFreeSize uint32
	for _, fr := range f.free {
		totalFreeSize += fr.Size
	}

	if uint32(len(f.allocated)) >= f.entryMax {
		f.entryMax = uint32(len(f.allocated)) + 10
	}
	if uint32(len(f.free)) >= f.freeMax {
		f.freeMax = uint32(len(f.free)) + 10
	}

	var running int64
	newAllocated := make([]AllocatedSection, len(stagedSections))
	for i, s := range stagedSections {
		s.section.Offset = int32(running)
		newAllocated[i] = s.section
		running += int64(s.section.Size)
	}

	newFree := []FreeSection{{Offset: int32(running), Size: totalFreeSize}}
	newLength := f.sectionStart() + running + int64(totalFreeSize)

	if err := f.stream.SetLength(0); err != nil {
		return checkpoint.Wrap(err, ErrNoSpace)
	}
	if err := f.stream.SetLength(newLength); err != nil {
		return checkpoint.Wrap(err, ErrNoSpace)
	}

	f.allocated = newAllocated
	f.free = newFree

	// Copy each allocation's staged bytes to its freshly assigned offset.
	// Do this after committing the new table state so sectionStart
	// already reflects any entryMax/freeMax growth above.
	for i, s := range stagedSections {
		buf := make([]byte, s.section.Size)
		if _, err := scratch.Seek(s.scratchStart, io.SeekStart); err != nil {
			return checkpoint.Wrap(err, ErrNoSpace)
		}
		if _, err := io.ReadFull(scratch, buf); err != nil {
			return checkpoint.Wrap(err, ErrNoSpace)
		}
		target := f.sectionStart() + int64(newAllocated[i].Offset)
		if err := f.writeAt(target, buf); err != nil {
			return checkpoint.Wrap(err, ErrNoSpace)
		}
	}

	return f.save()
}
