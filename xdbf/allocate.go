package xdbf

import (
	"errors"

	"github.com/xboxfatx/fatx/checkpoint"
)

// Allocate reserves size bytes of data-area space for (namespace, id) and
// records it in the allocated table. It prefers an exact-size free
// section; failing that, the lowest-offset free section large enough to
// hold size, split so the remainder stays free. If no free section fits
// even after one attempt to grow the file (ExpandFileSize), it fails.
func (f *File) Allocate(size int32, ns Namespace, id int64) (*AllocatedSection, error) {
	if _, exists := f.find(ns, id); exists {
		return nil, checkpoint.From(ErrAlreadyExists)
	}

	section, err := f.tryAllocate(size, ns, id)
	if err == nil {
		return section, nil
	}

	if expandErr := f.expandFileSize(size); expandErr != nil {
		return nil, checkpoint.Wrap(expandErr, ErrNoSpace)
	}

	section, err = f.tryAllocate(size, ns, id)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrNoSpace)
	}
	return section, nil
}

// tryAllocate performs one best-fit pass with no expansion.
func (f *File) tryAllocate(size int32, ns Namespace, id int64) (*AllocatedSection, error) {
	exactIdx := -1
	bestIdx := -1

	for i, fr := range f.free {
		if int32(fr.Size) == size {
			exactIdx = i
			break
		}
		if int32(fr.Size) >= size {
			if bestIdx == -1 || fr.Offset < f.free[bestIdx].Offset {
				bestIdx = i
			}
		}
	}

	if exactIdx != -1 {
		fr := f.free[exactIdx]
		f.free = append(f.free[:exactIdx], f.free[exactIdx+1:]...)
		return f.commitAllocation(fr.Offset, size, ns, id)
	}

	if bestIdx == -1 {
		return nil, checkpoint.From(ErrNoSpace)
	}

	if uint32(len(f.allocated)) >= f.entryMax {
		return nil, checkpoint.From(ErrNoFreeSlots)
	}

	fr := f.free[bestIdx]
	remainder := FreeSection{Offset: fr.Offset + size, Size: fr.Size - uint32(size)}
	f.free[bestIdx] = remainder
	return f.commitAllocation(fr.Offset, size, ns, id)
}

func (f *File) commitAllocation(offset, size int32, ns Namespace, id int64) (*AllocatedSection, error) {
	section := AllocatedSection{Namespace: ns, ID: id, Offset: offset, Size: size}
	f.allocated = append(f.allocated, section)
	if err := f.save(); err != nil {
		return nil, err
	}
	return &section, nil
}

// regionRef tags the highest-offset region found across both the
// allocated and free lists, disambiguating which list index it lives in.
// The reference implementation this module is grounded on scans both
// lists but tracks a single index variable shared between them — a bug
// noted in this project's SPEC_FULL.md as one to fix rather than
// reproduce.
type regionRef struct {
	isFree bool
	index  int
}

// expandFileSize grows the backing stream by amount and either widens the
// highest-offset free region to absorb it, or, if the highest-offset
// region is allocated, appends a brand new free section immediately past
// it.
func (f *File) expandFileSize(amount int32) error {
	var highest *regionRef
	var highestEnd int64 = -1

	for i, a := range f.allocated {
		if a.end() > highestEnd {
			highestEnd = a.end()
			highest = &regionRef{isFree: false, index: i}
		}
	}
	for i, fr := range f.free {
		if fr.end() > highestEnd {
			highestEnd = fr.end()
			highest = &regionRef{isFree: true, index: i}
		}
	}

	length, err := f.stream.Len()
	if err != nil {
		return err
	}

	if highest == nil || highest.isFree {
		if err := f.stream.SetLength(length + int64(amount)); err != nil {
			return err
		}
		if highest == nil {
			f.free = append(f.free, FreeSection{Offset: 0, Size: uint32(amount)})
		} else {
			f.free[highest.index].Size += uint32(amount)
		}
		return f.save()
	}

	if uint32(len(f.free)) >= f.freeMax {
		return checkpoint.From(ErrNoFreeSlots)
	}

	alloc := f.allocated[highest.index]
	if err := f.stream.SetLength(length + int64(amount)); err != nil {
		return err
	}
	f.free = append(f.free, FreeSection{Offset: int32(alloc.end()), Size: uint32(amount)})
	return f.save()
}

// Free releases an allocated section back to the free list, zeroing its
// former data-area bytes first. section is looked up by (Namespace, ID)
// so a stale copy of an AllocatedSection (one whose Offset/Size predate a
// Rebuild) is refreshed against the live table before being freed.
func (f *File) Free(section AllocatedSection) error {
	idx, ok := f.find(section.Namespace, section.ID)
	if !ok {
		return checkpoint.From(ErrNotFound)
	}
	live := f.allocated[idx]

	if err := f.zeroAt(f.sectionStart()+int64(live.Offset), int64(live.Size)); err != nil {
		return checkpoint.Wrap(err, errors.New("xdbf: could not zero freed section"))
	}

	f.allocated = append(f.allocated[:idx], f.allocated[idx+1:]...)
	f.free = append(f.free, FreeSection{Offset: live.Offset, Size: uint32(live.Size)})

	sortAllocated(f.allocated)
	sortFree(f.free)

	return f.save()
}

// UpdateSection writes data as the content of (namespace, id), allocating
// a new section if one doesn't exist, overwriting in place if the size is
// unchanged, or freeing and reallocating (retrying once after a Rebuild
// on failure) if the size has changed.
func (f *File) UpdateSection(ns Namespace, id int64, data []byte) (*AllocatedSection, error) {
	idx, ok := f.find(ns, id)
	if !ok {
		section, err := f.Allocate(int32(len(data)), ns, id)
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrUpdateFailed)
		}
		if err := f.writeAt(f.sectionStart()+int64(section.Offset), data); err != nil {
			return nil, checkpoint.Wrap(err, ErrUpdateFailed)
		}
		return section, nil
	}

	current := f.allocated[idx]
	if current.Size == int32(len(data)) {
		if err := f.writeAt(f.sectionStart()+int64(current.Offset), data); err != nil {
			return nil, checkpoint.Wrap(err, ErrUpdateFailed)
		}
		return &current, nil
	}

	if err := f.Free(current); err != nil {
		return nil, checkpoint.Wrap(err, ErrUpdateFailed)
	}

	section, err := f.Allocate(int32(len(data)), ns, id)
	if err != nil {
		if rebuildErr := f.Rebuild(); rebuildErr != nil {
			return nil, checkpoint.Wrap(rebuildErr, ErrNoSpace)
		}
		section, err = f.Allocate(int32(len(data)), ns, id)
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrNoSpace)
		}
	}

	if err := f.writeAt(f.sectionStart()+int64(section.Offset), data); err != nil {
		return nil, checkpoint.Wrap(err, ErrUpdateFailed)
	}

	sortAllocated(f.allocated)
	sortFree(f.free)

	return section, nil
}

// ClearAllFreeData overwrites every free region's bytes with zeros,
// without changing either table.
func (f *File) ClearAllFreeData() error {
	for _, fr := range f.free {
		if err := f.zeroAt(f.sectionStart()+int64(fr.Offset), int64(fr.Size)); err != nil {
			return checkpoint.Wrap(err, errors.New("xdbf: could not clear free section"))
		}
	}
	return nil
}
