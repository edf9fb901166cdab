package xdbf

import "errors"

// Sentinel failure kinds for the XDBF allocator, checkable with errors.Is
// through the checkpoint chain every exported method wraps its causes in.
var (
	// ErrInvalidXDBF is returned when a stream's header magic does not
	// match the XDBF signature.
	ErrInvalidXDBF = errors.New("xdbf: invalid header magic")

	// ErrNoSpace is returned when an allocation cannot be satisfied: by
	// Allocate after its one attempt to grow the file, and by Rebuild.
	ErrNoSpace = errors.New("xdbf: no space available")

	// ErrNoFreeSlots is returned when entryMax or freeMax would be
	// exceeded by an operation that cannot itself grow those tables.
	ErrNoFreeSlots = errors.New("xdbf: entry or free table exhausted")

	// ErrUpdateFailed is returned by UpdateSection when neither an
	// in-place overwrite nor a fresh allocation could be made to work.
	ErrUpdateFailed = errors.New("xdbf: could not update section")

	// ErrNotFound is returned when a lookup by namespace+id misses.
	ErrNotFound = errors.New("xdbf: section not found")

	// ErrAlreadyExists is returned by Allocate when a section is already
	// registered under the requested (namespace, id) pair.
	ErrAlreadyExists = errors.New("xdbf: section already exists")
)
