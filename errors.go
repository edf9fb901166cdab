package fatx

import "errors"

// Sentinel failure kinds. Every exported operation that can fail wraps its
// underlying cause with one of these through checkpoint.Wrap, so callers
// can test with errors.Is regardless of how deep the cause chain runs.
var (
	// ErrNotFATX marks a partition whose header magic did not match; the
	// partition is silently dropped from Device.Partitions rather than
	// surfaced as a fatal open error.
	ErrNotFATX = errors.New("fatx: not a FATX partition")

	// ErrInvalidName is returned when a dirent name is empty, longer than
	// 42 bytes, or contains a character forbidden by the FATX name rules.
	ErrInvalidName = errors.New("fatx: invalid name")

	// ErrBadCluster is returned when a cluster index falls outside
	// [1, ClusterCount] during a read, write, or chain-map operation.
	ErrBadCluster = errors.New("fatx: cluster index out of range")

	// ErrBadChain is returned when a chain walk hits end-of-chain before
	// the caller expected it to.
	ErrBadChain = errors.New("fatx: chain ended prematurely")

	// ErrNoSpace is returned when a file cannot be extended because the
	// partition has too few free clusters.
	ErrNoSpace = errors.New("fatx: not enough free clusters")

	// ErrAlreadyExists is returned by CreateNew opens and by explicit
	// name-collision checks that are not overridden.
	ErrAlreadyExists = errors.New("fatx: dirent already exists")

	// ErrNotFound is returned when a lookup misses and the caller
	// requires success (an Open of a missing dirent, a required path
	// lookup).
	ErrNotFound = errors.New("fatx: dirent not found")

	// ErrReadOnlyViolation names a write attempted through a read-only
	// façade. Nothing in this package returns it.
	ErrReadOnlyViolation = errors.New("fatx: write attempted on read-only path")

	// ErrUnsupportedMode is returned for an unrecognized DirentStream
	// open mode.
	ErrUnsupportedMode = errors.New("fatx: unsupported open mode")

	// ErrPositionPastAllocation is returned by DirentStream.Seek when the
	// target position lies past the file's allocated cluster chain.
	ErrPositionPastAllocation = errors.New("fatx: seek position past allocated clusters")

	// ErrNotADirectory and ErrIsADirectory guard operations that require
	// (or forbid) a dirent to be a directory.
	ErrNotADirectory = errors.New("fatx: dirent is not a directory")
	ErrIsADirectory  = errors.New("fatx: dirent is a directory")

	// ErrRecursiveMove is returned by Fs.Rename when the destination path
	// lies inside the source directory being moved.
	ErrRecursiveMove = errors.New("fatx: cannot move a directory into its own subtree")
)
