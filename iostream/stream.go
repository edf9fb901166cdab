// Package iostream defines the abstract seekable byte stream that every
// higher layer of this module — a FATX partition, the XDBF allocator, the
// chained multi-file stream — treats as its only contract with the outside
// world. Acquiring an OS raw-disk handle, mapping a device node, or wiring
// up progress reporting around one of these are all left to the caller;
// this package only describes the shape a caller's stream must have.
package iostream

import "io"

// Stream is a seekable byte stream with an explicit length that can be
// grown or shrunk. A single os.File satisfies it once wrapped by
// NewFileStream; so does the chained stream in the sibling chained
// package, and the in-memory stream returned by NewMemoryStream used by
// this module's own tests in place of a real device handle.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker

	// Len reports the current total length of the stream in bytes.
	Len() (int64, error)

	// Flush pushes any buffered writes to the backing medium.
	Flush() error

	// SetLength grows or shrinks the stream to exactly n bytes. Growing
	// pads with zero bytes; shrinking discards trailing bytes past n.
	SetLength(n int64) error
}

// Closer is implemented by streams that own an underlying OS resource and
// need an explicit release step distinct from Flush.
type Closer interface {
	Close() error
}
