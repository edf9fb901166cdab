// Package chained implements a virtual seekable stream that composes an
// ordered sequence of sub-streams into one continuous byte range. Xbox 360
// USB sticks store a single logical FATX volume as a sequence of 4 GiB
// data files (FAT32 host filesystems cap a single file at just under
// 4 GiB); this stream lets the fatx package address such a volume exactly
// as it would a single file.
package chained

import (
	"errors"
	"io"

	"go.uber.org/multierr"

	"github.com/xboxfatx/fatx/checkpoint"
	"github.com/xboxfatx/fatx/iostream"
)

// ErrUnsupported is returned by SetLength: a chained stream's total length
// is the sum of its sub-streams' fixed lengths and cannot be resized
// without adding or removing a sub-stream, which this package leaves to
// the caller that built the chain.
var ErrUnsupported = errors.New("chained: operation not supported")

// Stream is an ordered list of sub-streams presented as a single
// contiguous, seekable Stream. Its total length is the sum of the
// sub-streams' lengths at construction time; sub-stream boundaries are
// invisible to callers except that no single Read or Write call is
// guaranteed to be served from only one sub-stream — this package splits
// buffers across the boundary transparently.
type Stream struct {
	subs    []iostream.Stream
	offsets []int64 // offsets[i] = starting virtual offset of subs[i]
	length  int64

	position int64
	index    int // which sub-stream position currently falls in
}

var _ iostream.Stream = (*Stream)(nil)

// New builds a chained stream over subs, in order. Each sub-stream's
// current Len() is captured once, at construction; sub-streams must not
// change size for the lifetime of the chain (matches the fixed-size FATX
// data-chunk files this type exists to serve).
func New(subs []iostream.Stream) (*Stream, error) {
	if len(subs) == 0 {
		return nil, checkpoint.From(errors.New("chained: no sub-streams given"))
	}

	offsets := make([]int64, len(subs))
	var total int64
	for i, s := range subs {
		offsets[i] = total
		l, err := s.Len()
		if err != nil {
			return nil, checkpoint.Wrap(err, errors.New("chained: could not read sub-stream length"))
		}
		total += l
	}

	return &Stream{subs: subs, offsets: offsets, length: total}, nil
}

// Len reports the fixed total length of the chain.
func (c *Stream) Len() (int64, error) {
	return c.length, nil
}

// Seek moves the virtual position and updates which sub-stream currently
// owns it, without touching any sub-stream's own position until the next
// Read or Write.
func (c *Stream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = c.position + offset
	case io.SeekEnd:
		target = c.length + offset
	default:
		return 0, checkpoint.From(errors.New("chained: invalid whence"))
	}

	if target < 0 || target > c.length {
		return 0, checkpoint.From(io.EOF)
	}

	c.position = target
	c.index = c.streamIndexFor(target)
	return target, nil
}

// streamIndexFor returns the index of the sub-stream containing virtual
// offset pos. pos == c.length resolves to the last sub-stream (an
// at-end position with nothing left to read).
func (c *Stream) streamIndexFor(pos int64) int {
	for i := len(c.subs) - 1; i >= 0; i-- {
		if pos >= c.offsets[i] {
			return i
		}
	}
	return 0
}

// seekSubTo positions sub-stream i at the byte corresponding to virtual
// offset pos.
func (c *Stream) seekSubTo(i int, pos int64) error {
	_, err := c.subs[i].Seek(pos-c.offsets[i], io.SeekStart)
	return err
}

// Read fills p from the chain starting at the current position, crossing
// sub-stream boundaries as needed. It returns io.EOF only once the whole
// chain is exhausted, matching io.Reader semantics for a single logical
// stream.
func (c *Stream) Read(p []byte) (int, error) {
	if c.position >= c.length {
		return 0, io.EOF
	}

	total := 0
	for total < len(p) && c.position < c.length {
		if err := c.seekSubTo(c.index, c.position); err != nil {
			return total, checkpoint.Wrap(err, errors.New("chained: seek into sub-stream failed"))
		}

		remaining := c.offsets[c.index] + c.subLen(c.index) - c.position
		want := int64(len(p) - total)
		if want > remaining {
			want = remaining
		}

		n, err := c.subs[c.index].Read(p[total : int64(total)+want])
		total += n
		c.position += int64(n)

		if err != nil && err != io.EOF {
			return total, checkpoint.Wrap(err, errors.New("chained: read from sub-stream failed"))
		}

		if c.position >= c.offsets[c.index]+c.subLen(c.index) && c.index < len(c.subs)-1 {
			c.index++
		}

		if n == 0 && err == io.EOF {
			break
		}
	}

	return total, nil
}

// Write writes p into the chain starting at the current position,
// crossing sub-stream boundaries as needed. Writing past the end of the
// last sub-stream is an error: SetLength is unsupported, so the chain's
// total capacity is fixed at construction.
func (c *Stream) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if c.position >= c.length {
			return total, checkpoint.Wrap(io.ErrShortWrite, errors.New("chained: write past end of chain"))
		}

		if err := c.seekSubTo(c.index, c.position); err != nil {
			return total, checkpoint.Wrap(err, errors.New("chained: seek into sub-stream failed"))
		}

		remaining := c.offsets[c.index] + c.subLen(c.index) - c.position
		want := int64(len(p) - total)
		if want > remaining {
			want = remaining
		}

		n, err := c.subs[c.index].Write(p[total : int64(total)+want])
		total += n
		c.position += int64(n)

		if err != nil {
			return total, checkpoint.Wrap(err, errors.New("chained: write to sub-stream failed"))
		}

		if c.position >= c.offsets[c.index]+c.subLen(c.index) && c.index < len(c.subs)-1 {
			c.index++
		}
	}

	return total, nil
}

func (c *Stream) subLen(i int) int64 {
	if i == len(c.subs)-1 {
		return c.length - c.offsets[i]
	}
	return c.offsets[i+1] - c.offsets[i]
}

// SetLength always fails: a chained stream's capacity is the sum of its
// sub-streams' fixed sizes.
func (c *Stream) SetLength(int64) error {
	return checkpoint.From(ErrUnsupported)
}

// Flush flushes every sub-stream and, for any that expose an OS file
// handle, additionally issues a flush-file-buffers call. Every sub-stream
// is flushed even if an earlier one fails, and all failures are reported
// together rather than only the first.
func (c *Stream) Flush() error {
	var errs error
	for _, s := range c.subs {
		if err := s.Flush(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return checkpoint.Wrap(errs, errors.New("chained: one or more sub-streams failed to flush"))
	}
	return nil
}

// Close closes every sub-stream that supports it, collecting every error
// rather than stopping at the first.
func (c *Stream) Close() error {
	var errs error
	for _, s := range c.subs {
		if closer, ok := s.(iostream.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	if errs != nil {
		return checkpoint.Wrap(errs, errors.New("chained: one or more sub-streams failed to close"))
	}
	return nil
}
