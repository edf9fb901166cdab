package chained

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xboxfatx/fatx/iostream"
)

// newSub backs each chunk with its own disposable scratch file rather
// than an in-memory stream, so t.Parallel runs never collide on a shared
// name and each chunk cleans itself up on close.
func newSub(t *testing.T, size int64) iostream.Stream {
	t.Helper()
	s, err := iostream.NewScratchFileStream(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.SetLength(size))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestChainedStreamCrossesBoundaries(t *testing.T) {
	subs := []iostream.Stream{newSub(t, 10), newSub(t, 10), newSub(t, 10)}
	c, err := New(subs)
	require.NoError(t, err)

	length, err := c.Len()
	require.NoError(t, err)
	require.EqualValues(t, 30, length)

	_, err = c.Seek(5, io.SeekStart)
	require.NoError(t, err)

	payload := make([]byte, 15)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	n, err := c.Write(payload)
	require.NoError(t, err)
	require.Equal(t, 15, n)

	_, err = c.Seek(5, io.SeekStart)
	require.NoError(t, err)

	readBack := make([]byte, 15)
	n, err = io.ReadFull(c, readBack)
	require.NoError(t, err)
	require.Equal(t, 15, n)
	require.Equal(t, payload, readBack)
}

func TestChainedStreamSetLengthUnsupported(t *testing.T) {
	c, err := New([]iostream.Stream{newSub(t, 10)})
	require.NoError(t, err)
	require.ErrorIs(t, c.SetLength(20), ErrUnsupported)
}

func TestChainedStreamReadEOFAtEnd(t *testing.T) {
	c, err := New([]iostream.Stream{newSub(t, 4)})
	require.NoError(t, err)

	_, err = c.Seek(0, io.SeekEnd)
	require.NoError(t, err)

	buf := make([]byte, 1)
	_, err = c.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestChainedStreamFlushSucceedsForHealthySubStreams(t *testing.T) {
	c, err := New([]iostream.Stream{newSub(t, 4), newSub(t, 4)})
	require.NoError(t, err)
	require.NoError(t, c.Flush())
}
