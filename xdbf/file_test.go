package xdbf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xboxfatx/fatx/iostream"
)

func newTestFile(t *testing.T) *File {
	t.Helper()
	stream, err := iostream.NewMemoryStream()
	require.NoError(t, err)
	f, err := New(stream)
	require.NoError(t, err)
	return f
}

func TestNewFileRoundTripsThroughOpen(t *testing.T) {
	stream, err := iostream.NewMemoryStream()
	require.NoError(t, err)

	f, err := New(stream)
	require.NoError(t, err)

	section, err := f.Allocate(100, NamespaceTitle, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, section.Offset)

	reopened, err := Open(stream)
	require.NoError(t, err)
	require.Len(t, reopened.allocated, 1)
	require.Equal(t, NamespaceTitle, reopened.allocated[0].Namespace)
	require.EqualValues(t, 1, reopened.allocated[0].ID)
	require.EqualValues(t, 100, reopened.allocated[0].Size)
}

func TestAllocateSplitsAndLeavesTailFree(t *testing.T) {
	f := newTestFile(t)

	a, err := f.Allocate(100, NamespaceAchievement, 1)
	require.NoError(t, err)
	b, err := f.Allocate(200, NamespaceAchievement, 2)
	require.NoError(t, err)
	c, err := f.Allocate(50, NamespaceAchievement, 3)
	require.NoError(t, err)

	require.NoError(t, f.Free(*b))

	// A 150-byte allocation should fit inside the freed 200-byte gap and
	// leave a 50-byte remainder free.
	d, err := f.Allocate(150, NamespaceAchievement, 4)
	require.NoError(t, err)
	require.Equal(t, b.Offset, d.Offset)

	require.Len(t, f.free, 1)
	require.EqualValues(t, 50, f.free[0].Size)
	require.EqualValues(t, d.Offset+150, f.free[0].Offset)

	// A 200-byte allocation no longer fits any free region and must
	// trigger ExpandFileSize.
	lengthBefore, err := f.stream.Len()
	require.NoError(t, err)

	e, err := f.Allocate(200, NamespaceAchievement, 5)
	require.NoError(t, err)

	lengthAfter, err := f.stream.Len()
	require.NoError(t, err)
	require.Greater(t, lengthAfter, lengthBefore)

	_ = a
	_ = c
	_ = e
}

func TestUpdateSectionInPlaceAndResize(t *testing.T) {
	f := newTestFile(t)

	section, err := f.UpdateSection(NamespaceSetting, 42, []byte("hello"))
	require.NoError(t, err)
	require.EqualValues(t, 5, section.Size)

	data, err := f.readAt(f.sectionStart()+int64(section.Offset), section.Size)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	// Same size: overwrite in place.
	section2, err := f.UpdateSection(NamespaceSetting, 42, []byte("world"))
	require.NoError(t, err)
	require.Equal(t, section.Offset, section2.Offset)

	// Different size: free and reallocate.
	section3, err := f.UpdateSection(NamespaceSetting, 42, []byte("a longer payload"))
	require.NoError(t, err)
	require.EqualValues(t, len("a longer payload"), section3.Size)

	data, err = f.readAt(f.sectionStart()+int64(section3.Offset), section3.Size)
	require.NoError(t, err)
	require.Equal(t, "a longer payload", string(data))
}

func TestRebuildProducesContiguousSortedTable(t *testing.T) {
	f := newTestFile(t)

	for i := 0; i < 50; i++ {
		_, err := f.UpdateSection(NamespaceString, int64(i), []byte{byte(i), byte(i + 1)})
		require.NoError(t, err)
	}
	for i := 0; i < 25; i++ {
		section, ok := f.find(NamespaceString, int64(i))
		require.True(t, ok)
		require.NoError(t, f.Free(f.allocated[section]))
	}

	require.NoError(t, f.Rebuild())

	require.Len(t, f.free, 1)
	var runningOffset int64
	for _, a := range f.allocated {
		require.Equal(t, runningOffset, int64(a.Offset))
		runningOffset += int64(a.Size)
	}
	require.Equal(t, runningOffset, int64(f.free[0].Offset))

	for i := 1; i < len(f.allocated); i++ {
		prev, cur := f.allocated[i-1], f.allocated[i]
		if prev.Namespace == cur.Namespace {
			require.Less(t, prev.ID, cur.ID)
		} else {
			require.Less(t, prev.Namespace, cur.Namespace)
		}
	}
}

func TestFreeThenAllocateExactFit(t *testing.T) {
	f := newTestFile(t)

	section, err := f.Allocate(64, NamespaceImage, 7)
	require.NoError(t, err)
	require.NoError(t, f.Free(*section))

	again, err := f.Allocate(64, NamespaceImage, 8)
	require.NoError(t, err)
	require.Equal(t, section.Offset, again.Offset)
	require.Empty(t, f.free)
}

func TestAllocateDuplicateKeyFails(t *testing.T) {
	f := newTestFile(t)
	_, err := f.Allocate(10, NamespaceTitle, 1)
	require.NoError(t, err)

	_, err = f.Allocate(10, NamespaceTitle, 1)
	require.ErrorIs(t, err, ErrAlreadyExists)
}
