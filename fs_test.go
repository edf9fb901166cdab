package fatx

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFsCreateWriteReadRoundTrip(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	fsys := NewFs(p)

	f, err := fsys.Create("hello.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello fatx"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := fsys.Open("hello.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(f2)
	require.NoError(t, err)
	require.Equal(t, "hello fatx", string(got))
	require.NoError(t, f2.Close())
}

func TestFsMkdirAndMkdirAll(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	fsys := NewFs(p)

	require.NoError(t, fsys.Mkdir("dir1", 0))
	require.ErrorIs(t, fsys.Mkdir("dir1", 0), ErrAlreadyExists)

	require.NoError(t, fsys.MkdirAll(`a\b\c`, 0))
	info, err := fsys.Stat(`a\b\c`)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	// MkdirAll must tolerate re-creating an already-existing prefix.
	require.NoError(t, fsys.MkdirAll(`a\b\d`, 0))
}

func TestFsOpenFileFlagCombinations(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	fsys := NewFs(p)

	_, err := fsys.OpenFile("missing.txt", os.O_RDONLY, 0)
	require.ErrorIs(t, err, ErrNotFound)

	f, err := fsys.OpenFile("new.txt", os.O_RDWR|os.O_CREATE|os.O_EXCL, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = fsys.OpenFile("new.txt", os.O_RDWR|os.O_CREATE|os.O_EXCL, 0)
	require.ErrorIs(t, err, ErrAlreadyExists)

	f2, err := fsys.OpenFile("new.txt", os.O_RDWR|os.O_CREATE, 0)
	require.NoError(t, err)
	require.NoError(t, f2.Close())
}

func TestFsRemoveAndRemoveAll(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	fsys := NewFs(p)

	require.NoError(t, fsys.Mkdir("victim", 0))
	f, err := fsys.Create(`victim\child.txt`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, fsys.RemoveAll("victim"))
	_, err = fsys.Stat("victim")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFsRenameWithinAndAcrossDirectories(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	fsys := NewFs(p)

	f, err := fsys.Create("a.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, fsys.Mkdir("dest", 0))

	require.NoError(t, fsys.Rename("a.txt", "b.txt"))
	_, err = fsys.Stat("a.txt")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fsys.Rename("b.txt", `dest\b.txt`))
	info, err := fsys.Stat(`dest\b.txt`)
	require.NoError(t, err)
	require.False(t, info.IsDir())
}

func TestFsRenameRejectsMoveIntoOwnSubtree(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	fsys := NewFs(p)

	require.NoError(t, fsys.Mkdir("parent", 0))
	require.NoError(t, fsys.Mkdir(`parent\child`, 0))

	err := fsys.Rename("parent", `parent\child\parent`)
	require.ErrorIs(t, err, ErrRecursiveMove)
}

func TestFsStatRoot(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	fsys := NewFs(p)

	info, err := fsys.Stat("")
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.Equal(t, "/", info.Name())
}

func TestFsChmodTogglesReadOnly(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	fsys := NewFs(p)

	f, err := fsys.Create("ro.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, fsys.Chmod("ro.txt", 0o444))
	info, err := fsys.Stat("ro.txt")
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0), info.Mode()&0o222)

	require.NoError(t, fsys.Chmod("ro.txt", 0o644))
	info, err = fsys.Stat("ro.txt")
	require.NoError(t, err)
	require.NotEqual(t, os.FileMode(0), info.Mode()&0o200)
}

func TestFsChtimesUpdatesDirent(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	fsys := NewFs(p)

	f, err := fsys.Create("timed.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	newTime, err := time.Parse(time.RFC3339, "2020-01-02T03:04:06Z")
	require.NoError(t, err)
	require.NoError(t, fsys.Chtimes("timed.txt", newTime, newTime))

	// A round trip through the packed on-disk timestamp loses sub-second
	// precision and rounds to an even second, so compare against the
	// same lossy encoding rather than the original value.
	info, err := fsys.Stat("timed.txt")
	require.NoError(t, err)
	require.True(t, info.ModTime().Equal(unpackDateTime(packDateTime(newTime))))
}
