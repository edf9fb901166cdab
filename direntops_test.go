package fatx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateDirentThenReadDirectory(t *testing.T) {
	p := newTestPartition(t, 4096, 16)

	a, err := p.CreateDirent(p.RootDirFirstCluster, "a.txt", false)
	require.NoError(t, err)
	require.Equal(t, uint32(0), a.Size)
	require.Equal(t, ClusterEOF, a.FirstCluster)

	dir, err := p.CreateDirent(p.RootDirFirstCluster, "sub", true)
	require.NoError(t, err)
	require.True(t, dir.IsDirectory())
	require.NotEqual(t, ClusterEOF, dir.FirstCluster)

	entries, err := p.ReadDirectory(p.RootDirFirstCluster)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a.txt", entries[0].Name)
	require.Equal(t, "sub", entries[1].Name)
}

func TestCreateDirentExtendsDirectoryChain(t *testing.T) {
	p := newTestPartition(t, 512, 32)
	slots := int(p.DirentsPerCluster)

	for i := 0; i < slots+3; i++ {
		_, err := p.CreateDirent(p.RootDirFirstCluster, nameFor(i), false)
		require.NoError(t, err)
	}

	entries, err := p.ReadDirectory(p.RootDirFirstCluster)
	require.NoError(t, err)
	require.Len(t, entries, slots+3)

	length, err := p.chainLength(p.RootDirFirstCluster)
	require.NoError(t, err)
	require.Equal(t, 2, length)
}

func nameFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%26]) + string(rune('0'+i/26))
}

func TestDirentDeleteFreesChainAndSoftDeletes(t *testing.T) {
	p := newTestPartition(t, 512, 16)

	f, err := p.CreateDirent(p.RootDirFirstCluster, "file.bin", false)
	require.NoError(t, err)

	ds, err := OpenDirentStream(p, p.RootDirFirstCluster, "file.bin", ModeOpen)
	require.NoError(t, err)
	_, err = ds.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	freeBefore := p.GetFreeClusterCount()

	entries, err := p.ReadDirectory(p.RootDirFirstCluster)
	require.NoError(t, err)
	require.Equal(t, f.Name, entries[0].Name)

	require.NoError(t, p.DirentDelete(entries[0]))
	require.True(t, entries[0].IsDeleted())
	require.Greater(t, p.GetFreeClusterCount(), freeBefore)

	_, err = p.DirentGet(p.RootDirFirstCluster, "file.bin")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDirentRename(t *testing.T) {
	p := newTestPartition(t, 512, 8)
	d, err := p.CreateDirent(p.RootDirFirstCluster, "old.txt", false)
	require.NoError(t, err)

	require.NoError(t, p.DirentRename(d, "new.txt"))

	_, err = p.DirentGet(p.RootDirFirstCluster, "old.txt")
	require.ErrorIs(t, err, ErrNotFound)

	found, err := p.DirentGet(p.RootDirFirstCluster, "new.txt")
	require.NoError(t, err)
	require.Equal(t, "new.txt", found.Name)
}

func TestMoveDirentAcrossDirectories(t *testing.T) {
	p := newTestPartition(t, 512, 16)
	dir, err := p.CreateDirent(p.RootDirFirstCluster, "dst", true)
	require.NoError(t, err)

	_, err = p.CreateDirent(p.RootDirFirstCluster, "movee.txt", false)
	require.NoError(t, err)

	ds, err := OpenDirentStream(p, p.RootDirFirstCluster, "movee.txt", ModeOpen)
	require.NoError(t, err)
	_, err = ds.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	entries, err := p.ReadDirectory(p.RootDirFirstCluster)
	require.NoError(t, err)
	var src *Dirent
	for _, e := range entries {
		if e.Name == "movee.txt" {
			src = e
		}
	}
	require.NotNil(t, src)
	firstCluster := src.FirstCluster

	moved, err := p.MoveDirent(dir.FirstCluster, src)
	require.NoError(t, err)
	require.Equal(t, "movee.txt", moved.Name)
	require.Equal(t, firstCluster, moved.FirstCluster)

	require.True(t, src.IsDeleted())
	require.Equal(t, ClusterEOF, src.FirstCluster)

	found, err := p.DirentGet(dir.FirstCluster, "movee.txt")
	require.NoError(t, err)

	ds2, err := OpenDirentStream(p, dir.FirstCluster, found.Name, ModeOpen)
	require.NoError(t, err)
	buf := make([]byte, len("payload"))
	_, err = ds2.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf))
}

func TestDirentGetTypedRejectsWrongType(t *testing.T) {
	p := newTestPartition(t, 512, 8)
	_, err := p.CreateDirent(p.RootDirFirstCluster, "afile", false)
	require.NoError(t, err)

	_, err = p.DirentGetTyped(p.RootDirFirstCluster, "afile", true)
	require.ErrorIs(t, err, ErrNotFound)

	found, err := p.DirentGetTyped(p.RootDirFirstCluster, "afile", false)
	require.NoError(t, err)
	require.Equal(t, "afile", found.Name)
}

func TestUndeleteDirentRecoversName(t *testing.T) {
	p := newTestPartition(t, 512, 8)
	d, err := p.CreateDirent(p.RootDirFirstCluster, "recoverme", false)
	require.NoError(t, err)
	parent, slot := d.parentCluster, d.slotIndex

	require.NoError(t, p.DirentDelete(d))

	recovered, err := p.UndeleteDirent(parent, slot)
	require.NoError(t, err)
	require.Equal(t, "recoverme", recovered.Name)
}

func TestDeleteRecursiveRemovesTree(t *testing.T) {
	p := newTestPartition(t, 512, 32)
	dir, err := p.CreateDirent(p.RootDirFirstCluster, "tree", true)
	require.NoError(t, err)

	_, err = p.CreateDirent(dir.FirstCluster, "child1", false)
	require.NoError(t, err)
	sub, err := p.CreateDirent(dir.FirstCluster, "childdir", true)
	require.NoError(t, err)
	_, err = p.CreateDirent(sub.FirstCluster, "grandchild", false)
	require.NoError(t, err)

	require.NoError(t, p.DeleteRecursive(dir))

	_, err = p.DirentGet(p.RootDirFirstCluster, "tree")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWalkVisitsEveryLiveEntry(t *testing.T) {
	p := newTestPartition(t, 512, 32)
	dir, err := p.CreateDirent(p.RootDirFirstCluster, "root2", true)
	require.NoError(t, err)
	_, err = p.CreateDirent(dir.FirstCluster, "one", false)
	require.NoError(t, err)
	_, err = p.CreateDirent(dir.FirstCluster, "two", false)
	require.NoError(t, err)

	var names []string
	require.NoError(t, p.Walk(dir.FirstCluster, func(d *Dirent) error {
		names = append(names, d.Name)
		return nil
	}))
	require.ElementsMatch(t, []string{"one", "two"}, names)
}
