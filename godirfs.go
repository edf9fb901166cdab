package fatx

import (
	"errors"
	"io/fs"
)

// GoDirEntry adapts an os.FileInfo (as returned by File.Readdir) to
// fs.DirEntry.
type GoDirEntry struct {
	fs.FileInfo
}

func (g GoDirEntry) Type() fs.FileMode { return g.FileInfo.Mode().Type() }

func (g GoDirEntry) Info() (fs.FileInfo, error) { return g.FileInfo, nil }

// GoFile adapts File to fs.File and fs.ReadDirFile.
type GoFile struct {
	*File
}

func (g GoFile) Stat() (fs.FileInfo, error) { return g.File.Stat() }
func (g GoFile) Read(p []byte) (int, error) { return g.File.Read(p) }
func (g GoFile) Close() error               { return g.File.Close() }

func (g GoFile) ReadDir(n int) ([]fs.DirEntry, error) {
	entries, err := g.File.Readdir(n)
	goEntries := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		goEntries[i] = GoDirEntry{e}
	}
	return goEntries, err
}

// GoFs wraps Fs to satisfy fs.FS. It has no ReadDir method of its own, so
// it is not an fs.ReadDirFS; directories it opens are fs.ReadDirFile values.
type GoFs struct {
	*Fs
}

// NewGoFS wraps an already-read partition as an fs.FS.
func NewGoFS(p *Partition) *GoFs {
	return &GoFs{NewFs(p)}
}

func (g GoFs) Open(name string) (fs.File, error) {
	file, err := g.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	f, ok := file.(*File)
	if !ok {
		return nil, errors.New("fatx: unexpected afero.File implementation")
	}
	return GoFile{f}, nil
}
