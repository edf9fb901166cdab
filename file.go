package fatx

import (
	"io"
	"os"

	"github.com/xboxfatx/fatx/checkpoint"
)

// File is an afero.File over either a dirent's data stream (regular
// files) or a live directory listing (directories, including root).
type File struct {
	partition *Partition
	dirent    *Dirent // nil for root
	stream    *DirentStream
	path      string

	dirEntries []*Dirent
	dirLoaded  bool
	dirOffset  int
}

func (f *File) isDirectory() bool {
	return f.dirent == nil || f.dirent.IsDirectory()
}

func (f *File) Close() error {
	if f.stream != nil {
		return f.stream.Close()
	}
	return nil
}

func (f *File) Read(p []byte) (int, error) {
	if f.stream == nil {
		return 0, checkpoint.From(ErrIsADirectory)
	}
	return f.stream.Read(p)
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.stream == nil {
		return 0, checkpoint.From(ErrIsADirectory)
	}
	cur, err := f.stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := f.stream.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := f.stream.Read(p)
	if _, serr := f.stream.Seek(cur, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	return n, err
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.stream == nil {
		return 0, checkpoint.From(ErrIsADirectory)
	}
	return f.stream.Seek(offset, whence)
}

func (f *File) Write(p []byte) (int, error) {
	if f.stream == nil {
		return 0, checkpoint.From(ErrIsADirectory)
	}
	return f.stream.Write(p)
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if f.stream == nil {
		return 0, checkpoint.From(ErrIsADirectory)
	}
	cur, err := f.stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := f.stream.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := f.stream.Write(p)
	if _, serr := f.stream.Seek(cur, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	return n, err
}

func (f *File) Name() string { return f.path }

func (f *File) loadDirEntries() error {
	if f.dirLoaded {
		return nil
	}
	cluster := f.partition.RootDirFirstCluster
	if f.dirent != nil {
		cluster = f.dirent.FirstCluster
	}
	entries, err := f.partition.ReadDirectory(cluster)
	if err != nil {
		return err
	}
	live := make([]*Dirent, 0, len(entries))
	for _, e := range entries {
		if !e.IsDeleted() {
			live = append(live, e)
		}
	}
	f.dirEntries = live
	f.dirLoaded = true
	return nil
}

// Readdir returns up to count entries (or all remaining if count <= 0),
// matching afero.File's paging convention.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if !f.isDirectory() {
		return nil, checkpoint.From(ErrNotADirectory)
	}
	if err := f.loadDirEntries(); err != nil {
		return nil, err
	}

	remaining := len(f.dirEntries) - f.dirOffset
	if remaining <= 0 {
		if count > 0 {
			return nil, io.EOF
		}
		return nil, nil
	}

	n := remaining
	var err error
	if count > 0 && count < remaining {
		n = count
	} else if count > 0 {
		err = io.EOF
	}

	slice := f.dirEntries[f.dirOffset : f.dirOffset+n]
	f.dirOffset += n

	infos := make([]os.FileInfo, len(slice))
	for i, e := range slice {
		infos[i] = e.FileInfo()
	}
	return infos, err
}

func (f *File) Readdirnames(count int) ([]string, error) {
	infos, err := f.Readdir(count)
	if err != nil && err != io.EOF {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, fi := range infos {
		names[i] = fi.Name()
	}
	return names, err
}

func (f *File) Stat() (os.FileInfo, error) {
	if f.dirent == nil {
		return rootFileInfo{}, nil
	}
	return f.dirent.FileInfo(), nil
}

func (f *File) Sync() error {
	if f.stream != nil {
		return f.stream.Flush()
	}
	return nil
}

func (f *File) Truncate(size int64) error {
	if f.stream == nil {
		return checkpoint.From(ErrIsADirectory)
	}
	return f.stream.SetLength(size)
}

func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}
