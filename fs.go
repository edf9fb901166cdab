package fatx

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/xboxfatx/fatx/checkpoint"
)

var _ afero.Fs = (*Fs)(nil)

// Fs is an afero.Fs over a single FATX partition.
type Fs struct {
	partition *Partition
}

// NewFs wraps an already-read partition as an afero.Fs.
func NewFs(p *Partition) *Fs {
	return &Fs{partition: p}
}

// resolveParent splits path into the cluster of its containing directory
// and its final component, walking every intermediate component (which
// must already exist and be a directory).
func (fs *Fs) resolveParent(path string) (parentCluster uint32, base string, err error) {
	components := splitPath(path)
	if len(components) == 0 {
		return 0, "", checkpoint.From(ErrInvalidName)
	}
	if len(components) == 1 {
		return fs.partition.RootDirFirstCluster, components[0], nil
	}

	parentPath := strings.Join(components[:len(components)-1], `\`)
	parent, err := fs.partition.DirentGetTyped(fs.partition.RootDirFirstCluster, parentPath, true)
	if err != nil {
		return 0, "", err
	}
	return parent.FirstCluster, components[len(components)-1], nil
}

// resolve looks up path from root, returning (nil, nil) for the root
// path itself.
func (fs *Fs) resolve(path string) (*Dirent, error) {
	if len(splitPath(path)) == 0 {
		return nil, nil
	}
	return fs.partition.DirentGet(fs.partition.RootDirFirstCluster, path)
}

func modeToOpenMode(flag int) OpenMode {
	switch {
	case flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return ModeCreateNew
	case flag&os.O_CREATE != 0 && flag&os.O_TRUNC != 0:
		return ModeCreate
	case flag&os.O_APPEND != 0:
		return ModeAppend
	case flag&os.O_CREATE != 0:
		return ModeOpenOrCreate
	case flag&os.O_TRUNC != 0:
		return ModeTruncate
	default:
		return ModeOpen
	}
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0)
}

func (fs *Fs) Mkdir(name string, _ os.FileMode) error {
	parentCluster, base, err := fs.resolveParent(name)
	if err != nil {
		return err
	}

	entries, err := fs.partition.ReadDirectory(parentCluster)
	if err != nil {
		return err
	}
	if findChild(entries, base) != nil {
		return checkpoint.From(ErrAlreadyExists)
	}

	_, err = fs.partition.CreateDirent(parentCluster, base, true)
	return err
}

func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	components := splitPath(path)
	built := ""
	for _, c := range components {
		if built == "" {
			built = c
		} else {
			built = built + `\` + c
		}
		if err := fs.Mkdir(built, perm); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return err
		}
	}
	return nil
}

func (fs *Fs) Open(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

func (fs *Fs) OpenFile(name string, flag int, _ os.FileMode) (afero.File, error) {
	if len(splitPath(name)) == 0 {
		return &File{partition: fs.partition, path: "/"}, nil
	}

	existing, err := fs.resolve(name)
	if err == nil && existing.IsDirectory() {
		return &File{partition: fs.partition, dirent: existing, path: name}, nil
	}

	parentCluster, base, err := fs.resolveParent(name)
	if err != nil {
		return nil, err
	}

	stream, err := OpenDirentStream(fs.partition, parentCluster, base, modeToOpenMode(flag))
	if err != nil {
		return nil, err
	}
	return &File{partition: fs.partition, dirent: stream.Dirent(), stream: stream, path: name}, nil
}

func (fs *Fs) Remove(name string) error {
	d, err := fs.resolve(name)
	if err != nil {
		return err
	}
	if d == nil {
		return checkpoint.From(ErrIsADirectory)
	}
	return fs.partition.DeleteRecursive(d)
}

// RemoveAll behaves identically to Remove: the on-disk format tracks no
// child count for a directory, so enforcing "empty directories only" for
// Remove would need the same full listing scan RemoveAll already does,
// while silently orphaning a non-empty directory's clusters on a bare
// Remove is the worse failure mode.
func (fs *Fs) RemoveAll(path string) error {
	return fs.Remove(path)
}

func (fs *Fs) Rename(oldname, newname string) error {
	source, err := fs.resolve(oldname)
	if err != nil {
		return err
	}
	if source == nil {
		return checkpoint.From(ErrInvalidName)
	}

	normOld := strings.ToLower(normalizePath(oldname))
	normNew := strings.ToLower(normalizePath(newname))
	if normNew == normOld {
		return nil
	}
	if source.IsDirectory() && strings.HasPrefix(normNew, normOld+`\`) {
		return checkpoint.From(ErrRecursiveMove)
	}

	newParentCluster, newBase, err := fs.resolveParent(newname)
	if err != nil {
		return err
	}

	if newParentCluster != source.ParentCluster() {
		moved, err := fs.partition.MoveDirent(newParentCluster, source)
		if err != nil {
			return err
		}
		source = moved
	}

	if !strings.EqualFold(source.Name, newBase) {
		return fs.partition.DirentRename(source, newBase)
	}
	return nil
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	d, err := fs.resolve(name)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return rootFileInfo{}, nil
	}
	return d.FileInfo(), nil
}

func (fs *Fs) Name() string { return "fatx" }

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	d, err := fs.resolve(name)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	if mode&0o200 == 0 {
		d.Attributes |= AttrReadOnly
	} else {
		d.Attributes &^= AttrReadOnly
	}
	return fs.partition.UpdateDirent(d)
}

// Chown is a no-op: FATX dirents carry no owner information.
func (fs *Fs) Chown(_ string, _, _ int) error { return nil }

func (fs *Fs) Chtimes(name string, atime, mtime time.Time) error {
	d, err := fs.resolve(name)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	d.AccessTime = atime
	d.ModifiedTime = mtime
	return fs.partition.UpdateDirent(d)
}
