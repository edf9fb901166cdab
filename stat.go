package fatx

import (
	"os"
	"time"
)

// FileInfo adapts a Dirent to os.FileInfo.
func (d *Dirent) FileInfo() os.FileInfo { return direntFileInfo{d} }

type direntFileInfo struct {
	d *Dirent
}

func (fi direntFileInfo) Name() string { return fi.d.Name }
func (fi direntFileInfo) Size() int64  { return int64(fi.d.Size) }

func (fi direntFileInfo) Mode() os.FileMode {
	var mode os.FileMode = 0o644
	if fi.d.IsDirectory() {
		mode = os.ModeDir | 0o755
	}
	if fi.d.Attributes&AttrReadOnly != 0 {
		mode &^= 0o222
	}
	return mode
}

func (fi direntFileInfo) ModTime() time.Time { return fi.d.ModifiedTime }
func (fi direntFileInfo) IsDir() bool        { return fi.d.IsDirectory() }
func (fi direntFileInfo) Sys() interface{}   { return fi.d }

// rootFileInfo describes the root directory, which has no dirent slot of
// its own.
type rootFileInfo struct{}

func (rootFileInfo) Name() string       { return "/" }
func (rootFileInfo) Size() int64        { return 0 }
func (rootFileInfo) Mode() os.FileMode  { return os.ModeDir | 0o755 }
func (rootFileInfo) ModTime() time.Time { return time.Time{} }
func (rootFileInfo) IsDir() bool        { return true }
func (rootFileInfo) Sys() interface{}   { return nil }
