package iostream

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ScratchFileStream is a FileStream backed by a uniquely-named temporary
// file that removes itself on Close. xdbf.File.Rebuild uses one when it
// needs to stage a full rewrite of a large image outside of RAM; the
// chained package's tests use one per synthetic data chunk so parallel
// test runs never collide on a fixed filename.
type ScratchFileStream struct {
	*FileStream
	path string
}

// NewScratchFileStream creates a new empty scratch file under dir (the OS
// temp directory if dir is empty) named "fatx-scratch-<uuid>.tmp".
func NewScratchFileStream(dir string) (*ScratchFileStream, error) {
	name := "fatx-scratch-" + uuid.NewString() + ".tmp"
	path := filepath.Join(dir, name)
	if dir == "" {
		path = filepath.Join(os.TempDir(), name)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}

	return &ScratchFileStream{FileStream: NewFileStream(f), path: path}, nil
}

// Close closes and deletes the backing file; it does not flush first.
func (s *ScratchFileStream) Close() error {
	closeErr := s.FileStream.Close()
	removeErr := os.Remove(s.path)
	if closeErr != nil {
		return closeErr
	}
	return removeErr
}
