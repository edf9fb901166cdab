package iostream

import "os"

// FileStream adapts a regular OS file handle to Stream. It is the
// concrete stream a caller hands the FATX device layer when the volume is
// a single image file or a raw block device opened as a file.
type FileStream struct {
	f *os.File
}

var (
	_ Stream = (*FileStream)(nil)
	_ Closer = (*FileStream)(nil)
)

// NewFileStream wraps an already-open file. The caller retains ownership
// of opening; FileStream only manages seeking, sizing, and flushing.
func NewFileStream(f *os.File) *FileStream {
	return &FileStream{f: f}
}

// OpenFileStream opens name with the given flag/perm and wraps it.
func OpenFileStream(name string, flag int, perm os.FileMode) (*FileStream, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &FileStream{f: f}, nil
}

func (s *FileStream) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s *FileStream) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *FileStream) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

func (s *FileStream) Len() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *FileStream) SetLength(n int64) error {
	return s.f.Truncate(n)
}

// Flush syncs buffered writes and, where the platform exposes one,
// additionally issues an OS-level flush-file-buffers call so a caller
// splitting a volume across several FileStreams (see the chained package)
// can be sure every chunk has actually reached the medium before it
// reports the composite flush as done.
func (s *FileStream) Flush() error {
	if err := s.f.Sync(); err != nil {
		return err
	}
	return flushFileBuffers(s.f)
}

func (s *FileStream) Close() error {
	return s.f.Close()
}

// File exposes the underlying *os.File for callers that need to invoke
// platform-specific flush primitives directly. Nothing in this module
// calls it; FileStream.Flush already issues the OS-level flush.
func (s *FileStream) File() *os.File {
	return s.f
}
