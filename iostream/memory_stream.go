package iostream

import "github.com/spf13/afero"

// MemoryStream backs a Stream with an in-memory afero file instead of a
// real device handle. It exists for this module's own tests and for
// callers that want to build or inspect a FATX/XDBF image entirely in
// RAM before ever touching disk — the out-of-scope "byte-buffer I/O
// wrapper" this module assumes as a collaborator, reduced to the minimum
// this module needs to exercise its own logic without a fixture file.
type MemoryStream struct {
	fs   afero.Fs
	file afero.File
}

var _ Stream = (*MemoryStream)(nil)

// NewMemoryStream returns an empty, growable in-memory stream.
func NewMemoryStream() (*MemoryStream, error) {
	fs := afero.NewMemMapFs()
	f, err := fs.Create("volume")
	if err != nil {
		return nil, err
	}
	return &MemoryStream{fs: fs, file: f}, nil
}

// NewMemoryStreamFromBytes seeds the stream with existing content, useful
// for tests that build a synthetic FATX or XDBF image by hand.
func NewMemoryStreamFromBytes(data []byte) (*MemoryStream, error) {
	s, err := NewMemoryStream()
	if err != nil {
		return nil, err
	}
	if err := s.SetLength(int64(len(data))); err != nil {
		return nil, err
	}
	if _, err := s.file.WriteAt(data, 0); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStream) Read(p []byte) (int, error)  { return s.file.Read(p) }
func (s *MemoryStream) Write(p []byte) (int, error) { return s.file.Write(p) }
func (s *MemoryStream) Seek(offset int64, whence int) (int64, error) {
	return s.file.Seek(offset, whence)
}

func (s *MemoryStream) Len() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *MemoryStream) SetLength(n int64) error {
	return s.file.Truncate(n)
}

func (s *MemoryStream) Flush() error {
	return s.file.Sync()
}

func (s *MemoryStream) Close() error {
	return s.file.Close()
}

// Bytes returns a snapshot of the current content, for assertions in tests.
func (s *MemoryStream) Bytes() ([]byte, error) {
	return afero.ReadFile(s.fs, "volume")
}
