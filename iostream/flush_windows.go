//go:build windows

package iostream

import (
	"os"

	"golang.org/x/sys/windows"
)

// flushFileBuffers forces Windows to write through any device-level cache,
// beyond what f.Sync() already guarantees for the file-system cache.
func flushFileBuffers(f *os.File) error {
	return windows.FlushFileBuffers(windows.Handle(f.Fd()))
}
