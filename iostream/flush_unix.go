//go:build linux || darwin || freebsd || netbsd || openbsd

package iostream

import (
	"os"

	"golang.org/x/sys/unix"
)

// flushFileBuffers issues an fsync via x/sys/unix directly on the file
// descriptor. f.Sync() already does this on these platforms, but a real
// USB stick device node benefits from being told twice: once through the
// os.File wrapper, once through the raw fd, in case anything in between
// buffers writes without honoring the first call.
func flushFileBuffers(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
