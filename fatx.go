// Package fatx implements the FATX filesystem used on the Xbox 360:
// memory cards, hard drives (retail and devkit), and USB storage
// devices. It exposes cluster-level primitives (Partition, Dirent),
// a POSIX-flavoured file stream (DirentStream), and afero.Fs / fs.FS
// facades (Fs, GoFs) built on top of them.
package fatx
