//go:build linux

package tempfile

import (
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// openUnlinked asks the kernel for a file that never has a name.
func openUnlinked(dir string) (*os.File, error) {
	fd, err := unix.Open(dir, unix.O_RDWR|unix.O_TMPFILE|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), filepath.Join(dir, "(unlinked)")), nil
}

// AdviseSequential tells the kernel the given range of f will be read in
// order. Files without a descriptor are ignored.
func AdviseSequential(f File, offset, length int64) {
	fd, ok := f.(interface{ Fd() uintptr })
	if !ok {
		return
	}
	if err := unix.Fadvise(int(fd.Fd()), offset, length, unix.FADV_SEQUENTIAL); err != nil {
		slog.Debug("fadvise failed", "file", f.Name(), "error", err)
	}
}
