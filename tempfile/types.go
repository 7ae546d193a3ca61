package tempfile

import (
	"io"
)

// File is a scratch file holding sorted runs or an offsets log. It is
// written sequentially, then read back either sequentially or at absolute
// offsets by several merge cursors at once.
type File interface {
	io.ReadWriteSeeker
	io.ReaderAt
	io.Closer

	// Truncate changes the size of the file. It does not move the offset.
	Truncate(size int64) error

	// Size returns the current length of the file in bytes.
	Size() (int64, error)

	// Name describes the file for error messages. Unlinked files have no
	// path, so the name need not exist on disk.
	Name() string
}
