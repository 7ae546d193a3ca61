//go:build !linux

package tempfile

import (
	"errors"
	"os"
)

func openUnlinked(string) (*os.File, error) {
	return nil, errors.ErrUnsupported
}

// AdviseSequential is a no-op on this platform.
func AdviseSequential(File, int64, int64) {}
