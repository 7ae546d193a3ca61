// Package tempfile creates the scratch files used by an external sort. On
// disk they are unlinked as early as the platform allows, so a crashed
// process leaves nothing behind.
package tempfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	bserrors "github.com/lanrat/blocksort/errors"
)

var (
	// DefaultPrefix names scratch files put in the temp directory.
	DefaultPrefix = fmt.Sprintf("blocksort_%d_", os.Getpid())

	// process specific directory used by the fallback candidates
	blocksortTempDirName = fmt.Sprintf(".blocksort_%d", os.Getpid())

	// directories this process created, removed again when left empty
	createdDirs   = make(map[string]int)
	createdDirsMu sync.Mutex
)

type diskFile struct {
	*os.File
	name string
	// path still to remove on Close, empty once unlinked
	remove string
	dir    string
}

// Make creates an anonymous read/write scratch file in dir. An empty dir
// picks a disk-backed temp directory. prefix names the file where the
// platform cannot create it already unlinked.
func Make(dir, prefix string) (File, error) {
	dir = ScratchDir(dir)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	created, err := ensureDir(dir)
	if err != nil {
		return nil, bserrors.NewDiskError(err, "mkdir", dir)
	}

	f := &diskFile{name: filepath.Join(dir, prefix+"(unlinked)")}
	if created {
		f.dir = dir
	}
	if fd, err := openUnlinked(dir); err == nil {
		f.File = fd
		return f, nil
	}

	fd, err := os.CreateTemp(dir, prefix)
	if err != nil {
		releaseDir(f.dir)
		return nil, bserrors.NewDiskError(err, "create", dir)
	}
	f.File = fd
	f.name = fd.Name()
	if err := os.Remove(fd.Name()); err != nil {
		// Windows cannot unlink an open file
		f.remove = fd.Name()
	}
	return f, nil
}

func (f *diskFile) Name() string {
	return f.name
}

func (f *diskFile) Size() (int64, error) {
	info, err := f.File.Stat()
	if err != nil {
		return 0, bserrors.NewDiskError(err, "stat", f.name)
	}
	return info.Size(), nil
}

// Close closes the file and removes whatever is left of it on disk.
func (f *diskFile) Close() error {
	err := f.File.Close()
	if f.remove != "" {
		if rerr := os.Remove(f.remove); rerr != nil && err == nil {
			err = rerr
		}
		f.remove = ""
	}
	releaseDir(f.dir)
	f.dir = ""
	if err != nil {
		return bserrors.NewDiskError(err, "close", f.name)
	}
	return nil
}

// ensureDir creates dir if needed, reporting whether this process owns it.
func ensureDir(dir string) (bool, error) {
	createdDirsMu.Lock()
	defer createdDirsMu.Unlock()
	if n, ok := createdDirs[dir]; ok {
		createdDirs[dir] = n + 1
		return true, nil
	}
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, err
	}
	createdDirs[dir] = 1
	return true, nil
}

// releaseDir drops a reference on a directory made by ensureDir and removes
// it with the last one.
func releaseDir(dir string) {
	if dir == "" {
		return
	}
	createdDirsMu.Lock()
	defer createdDirsMu.Unlock()
	n := createdDirs[dir] - 1
	if n > 0 {
		createdDirs[dir] = n
		return
	}
	delete(createdDirs, dir)
	if err := os.Remove(dir); err != nil {
		slog.Debug("temp directory not removed", "dir", dir, "error", err)
	}
}
