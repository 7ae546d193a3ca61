package tempfile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// ScratchDir returns dir if it is usable, otherwise a disk-backed default
// chosen once per process.
func ScratchDir(dir string) string {
	if dir != "" && usableDir(dir) {
		return dir
	}
	return defaultScratchDir()
}

var defaultScratchDir = sync.OnceValue(func() string {
	for _, candidate := range scratchCandidates() {
		if usableDir(candidate) {
			return candidate
		}
	}
	return os.TempDir()
})

// scratchCandidates lists directories in order of preference. /tmp is often
// a tmpfs, which would put the runs back in memory, so /var/tmp comes first
// where it exists.
func scratchCandidates() []string {
	var candidates []string
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly", "solaris":
		candidates = append(candidates, "/var/tmp")
	case "darwin":
		candidates = append(candidates, "/var/tmp", "/private/var/tmp")
	}
	candidates = append(candidates, os.TempDir())
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, blocksortTempDirName))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, blocksortTempDirName))
	}
	return candidates
}

// usableDir accepts an existing directory, or a path Make can create.
func usableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return info.IsDir()
}
