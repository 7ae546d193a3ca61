package blocksort

import (
	bserrors "github.com/lanrat/blocksort/errors"
	"github.com/lanrat/blocksort/stream"
	"github.com/lanrat/blocksort/tempfile"
)

// Config holds configuration settings for a Sort
type Config struct {
	BufferSize          int              // bytes read at a time from each run while merging, rounded down to a multiple of the entry size
	TotalMemory         int              // memory used by one merge pass, at least 4*BufferSize
	TempFilesDir        string           // empty for use OS default ex: /var/tmp
	MergeFilenamePrefix string           // filename prefix for files put in temp directory
	Allocator           stream.Allocator // source of merge buffers and merge chain arenas
	InMemory            bool             // keep scratch files in memory instead of on disk
}

// DefaultConfig returns the default configuration options used if none provided
func DefaultConfig() *Config {
	return &Config{
		BufferSize:          64 << 20, // 64MB
		TotalMemory:         1 << 30,  // 1GB
		TempFilesDir:        "",
		MergeFilenamePrefix: tempfile.DefaultPrefix,
		Allocator:           stream.DefaultAllocator,
	}
}

// mergeConfig takes a provided config and replaces any values not set with the defaults
func mergeConfig(c *Config) *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	merged := *c
	if merged.BufferSize == 0 {
		merged.BufferSize = d.BufferSize
	}
	if merged.TotalMemory == 0 {
		merged.TotalMemory = d.TotalMemory
	}
	if merged.MergeFilenamePrefix == "" {
		merged.MergeFilenamePrefix = d.MergeFilenamePrefix
	}
	if merged.Allocator == nil {
		merged.Allocator = d.Allocator
	}
	// skipping TempFilesDir as it is the empty string
	return &merged
}

// validate checks the memory settings against the record width, rounding
// BufferSize down to whole records.
func (c *Config) validate(entrySize int) error {
	if c.BufferSize < 0 {
		return bserrors.NewConfigError("BufferSize", c.BufferSize, "must not be negative")
	}
	c.BufferSize -= c.BufferSize % entrySize
	if c.BufferSize == 0 {
		return bserrors.NewConfigError("BufferSize", c.BufferSize, "must hold at least one record")
	}
	if c.TotalMemory < 4*c.BufferSize {
		return bserrors.NewConfigError("TotalMemory", c.TotalMemory, "must be at least four times BufferSize")
	}
	return nil
}
