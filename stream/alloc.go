package stream

import (
	"fmt"
	"log/slog"

	bserrors "github.com/lanrat/blocksort/errors"

	"github.com/edsrzf/mmap-go"
)

// Allocator hands out the large buffers used by chains and merges. Every
// arena and merge buffer in the engine goes through one, so a caller can
// observe (and bound) each request.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Release(mem []byte) error
}

// MmapAllocator allocates anonymous private mappings that live outside the
// Go heap, so multi-gigabyte arenas are never scanned by the collector.
type MmapAllocator struct{}

// Allocate maps size bytes of zeroed memory.
func (MmapAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	m, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, bserrors.NewResourceError(err, "anonymous mapping", size)
	}
	return m, nil
}

// Release unmaps memory returned by Allocate.
func (MmapAllocator) Release(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	m := mmap.MMap(mem)
	if err := m.Unmap(); err != nil {
		slog.Error("failed to unmap buffer", "size", len(mem), "error", err)
		return err
	}
	return nil
}

// HeapAllocator allocates from the Go heap.
type HeapAllocator struct{}

// Allocate returns a fresh slice of size bytes.
func (HeapAllocator) Allocate(size int) (mem []byte, err error) {
	if size <= 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			mem = nil
			err = bserrors.NewResourceError(fmt.Errorf("%v", r), "heap", size)
		}
	}()
	return make([]byte, size), nil
}

// Release lets the collector reclaim mem.
func (HeapAllocator) Release([]byte) error {
	return nil
}

// DefaultAllocator is used when a config leaves its Allocator nil.
var DefaultAllocator Allocator = MmapAllocator{}
