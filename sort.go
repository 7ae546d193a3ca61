// Package blocksort implements a bounded-memory external sort of fixed-width
// binary records.
//
// Records arrive through a stream.Chain. Every block of the chain is sorted
// in place and appended to a scratch file as a sorted run. Merge passes then
// combine the runs, a group at a time, until few enough remain to be merged
// lazily into the caller's output chain.
package blocksort

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	bserrors "github.com/lanrat/blocksort/errors"
	"github.com/lanrat/blocksort/stream"
	"github.com/lanrat/blocksort/tempfile"
)

type sortState int

const (
	ingesting sortState = iota
	merging
	done
)

// Sort is a single use external sort. It is created on an input chain,
// which it sorts into runs as the chain runs, and is finished by exactly one
// call to Output or StealCompleted.
type Sort struct {
	config    Config
	entrySize int
	compare   Compare
	combine   Combine

	data    tempfile.File
	offsets *Offsets
	// written by the previous pass, created on the first pass
	altData    tempfile.File
	altOffsets *Offsets

	// incremented by the sorter and the writer once their input is done
	ingested atomic.Int32
	state    sortState
	passes   int
}

// New wires a sort onto in. in must not have been completed yet; the sort
// attaches its block sorter and closes the loop with the run writer. The
// caller runs and waits for in, then calls Output or StealCompleted.
func New(in *stream.Chain, config *Config, compare Compare, combine Combine) (*Sort, error) {
	if compare == nil {
		return nil, bserrors.NewConfigError("Compare", nil, "a comparator is required")
	}
	cfg := mergeConfig(config)
	if err := cfg.validate(in.EntrySize()); err != nil {
		return nil, err
	}
	s := &Sort{
		config:    *cfg,
		entrySize: in.EntrySize(),
		compare:   compare,
		combine:   combine,
	}
	var err error
	s.data, s.offsets, err = s.makeFiles()
	if err != nil {
		return nil, err
	}
	sorter := &blockSorter{offsets: s.offsets, compare: compare, combine: combine, done: &s.ingested}
	if err := in.Attach(sorter); err != nil {
		s.state = done
		return nil, errors.Join(err, s.closeFiles())
	}
	if err := in.Complete(&runWriter{data: stream.WriteAndRecycle{W: s.data}, done: &s.ingested}); err != nil {
		// the sorter is already running and owns the files until in stops
		s.state = done
		return nil, err
	}
	return s, nil
}

func (s *Sort) makeFile(kind string) (tempfile.File, error) {
	if s.config.InMemory {
		return tempfile.Mock(s.config.MergeFilenamePrefix+kind, 0), nil
	}
	return tempfile.Make(s.config.TempFilesDir, s.config.MergeFilenamePrefix+kind+"_")
}

func (s *Sort) makeFiles() (tempfile.File, *Offsets, error) {
	data, err := s.makeFile("data")
	if err != nil {
		return nil, nil, err
	}
	log, err := s.makeFile("offsets")
	if err != nil {
		return nil, nil, errors.Join(err, data.Close())
	}
	return data, NewOffsets(log), nil
}

// ready checks the sort may start or continue merging.
func (s *Sort) ready() error {
	switch {
	case s.state == done:
		return bserrors.ErrSortConsumed
	case s.ingested.Load() < 2:
		return bserrors.ErrNotIngested
	}
	s.state = merging
	return nil
}

// Size is the number of bytes of records currently stored.
func (s *Sort) Size() (int64, error) {
	if s.state == done {
		return 0, bserrors.ErrSortConsumed
	}
	return s.data.Size()
}

// RemainingBlocks is the number of sorted runs left to merge.
func (s *Sort) RemainingBlocks() uint64 {
	if s.state == done || s.ingested.Load() < 2 {
		return 0
	}
	return s.offsets.RemainingBlocks()
}

// Passes is the number of eager merge passes performed so far.
func (s *Sort) Passes() int {
	return s.passes
}

// Merge performs eager merge passes on disk until the remaining runs can be
// merged lazily in lazyMemory bytes. It returns the memory that final merge
// will use.
func (s *Sort) Merge(lazyMemory int) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if lazyMemory < 0 || lazyMemory > s.config.TotalMemory {
		return 0, bserrors.NewConfigError("lazyMemory", lazyMemory, "must be between zero and TotalMemory")
	}
	size64, err := s.data.Size()
	if err != nil {
		return 0, err
	}
	size := uint64(size64)
	buffer := uint64(s.config.BufferSize)
	lazyArity := max(1, uint64(lazyMemory)/buffer)
	if s.offsets.RemainingBlocks() <= lazyArity || size <= uint64(lazyMemory) {
		return int(min(size, s.offsets.RemainingBlocks()*buffer)), nil
	}

	chain, err := stream.NewChain(stream.ChainConfig{
		EntrySize:  s.entrySize,
		BlockSize:  s.config.BufferSize,
		BlockCount: 2,
		Allocator:  s.config.Allocator,
	})
	if err != nil {
		return 0, err
	}
	if s.altData == nil {
		if s.altData, s.altOffsets, err = s.makeFiles(); err != nil {
			return 0, err
		}
	}
	for s.offsets.RemainingBlocks() > lazyArity && size > uint64(lazyMemory) {
		reading := uint64(s.config.TotalMemory - 2*s.config.BufferSize)
		if size < reading {
			reading = size
		}
		if size, err = s.mergePass(chain, int(reading), size); err != nil {
			return 0, errors.Join(err, chain.Wait(true))
		}
	}
	if err := chain.Wait(true); err != nil {
		return 0, err
	}
	return int(min(size, s.offsets.RemainingBlocks()*buffer)), nil
}

// mergePass merges the current runs into the alternate files, then swaps
// the two. It returns the new data size, smaller than size when records were
// combined.
func (s *Sort) mergePass(chain *stream.Chain, reading int, size uint64) (uint64, error) {
	runs := s.offsets.RemainingBlocks()
	tempfile.AdviseSequential(s.data, 0, int64(size))
	reader := &mergingReader{
		in:         s.data,
		inOffsets:  s.offsets,
		outOffsets: s.altOffsets,
		bufferSize: s.config.BufferSize,
		total:      reading,
		compare:    s.compare,
		combine:    s.combine,
		alloc:      s.config.Allocator,
	}
	if err := chain.Attach(reader); err != nil {
		return 0, err
	}
	if err := chain.Complete(stream.WriteAndRecycle{W: s.altData}); err != nil {
		return 0, err
	}
	if err := chain.Wait(false); err != nil {
		return 0, err
	}
	if err := s.altOffsets.FinishedAppending(); err != nil {
		return 0, err
	}
	if s.combine == nil && s.altOffsets.TotalAppended() != size {
		return 0, bserrors.NewInternalError("merge pass wrote %d bytes of %d", s.altOffsets.TotalAppended(), size)
	}
	if s.offsets.TotalOffset() != size {
		return 0, bserrors.NewInternalError("merge pass read %d bytes of %d", s.offsets.TotalOffset(), size)
	}
	if err := s.data.Truncate(0); err != nil {
		return 0, bserrors.NewDiskError(err, "truncate", s.data.Name())
	}
	if _, err := s.data.Seek(0, io.SeekStart); err != nil {
		return 0, bserrors.NewDiskError(err, "seek", s.data.Name())
	}
	if err := s.offsets.Reset(); err != nil {
		return 0, err
	}
	s.data, s.altData = s.altData, s.data
	s.offsets, s.altOffsets = s.altOffsets, s.offsets
	s.passes++
	slog.Debug("merge pass", "pass", s.passes, "runs_in", runs, "runs_out", s.offsets.RemainingBlocks(), "bytes", size)
	return s.offsets.TotalAppended(), nil
}

// Output merges on disk as needed and attaches the final merge to out as its
// source stage. The records reach out lazily, as its stages pull them. The
// sort is consumed.
func (s *Sort) Output(out *stream.Chain, lazyMemory int) error {
	if out.EntrySize() != s.entrySize {
		return bserrors.NewConfigError("EntrySize", out.EntrySize(), "output chain record size differs from the sort")
	}
	need, err := s.Merge(lazyMemory)
	if err != nil {
		return err
	}
	reader := &owningMergingReader{mergingReader{
		in:         s.data,
		inOffsets:  s.offsets,
		bufferSize: s.config.BufferSize,
		total:      need,
		compare:    s.compare,
		combine:    s.combine,
		alloc:      s.config.Allocator,
	}}
	slog.Debug("lazy merge", "runs", s.offsets.RemainingBlocks(), "memory", need, "passes", s.passes)
	s.state = done
	err = s.closeAlt()
	if aerr := out.Attach(reader); aerr != nil {
		return errors.Join(aerr, err, s.data.Close(), s.offsets.File().Close())
	}
	return err
}

// StealCompleted merges down to a single run and hands over the data file,
// positioned at its start. The caller must Close it. The sort is consumed.
func (s *Sort) StealCompleted() (tempfile.File, error) {
	if _, err := s.Merge(0); err != nil {
		return nil, err
	}
	if _, err := s.data.Seek(0, io.SeekStart); err != nil {
		return nil, bserrors.NewDiskError(err, "seek", s.data.Name())
	}
	data := s.data
	s.state = done
	err := errors.Join(s.closeAlt(), s.offsets.File().Close())
	if err != nil {
		return nil, errors.Join(err, data.Close())
	}
	return data, nil
}

// Close releases the scratch files of a sort that was never finished. The
// input chain must have stopped.
func (s *Sort) Close() error {
	if s.state == done {
		return nil
	}
	s.state = done
	return s.closeFiles()
}

func (s *Sort) closeAlt() error {
	if s.altData == nil {
		return nil
	}
	err := errors.Join(s.altData.Close(), s.altOffsets.File().Close())
	s.altData, s.altOffsets = nil, nil
	return err
}

func (s *Sort) closeFiles() error {
	return errors.Join(s.closeAlt(), s.data.Close(), s.offsets.File().Close())
}
