package blocksort

import (
	"errors"
	"io"

	bserrors "github.com/lanrat/blocksort/errors"
	"github.com/lanrat/blocksort/stream"
	"github.com/lanrat/blocksort/tempfile"
)

// mergingReader is a source stage merging the runs described by inOffsets
// into its chain. Runs that do not fit in totalMemory together are merged
// group by group, each group becoming one run recorded in outOffsets.
type mergingReader struct {
	in         tempfile.File
	inOffsets  *Offsets
	outOffsets *Offsets // nil when the output is not written back to disk
	bufferSize int
	total      int
	compare    Compare
	combine    Combine
	alloc      stream.Allocator
}

func (r *mergingReader) Run(position stream.ChainPosition) error {
	return r.run(position, false)
}

func (r *mergingReader) run(position stream.ChainPosition, assertOne bool) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = bserrors.NewComparisonError(p, "merge")
		}
	}()

	switch r.inOffsets.RemainingBlocks() {
	case 0:
		l, err := stream.NewLink(position)
		if err != nil {
			return err
		}
		return l.Poison()
	case 1:
		offset := r.inOffsets.TotalOffset()
		amount, err := r.inOffsets.NextSize()
		if err != nil {
			return err
		}
		if err := r.readSingle(int64(offset), int64(amount), position); err != nil {
			return err
		}
		if r.outOffsets != nil {
			return r.outOffsets.Append(amount)
		}
		return nil
	}

	entrySize := position.Chain().EntrySize()
	buffer, err := r.alloc.Allocate(r.total)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, r.alloc.Release(buffer))
	}()

	str, err := stream.NewStream(position)
	if err != nil {
		return err
	}
	for r.inOffsets.RemainingBlocks() != 0 {
		// Use bigger buffers if there's less remaining.
		perBuffer := uint64(r.total) / r.inOffsets.RemainingBlocks()
		if perBuffer < uint64(r.bufferSize) {
			perBuffer = uint64(r.bufferSize)
		}
		perBuffer -= perBuffer % uint64(entrySize)

		q := newMergeQueue(r.in, int(perBuffer), entrySize, r.compare)
		used := uint64(0)
		for r.inOffsets.RemainingBlocks() != 0 && used+min(perBuffer, r.inOffsets.PeekSize()) <= uint64(len(buffer)) {
			offset := r.inOffsets.TotalOffset()
			size, err := r.inOffsets.NextSize()
			if err != nil {
				return err
			}
			take := min(size, perBuffer)
			if err := q.Push(buffer[used:used+take:used+take], int64(offset), int64(size)); err != nil {
				return err
			}
			used += take
		}
		if q.Size() < 2 && r.inOffsets.RemainingBlocks() != 0 {
			return bserrors.NewInternalError("not merging at least two runs: %d in group, %d remaining", q.Size(), r.inOffsets.RemainingBlocks())
		}
		if assertOne && r.inOffsets.RemainingBlocks() != 0 {
			return bserrors.NewInternalError("lazy merge needs more than one group, %d runs left over", r.inOffsets.RemainingBlocks())
		}

		written := uint64(0)
		copy(str.Get(), q.Top())
		if err := q.Pop(); err != nil {
			return err
		}
		for !q.Empty() {
			if !tryCombine(r.compare, r.combine, str.Get(), q.Top()) {
				written++
				if err := str.Next(); err != nil {
					return err
				}
				copy(str.Get(), q.Top())
			}
			if err := q.Pop(); err != nil {
				return err
			}
		}
		written++
		if err := str.Next(); err != nil {
			return err
		}
		if r.outOffsets != nil {
			if err := r.outOffsets.Append(written * uint64(entrySize)); err != nil {
				return err
			}
		}
	}
	return str.Poison()
}

// readSingle copies one run straight into the chain's blocks.
func (r *mergingReader) readSingle(offset, size int64, position stream.ChainPosition) error {
	end := offset + size
	blockSize := int64(position.Chain().BlockSize())
	l, err := stream.NewLink(position)
	if err != nil {
		return err
	}
	for ; l.Valid(); offset += blockSize {
		amount := min(blockSize, end-offset)
		b := l.Block()
		got, err := r.in.ReadAt(b.Get()[:amount], offset)
		if int64(got) != amount {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return bserrors.NewDiskError(err, "read run", r.in.Name())
		}
		b.SetValidSize(int(amount))
		if err := l.Next(); err != nil {
			return err
		}
		if offset+amount == end {
			break
		}
	}
	return l.Poison()
}

// owningMergingReader performs the final, lazy merge straight into a
// consumer's chain. It owns the data file and offsets log and closes them
// when done.
type owningMergingReader struct {
	mergingReader
}

func (r *owningMergingReader) Run(position stream.ChainPosition) error {
	err := r.run(position, true)
	if cerr := r.in.Close(); cerr != nil {
		err = errors.Join(err, bserrors.NewDiskError(cerr, "close", r.in.Name()))
	}
	if cerr := r.inOffsets.File().Close(); cerr != nil {
		err = errors.Join(err, bserrors.NewDiskError(cerr, "close", r.inOffsets.File().Name()))
	}
	return err
}
