package blocksort

import (
	"sync/atomic"

	"github.com/lanrat/blocksort/stream"
)

// blockSorter is the stage that turns every block of the input chain into a
// sorted run. The block then travels on to the writer and its length goes
// into the offsets log.
type blockSorter struct {
	offsets *Offsets
	compare Compare
	combine Combine
	done    *atomic.Int32
}

func (s *blockSorter) Run(position stream.ChainPosition) error {
	entrySize := position.Chain().EntrySize()
	l, err := stream.NewLink(position)
	if err != nil {
		return err
	}
	for l.Valid() {
		b := l.Block()
		n, err := sortRecords(b.Valid(), entrySize, s.compare, s.combine)
		if err != nil {
			return err
		}
		b.SetValidSize(n)
		if err := s.offsets.Append(uint64(n)); err != nil {
			return err
		}
		if err := l.Next(); err != nil {
			return err
		}
	}
	if err := s.offsets.FinishedAppending(); err != nil {
		return err
	}
	s.done.Add(1)
	return nil
}

// runWriter appends sorted runs to the data file and recycles the blocks.
type runWriter struct {
	data stream.WriteAndRecycle
	done *atomic.Int32
}

func (w *runWriter) Run(position stream.ChainPosition) error {
	if err := w.data.Run(position); err != nil {
		return err
	}
	w.done.Add(1)
	return nil
}
