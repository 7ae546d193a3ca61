package stream

import (
	"errors"
	"io"

	bserrors "github.com/lanrat/blocksort/errors"
)

// Read is a source stage filling blocks from R until EOF.
type Read struct {
	R io.Reader
}

// Run implements Worker.
func (r Read) Run(position ChainPosition) error {
	entrySize := position.Chain().EntrySize()
	l, err := NewLink(position)
	if err != nil {
		return err
	}
	for l.Valid() {
		b := l.Block()
		got, err := io.ReadFull(r.R, b.Get())
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return bserrors.NewDiskError(err, "read", "")
		}
		if got%entrySize != 0 {
			return &bserrors.ReadSizeError{Got: got, EntrySize: entrySize}
		}
		if got == 0 {
			return l.Poison()
		}
		b.SetValidSize(got)
		if err := l.Next(); err != nil {
			return err
		}
	}
	return nil
}

// Write is a pass-through stage copying every block to W.
type Write struct {
	W io.Writer
}

// Run implements Worker.
func (w Write) Run(position ChainPosition) error {
	l, err := NewLink(position)
	if err != nil {
		return err
	}
	for l.Valid() {
		if _, err := w.W.Write(l.Block().Valid()); err != nil {
			return bserrors.NewDiskError(err, "write", "")
		}
		if err := l.Next(); err != nil {
			return err
		}
	}
	return nil
}

// WriteAndRecycle copies every block to W and returns it, full size, to the
// head of the chain. Attach it with Chain.Complete.
type WriteAndRecycle struct {
	W io.Writer
}

// Run implements Worker.
func (w WriteAndRecycle) Run(position ChainPosition) error {
	blockSize := position.Chain().BlockSize()
	l, err := NewLink(position)
	if err != nil {
		return err
	}
	for l.Valid() {
		b := l.Block()
		if _, err := w.W.Write(b.Valid()); err != nil {
			return bserrors.NewDiskError(err, "write", "")
		}
		b.SetValidSize(blockSize)
		if err := l.Next(); err != nil {
			return err
		}
	}
	return nil
}

// CountRecords adds the number of records passing through to *Count.
type CountRecords struct {
	Count *uint64
}

// Run implements Worker.
func (c CountRecords) Run(position ChainPosition) error {
	entrySize := uint64(position.Chain().EntrySize())
	l, err := NewLink(position)
	if err != nil {
		return err
	}
	for l.Valid() {
		*c.Count += uint64(l.Block().ValidSize()) / entrySize
		if err := l.Next(); err != nil {
			return err
		}
	}
	return nil
}
