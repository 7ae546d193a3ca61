package blocksort

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	bserrors "github.com/lanrat/blocksort/errors"
	"github.com/lanrat/blocksort/tempfile"
)

const offsetEntrySize = 16

// file IO buffer size for the offsets log
var offsetsBufferSize = 1 << 12

// Offsets records where the sorted runs of a data file begin and end. Runs
// of equal length are stored once as a (length, count) pair, so the log of
// a file made from equal sized blocks stays tiny.
//
// It is written with Append, switched to reading with FinishedAppending and
// then consumed one run at a time with NextSize.
type Offsets struct {
	log tempfile.File
	w   *bufio.Writer
	r   *bufio.Reader

	// pending pair while appending, current pair while reading
	length, run uint64

	blocks   uint64 // runs appended, then runs left to read
	appended uint64 // bytes appended
	total    uint64 // bytes of the runs read so far
	scratch  [offsetEntrySize]byte
}

// NewOffsets wraps an empty scratch file.
func NewOffsets(log tempfile.File) *Offsets {
	o := &Offsets{log: log}
	o.w = bufio.NewWriterSize(log, offsetsBufferSize)
	o.r = bufio.NewReaderSize(log, offsetsBufferSize)
	return o
}

// File returns the underlying log.
func (o *Offsets) File() tempfile.File {
	return o.log
}

// Append records a run of length bytes. Empty runs are ignored.
func (o *Offsets) Append(length uint64) error {
	if length == 0 {
		return nil
	}
	o.blocks++
	o.appended += length
	if length == o.length {
		o.run++
		return nil
	}
	if err := o.flushPair(); err != nil {
		return err
	}
	o.length, o.run = length, 1
	return nil
}

func (o *Offsets) flushPair() error {
	if o.run == 0 {
		return nil
	}
	binary.LittleEndian.PutUint64(o.scratch[:8], o.length)
	binary.LittleEndian.PutUint64(o.scratch[8:], o.run)
	if _, err := o.w.Write(o.scratch[:]); err != nil {
		return bserrors.NewDiskError(err, "write offsets", o.log.Name())
	}
	return nil
}

// FinishedAppending writes out the last pair and rewinds the log so the
// runs can be read back in order.
func (o *Offsets) FinishedAppending() error {
	if err := o.flushPair(); err != nil {
		return err
	}
	if err := o.w.Flush(); err != nil {
		return bserrors.NewDiskError(err, "flush offsets", o.log.Name())
	}
	if _, err := o.log.Seek(0, io.SeekStart); err != nil {
		return bserrors.NewDiskError(err, "seek offsets", o.log.Name())
	}
	o.r.Reset(o.log)
	o.length, o.run, o.total = 0, 0, 0
	if o.blocks == 0 {
		return nil
	}
	return o.readPair()
}

func (o *Offsets) readPair() error {
	if _, err := io.ReadFull(o.r, o.scratch[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return bserrors.NewInternalError("offsets log ended with %d runs unread", o.blocks)
		}
		return bserrors.NewDiskError(err, "read offsets", o.log.Name())
	}
	o.length = binary.LittleEndian.Uint64(o.scratch[:8])
	o.run = binary.LittleEndian.Uint64(o.scratch[8:])
	if o.length == 0 || o.run == 0 {
		return bserrors.NewInternalError("offsets log holds an empty entry (%d, %d)", o.length, o.run)
	}
	return nil
}

// RemainingBlocks is the number of runs not yet taken by NextSize.
func (o *Offsets) RemainingBlocks() uint64 {
	return o.blocks
}

// TotalOffset is the file offset of the next run.
func (o *Offsets) TotalOffset() uint64 {
	return o.total
}

// TotalAppended is the number of bytes recorded by Append since the last
// Reset.
func (o *Offsets) TotalAppended() uint64 {
	return o.appended
}

// PeekSize is the length of the next run without taking it.
func (o *Offsets) PeekSize() uint64 {
	return o.length
}

// NextSize takes the next run and returns its length.
func (o *Offsets) NextSize() (uint64, error) {
	if o.blocks == 0 {
		return 0, bserrors.NewInternalError("offsets read past the last run")
	}
	ret := o.length
	o.total += ret
	o.run--
	o.blocks--
	if o.run == 0 && o.blocks != 0 {
		if err := o.readPair(); err != nil {
			return 0, err
		}
	}
	return ret, nil
}

// Reset empties the log for reuse by the next merge pass.
func (o *Offsets) Reset() error {
	if _, err := o.log.Seek(0, io.SeekStart); err != nil {
		return bserrors.NewDiskError(err, "seek offsets", o.log.Name())
	}
	if err := o.log.Truncate(0); err != nil {
		return bserrors.NewDiskError(err, "truncate offsets", o.log.Name())
	}
	o.w.Reset(o.log)
	o.r.Reset(o.log)
	o.length, o.run = 0, 0
	o.blocks, o.appended, o.total = 0, 0, 0
	return nil
}
