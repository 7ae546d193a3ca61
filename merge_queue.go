package blocksort

import (
	"errors"
	"io"

	bserrors "github.com/lanrat/blocksort/errors"
	"github.com/lanrat/blocksort/queue"
	"github.com/lanrat/blocksort/tempfile"
)

// mergeEntry is a cursor over one sorted run. It pages the run in from the
// data file one buffer at a time.
type mergeEntry struct {
	in        tempfile.File
	buf       []byte
	page      []byte
	current   int
	entrySize int
	offset    int64 // next byte of the run to page in
	remaining int64 // bytes of the run not yet paged in
}

// Current is the record under the cursor.
func (e *mergeEntry) Current() []byte {
	end := e.current + e.entrySize
	return e.page[e.current:end:end]
}

// read pages in the next part of the run, reporting false once the run is
// exhausted.
func (e *mergeEntry) read() (bool, error) {
	amount := int64(len(e.buf))
	if e.remaining < amount {
		amount = e.remaining
	}
	if amount == 0 {
		return false, nil
	}
	got, err := e.in.ReadAt(e.buf[:amount], e.offset)
	if int64(got) != amount {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return false, bserrors.NewDiskError(err, "read run", e.in.Name())
	}
	e.offset += amount
	e.remaining -= amount
	e.page = e.buf[:amount]
	e.current = 0
	return true, nil
}

// next advances the cursor, reporting false once the run is exhausted.
func (e *mergeEntry) next() (bool, error) {
	e.current += e.entrySize
	if e.current < len(e.page) {
		return true, nil
	}
	return e.read()
}

// mergeQueue holds the runs of one merge group ordered by their current
// record.
type mergeQueue struct {
	in        tempfile.File
	perBuffer int
	entrySize int
	pq        *queue.PriorityQueue[*mergeEntry]
}

func newMergeQueue(in tempfile.File, perBuffer, entrySize int, compare Compare) *mergeQueue {
	return &mergeQueue{
		in:        in,
		perBuffer: perBuffer,
		entrySize: entrySize,
		pq: queue.NewPriorityQueue(func(a, b *mergeEntry) bool {
			return compare(a.Current(), b.Current())
		}),
	}
}

// Push adds the run of amount bytes at offset, paging it through base. The
// caller sizes base as min(perBuffer, amount).
func (q *mergeQueue) Push(base []byte, offset, amount int64) error {
	e := &mergeEntry{
		in:        q.in,
		buf:       base,
		entrySize: q.entrySize,
		offset:    offset,
		remaining: amount,
	}
	ok, err := e.read()
	if err != nil || !ok {
		return err
	}
	q.pq.Push(e)
	return nil
}

// Size is the number of runs still holding records.
func (q *mergeQueue) Size() int {
	return q.pq.Len()
}

// Empty reports whether every run is exhausted.
func (q *mergeQueue) Empty() bool {
	return q.pq.Len() == 0
}

// Top is the smallest current record.
func (q *mergeQueue) Top() []byte {
	return q.pq.Peek().Current()
}

// Pop advances past Top, dropping its run when exhausted.
func (q *mergeQueue) Pop() error {
	top := q.pq.Peek()
	more, err := top.next()
	if err != nil {
		return err
	}
	if more {
		q.pq.PeekUpdate()
	} else {
		q.pq.Pop()
	}
	return nil
}
