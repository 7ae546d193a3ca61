// Package diff compares two sorted record streams and reports the records
// that exist in only one of them.
package diff

import (
	"context"
	"errors"
	"fmt"

	"github.com/lanrat/blocksort"
	"github.com/lanrat/blocksort/stream"
)

// differ holds the state of one diff between two sorted streams.
type differ struct {
	ctx        context.Context
	a, b       *stream.Stream
	resultFunc ResultFunc
	less       blocksort.Compare
}

// Records walks two streams sorted by less and calls resultFunc for each
// record that exists in only one of them. Records that tie under less are
// common to both.
//
// Both streams are read to exhaustion, even when resultFunc fails, so the
// chains feeding them can be waited on afterwards.
func Records(ctx context.Context, a, b *stream.Stream, less blocksort.Compare, resultFunc ResultFunc) (r Result, err error) {
	if ctx == nil || a == nil || b == nil || less == nil || resultFunc == nil {
		return Result{}, fmt.Errorf("diff.Records() arguments must not be nil")
	}
	d := differ{ctx: ctx, a: a, b: b, resultFunc: resultFunc, less: less}
	r, err = d.diff()
	if err != nil {
		err = errors.Join(err, drain(a), drain(b))
	}
	return r, err
}

func (d *differ) diff() (r Result, err error) {
	for d.a.Valid() && d.b.Valid() {
		if err = d.ctx.Err(); err != nil {
			return
		}
		recA, recB := d.a.Get(), d.b.Get()
		switch {
		case d.less(recB, recA):
			r.TotalB++
			r.ExtraB++
			if err = d.resultFunc(NEW, recB); err != nil {
				return
			}
			if err = d.b.Next(); err != nil {
				return
			}
		case d.less(recA, recB):
			r.TotalA++
			r.ExtraA++
			if err = d.resultFunc(OLD, recA); err != nil {
				return
			}
			if err = d.a.Next(); err != nil {
				return
			}
		default:
			// common
			r.Common++
			r.TotalA++
			r.TotalB++
			if err = d.a.Next(); err != nil {
				return
			}
			if err = d.b.Next(); err != nil {
				return
			}
		}
	}
	// if only A has data left
	for d.a.Valid() {
		if err = d.ctx.Err(); err != nil {
			return
		}
		r.TotalA++
		r.ExtraA++
		if err = d.resultFunc(OLD, d.a.Get()); err != nil {
			return
		}
		if err = d.a.Next(); err != nil {
			return
		}
	}
	// if only B has data left
	for d.b.Valid() {
		if err = d.ctx.Err(); err != nil {
			return
		}
		r.TotalB++
		r.ExtraB++
		if err = d.resultFunc(NEW, d.b.Get()); err != nil {
			return
		}
		if err = d.b.Next(); err != nil {
			return
		}
	}
	return
}

// drain skips to the end of s.
func drain(s *stream.Stream) error {
	for s.Valid() {
		if err := s.Next(); err != nil {
			return err
		}
	}
	return nil
}

// PrintDiff is a utility function that can be used as a ResultFunc to print
// differences to stdout. It formats each difference with the Delta symbol
// (< for OLD, > for NEW) followed by the record in hex.
func PrintDiff(d Delta, rec []byte) error {
	_, err := fmt.Printf("%s %x\n", d, rec)
	return err
}
