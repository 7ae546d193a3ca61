package main

import (
	"bytes"
	"fmt"

	"github.com/lanrat/blocksort"
	"github.com/lanrat/blocksort/ngram"
	"github.com/spf13/cobra"
)

// recordOptions describes the record layout and the sort order.
type recordOptions struct {
	entrySize  int
	keyOffset  int
	keyWidth   int
	ngramOrder int
	ngramSort  string
}

func (o *recordOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.entrySize, "entry-size", 0, "Record width in bytes.")
	cmd.Flags().IntVar(&o.keyOffset, "key-offset", 0, "Offset of the sort key inside a record.")
	cmd.Flags().IntVar(&o.keyWidth, "key-width", 0, "Width of the sort key, 0 for the rest of the record.")
	cmd.Flags().IntVar(&o.ngramOrder, "ngram-order", 0, "Treat records as n-gram counts of this order.")
	cmd.Flags().StringVar(&o.ngramSort, "ngram-sort", "suffix", "N-gram order: prefix, suffix or context.")
}

// resolve returns the record width and the comparison the flags select.
func (o *recordOptions) resolve() (int, blocksort.Compare, error) {
	if o.ngramOrder > 0 {
		entrySize := ngram.EntrySize(o.ngramOrder)
		if o.entrySize != 0 && o.entrySize != entrySize {
			return 0, nil, fmt.Errorf("--entry-size %d does not match order %d n-grams of %d bytes", o.entrySize, o.ngramOrder, entrySize)
		}
		switch o.ngramSort {
		case "prefix":
			return entrySize, ngram.PrefixOrder(o.ngramOrder), nil
		case "suffix":
			return entrySize, ngram.SuffixOrder(o.ngramOrder), nil
		case "context":
			return entrySize, ngram.ContextOrder(o.ngramOrder), nil
		}
		return 0, nil, fmt.Errorf("unknown --ngram-sort %q", o.ngramSort)
	}

	if o.entrySize <= 0 {
		return 0, nil, fmt.Errorf("--entry-size or --ngram-order is required")
	}
	width := o.keyWidth
	if width == 0 {
		width = o.entrySize - o.keyOffset
	}
	if o.keyOffset < 0 || width <= 0 || o.keyOffset+width > o.entrySize {
		return 0, nil, fmt.Errorf("key [%d, %d) does not fit in a %d byte record", o.keyOffset, o.keyOffset+width, o.entrySize)
	}
	lo, hi := o.keyOffset, o.keyOffset+width
	return o.entrySize, func(a, b []byte) bool {
		return bytes.Compare(a[lo:hi], b[lo:hi]) < 0
	}, nil
}
