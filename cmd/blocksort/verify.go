package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/lanrat/blocksort"
	"github.com/lanrat/blocksort/stream"
	"github.com/spf13/cobra"
)

// verifyResult summarizes a file of records.
type verifyResult struct {
	Records     uint64
	Fingerprint uint64 // sum of the record hashes, independent of their order
	Unsorted    uint64 // records sorting before their predecessor
	FirstBad    uint64 // index of the first unsorted record
}

func newVerifyCmd() *cobra.Command {
	var (
		records recordOptions
		zstdIn  bool
	)
	cmd := &cobra.Command{
		Use:   "verify [flags] [input]",
		Short: "Check that a file is sorted and fingerprint its records.",
		Long: `Verify reads a file of records, checks that it is sorted and prints the
record count along with a fingerprint of the records. The fingerprint does
not depend on record order, so an input and its sorted output match unless
records were merged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			entrySize, compare, err := records.resolve()
			if err != nil {
				return err
			}
			r, err := openInput(input, cmd.InOrStdin(), zstdIn)
			if err != nil {
				return err
			}
			defer r.Close()
			res, err := verify(cmd.Context(), entrySize, compare, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "records: %d\nfingerprint: %016x\n", res.Records, res.Fingerprint)
			if res.Unsorted > 0 {
				return fmt.Errorf("%s: record %d is out of order, %d unsorted records", input, res.FirstBad, res.Unsorted)
			}
			return nil
		},
	}
	records.register(cmd)
	cmd.Flags().BoolVar(&zstdIn, "zstd-in", false, "Input is zstd compressed.")
	return cmd
}

func verify(ctx context.Context, entrySize int, compare blocksort.Compare, r io.Reader) (res verifyResult, err error) {
	src, err := readRecords(ctx, stream.ChainConfig{EntrySize: entrySize, BlockSize: 1 << 20, BlockCount: 2}, r)
	if err != nil {
		return res, err
	}
	prev := make([]byte, entrySize)
	for src.Valid() {
		rec := src.Get()
		if res.Records > 0 && compare(rec, prev) {
			if res.Unsorted == 0 {
				res.FirstBad = res.Records
			}
			res.Unsorted++
		}
		copy(prev, rec)
		res.Fingerprint += xxhash.Sum64(rec)
		res.Records++
		if err = src.Next(); err != nil {
			break
		}
	}
	if err == nil {
		err = src.Close()
	}
	return res, errors.Join(err, src.Wait())
}
