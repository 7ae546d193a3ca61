package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lanrat/blocksort"
	"github.com/lanrat/blocksort/diff"
	"github.com/lanrat/blocksort/stream"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var (
		records recordOptions
		zstdIn  bool
	)
	cmd := &cobra.Command{
		Use:   "diff [flags] a b",
		Short: "Compare two sorted files.",
		Long: `Diff walks two sorted files of records and prints, in hex, the records
found only in a ("<") or only in b (">"), followed by a summary.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entrySize, compare, err := records.resolve()
			if err != nil {
				return err
			}
			a, err := openInput(args[0], cmd.InOrStdin(), zstdIn)
			if err != nil {
				return err
			}
			defer a.Close()
			b, err := openInput(args[1], cmd.InOrStdin(), zstdIn)
			if err != nil {
				return err
			}
			defer b.Close()
			out := cmd.OutOrStdout()
			r, err := diffFiles(cmd.Context(), entrySize, compare, a, b, func(d diff.Delta, rec []byte) error {
				_, err := fmt.Fprintf(out, "%s %x\n", d, rec)
				return err
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, r.String())
			return err
		},
	}
	records.register(cmd)
	cmd.Flags().BoolVar(&zstdIn, "zstd-in", false, "Inputs are zstd compressed.")
	return cmd
}

func diffFiles(ctx context.Context, entrySize int, compare blocksort.Compare, a, b io.Reader, resultFunc diff.ResultFunc) (diff.Result, error) {
	config := stream.ChainConfig{EntrySize: entrySize, BlockSize: 1 << 20, BlockCount: 2}
	sa, err := readRecords(ctx, config, a)
	if err != nil {
		return diff.Result{}, err
	}
	sb, err := readRecords(ctx, config, b)
	if err != nil {
		return diff.Result{}, errors.Join(err, sa.drain(), sa.Wait())
	}
	r, err := diff.Records(ctx, sa.Stream, sb.Stream, compare, resultFunc)
	return r, errors.Join(err, sa.Wait(), sb.Wait())
}
