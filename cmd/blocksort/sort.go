package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lanrat/blocksort"
	"github.com/lanrat/blocksort/stream"
	"github.com/spf13/cobra"
)

type sortOptions struct {
	records        recordOptions
	sumCountOffset int
	uniq           bool
	blockSize      int
	blockCount     int
	bufferSize     int
	totalMemory    int
	lazyMemory     int
	tempDir        string
	zstdIn         bool
	zstdOut        bool
	output         string
}

func newSortCmd() *cobra.Command {
	opts := &sortOptions{}
	cmd := &cobra.Command{
		Use:   "sort [flags] [input]",
		Short: "Sort a file of fixed-width records.",
		Long: `Sort reads fixed-width records from input (stdin by default), sorts them
with bounded memory and writes them to --output.

Records tying under the sort order can be merged with --uniq, which keeps the
first, or --sum-count-offset, which adds up the little endian uint64 stored at
that offset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			r, err := openInput(input, cmd.InOrStdin(), opts.zstdIn)
			if err != nil {
				return err
			}
			defer r.Close()
			w, err := createOutput(opts.output, cmd.OutOrStdout(), opts.zstdOut)
			if err != nil {
				return err
			}
			if err := runSort(cmd.Context(), opts, r, w); err != nil {
				return errors.Join(err, w.Close())
			}
			return w.Close()
		},
	}
	opts.records.register(cmd)
	cmd.Flags().IntVar(&opts.sumCountOffset, "sum-count-offset", -1, "Add up the uint64 counts at this offset of tying records.")
	cmd.Flags().BoolVar(&opts.uniq, "uniq", false, "Keep only the first of tying records.")
	cmd.Flags().IntVar(&opts.blockSize, "block-size", 8<<20, "Bytes per pipeline block.")
	cmd.Flags().IntVar(&opts.blockCount, "block-count", 2, "Blocks per pipeline.")
	cmd.Flags().IntVar(&opts.bufferSize, "buffer-size", 0, "Bytes read at a time from each run while merging, 0 for the default.")
	cmd.Flags().IntVar(&opts.totalMemory, "total-memory", 0, "Memory for one merge pass, 0 for the default.")
	cmd.Flags().IntVar(&opts.lazyMemory, "lazy-memory", -1, "Memory for the final merge, -1 for --total-memory.")
	cmd.Flags().StringVar(&opts.tempDir, "temp-dir", "", "Directory for scratch files.")
	cmd.Flags().BoolVar(&opts.zstdIn, "zstd-in", false, "Input is zstd compressed.")
	cmd.Flags().BoolVar(&opts.zstdOut, "zstd-out", false, "Compress the output with zstd.")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "Output file.")
	return cmd
}

func (o *sortOptions) combine(entrySize int) (blocksort.Combine, error) {
	switch {
	case o.uniq && o.sumCountOffset >= 0:
		return nil, fmt.Errorf("--uniq and --sum-count-offset are exclusive")
	case o.uniq:
		return blocksort.DropDuplicates, nil
	case o.sumCountOffset >= 0:
		if o.sumCountOffset+8 > entrySize {
			return nil, fmt.Errorf("--sum-count-offset %d does not fit in a %d byte record", o.sumCountOffset, entrySize)
		}
		return blocksort.SumUint64(o.sumCountOffset), nil
	}
	return blocksort.NeverCombine, nil
}

// runSort streams r through an input chain into a Sort, then through an
// output chain into w.
func runSort(ctx context.Context, opts *sortOptions, r io.Reader, w io.Writer) (err error) {
	entrySize, compare, err := opts.records.resolve()
	if err != nil {
		return err
	}
	combine, err := opts.combine(entrySize)
	if err != nil {
		return err
	}
	config := &blocksort.Config{
		BufferSize:   opts.bufferSize,
		TotalMemory:  opts.totalMemory,
		TempFilesDir: opts.tempDir,
	}
	lazy := opts.lazyMemory
	if lazy < 0 {
		lazy = config.TotalMemory
		if lazy == 0 {
			lazy = blocksort.DefaultConfig().TotalMemory
		}
	}
	chainConfig := stream.ChainConfig{EntrySize: entrySize, BlockSize: opts.blockSize, BlockCount: opts.blockCount}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	input, err := stream.NewChain(chainConfig)
	if err != nil {
		return err
	}
	if err := input.Start(ctx); err != nil {
		return err
	}
	if err := input.Attach(stream.Read{R: r}); err != nil {
		cancel()
		return errors.Join(err, input.Wait(true))
	}
	s, err := blocksort.New(input, config, compare, combine)
	if err != nil {
		cancel()
		return errors.Join(err, input.Wait(true))
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	if err := input.Wait(true); err != nil {
		return err
	}
	size, err := s.Size()
	if err != nil {
		return err
	}
	slog.Debug("input sorted into runs", "bytes", size, "runs", s.RemainingBlocks())

	output, err := stream.NewChain(chainConfig)
	if err != nil {
		return err
	}
	if err := output.Start(ctx); err != nil {
		return err
	}
	if err := s.Output(output, lazy); err != nil {
		cancel()
		return errors.Join(err, output.Wait(true))
	}
	if err := output.Attach(stream.Write{W: w}); err != nil {
		cancel()
		return errors.Join(err, output.Wait(true))
	}
	if err := output.Wait(true); err != nil {
		return err
	}
	slog.Info("sorted", "bytes", size, "passes", s.Passes())
	return nil
}
