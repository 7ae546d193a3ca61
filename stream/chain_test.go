package stream_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	bserrors "github.com/lanrat/blocksort/errors"
	"github.com/lanrat/blocksort/stream"
)

// writeCounting produces the records 0..n-1 as little endian uint64.
func writeCounting(n int) stream.Worker {
	return stream.WorkerFunc(func(position stream.ChainPosition) error {
		s, err := stream.NewStream(position)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint64(s.Get(), uint64(i))
			if err := s.Next(); err != nil {
				return err
			}
		}
		return s.Poison()
	})
}

// addOne increments every record passing through.
var addOne = stream.WorkerFunc(func(position stream.ChainPosition) error {
	s, err := stream.NewStream(position)
	if err != nil {
		return err
	}
	for s.Valid() {
		rec := s.Get()
		binary.LittleEndian.PutUint64(rec, binary.LittleEndian.Uint64(rec)+1)
		if err := s.Next(); err != nil {
			return err
		}
	}
	return s.Close()
})

func readAll(t *testing.T, position stream.ChainPosition) []uint64 {
	t.Helper()
	s, err := stream.NewStream(position)
	if err != nil {
		t.Fatal(err)
	}
	var got []uint64
	for s.Valid() {
		got = append(got, binary.LittleEndian.Uint64(s.Get()))
		if err := s.Next(); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	return got
}

func TestNewChainConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config stream.ChainConfig
		field  string
	}{
		{"zero entry", stream.ChainConfig{EntrySize: 0, BlockSize: 16, BlockCount: 2}, "EntrySize"},
		{"negative block", stream.ChainConfig{EntrySize: 8, BlockSize: -1, BlockCount: 2}, "BlockSize"},
		{"no blocks", stream.ChainConfig{EntrySize: 8, BlockSize: 16, BlockCount: 0}, "BlockCount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := stream.NewChain(tt.config)
			var ce *bserrors.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("NewChain() error = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("ConfigError.Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestBlockSizeRounding(t *testing.T) {
	tests := []struct {
		entry, block, want int
	}{
		{8, 100, 104},
		{8, 8, 8},
		{8, 1, 8},
		{3, 10, 12},
		{5, 25, 25},
	}
	for _, tt := range tests {
		c, err := stream.NewChain(stream.ChainConfig{EntrySize: tt.entry, BlockSize: tt.block, BlockCount: 1})
		if err != nil {
			t.Fatal(err)
		}
		if c.BlockSize() != tt.want {
			t.Errorf("entry %d block %d: BlockSize() = %d, want %d", tt.entry, tt.block, c.BlockSize(), tt.want)
		}
	}
}

func TestChainPassThrough(t *testing.T) {
	tests := []struct {
		name       string
		records    int
		blockSize  int
		blockCount int
	}{
		{"empty", 0, 32, 2},
		{"partial block", 3, 32, 2},
		{"exact blocks", 40, 32, 3},
		{"single block chain", 1000, 24, 1},
		{"many records", 10000, 100, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := stream.NewChain(stream.ChainConfig{
				EntrySize:  8,
				BlockSize:  tt.blockSize,
				BlockCount: tt.blockCount,
				Allocator:  stream.HeapAllocator{},
			})
			if err != nil {
				t.Fatal(err)
			}
			if err := c.Attach(writeCounting(tt.records)); err != nil {
				t.Fatal(err)
			}
			if err := c.Attach(addOne); err != nil {
				t.Fatal(err)
			}
			position, err := c.Add()
			if err != nil {
				t.Fatal(err)
			}
			if err := c.Complete(stream.Recycle); err != nil {
				t.Fatal(err)
			}
			got := readAll(t, position)
			if err := c.Wait(true); err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.records {
				t.Fatalf("read %d records, expected %d", len(got), tt.records)
			}
			for i, v := range got {
				if v != uint64(i+1) {
					t.Fatalf("record %d = %d, expected %d", i, v, i+1)
				}
			}
		})
	}
}

func TestChainReuse(t *testing.T) {
	c, err := stream.NewChain(stream.ChainConfig{EntrySize: 8, BlockSize: 64, BlockCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	for round := 0; round < 3; round++ {
		var count uint64
		if err := c.Attach(writeCounting(100 * (round + 1))); err != nil {
			t.Fatal(err)
		}
		if err := c.Attach(stream.CountRecords{Count: &count}); err != nil {
			t.Fatal(err)
		}
		if err := c.Wait(round == 2); err != nil {
			t.Fatal(err)
		}
		if c.Running() {
			t.Fatal("chain still running after Wait")
		}
		if want := uint64(100 * (round + 1)); count != want {
			t.Errorf("round %d: counted %d records, expected %d", round, count, want)
		}
	}
}

func TestCompleteTwice(t *testing.T) {
	c, err := stream.NewChain(stream.ChainConfig{EntrySize: 8, BlockSize: 64, BlockCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Attach(writeCounting(10)); err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(stream.Recycle); err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(stream.Recycle); !errors.Is(err, bserrors.ErrCompleteTwice) {
		t.Errorf("second Complete() error = %v, want ErrCompleteTwice", err)
	}
	if _, err := c.Add(); !errors.Is(err, bserrors.ErrCompleteTwice) {
		t.Errorf("Add() after Complete error = %v, want ErrCompleteTwice", err)
	}
	if err := c.Wait(true); err != nil {
		t.Fatal(err)
	}
}

func TestStageErrorStopsChain(t *testing.T) {
	errBoom := errors.New("boom")
	c, err := stream.NewChain(stream.ChainConfig{EntrySize: 8, BlockSize: 16, BlockCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Attach(writeCounting(1000)); err != nil {
		t.Fatal(err)
	}
	failing := stream.WorkerFunc(func(position stream.ChainPosition) error {
		l, err := stream.NewLink(position)
		if err != nil {
			return err
		}
		if err := l.Next(); err != nil {
			return err
		}
		return errBoom
	})
	if err := c.Attach(failing); err != nil {
		t.Fatal(err)
	}
	if err := c.Attach(addOne); err != nil {
		t.Fatal(err)
	}
	if err := c.Wait(true); !errors.Is(err, errBoom) {
		t.Fatalf("Wait() error = %v, want %v", err, errBoom)
	}
}

func TestStagePanicIsReturned(t *testing.T) {
	c, err := stream.NewChain(stream.ChainConfig{EntrySize: 8, BlockSize: 16, BlockCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Attach(writeCounting(100)); err != nil {
		t.Fatal(err)
	}
	if err := c.Attach(stream.WorkerFunc(func(stream.ChainPosition) error {
		panic("stage exploded")
	})); err != nil {
		t.Fatal(err)
	}
	err = c.Wait(true)
	var pe *bserrors.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Wait() error = %v, want PanicError", err)
	}
	if pe.Cause != "stage exploded" {
		t.Errorf("PanicError.Cause = %v", pe.Cause)
	}
}

func TestLinkMisuse(t *testing.T) {
	c, err := stream.NewChain(stream.ChainConfig{EntrySize: 8, BlockSize: 16, BlockCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	var closeErr, nextErr, poisonErr error
	if err := c.Attach(stream.WorkerFunc(func(position stream.ChainPosition) error {
		l, err := stream.NewLink(position)
		if err != nil {
			return err
		}
		closeErr = l.Close()
		if err := l.Poison(); err != nil {
			return err
		}
		nextErr = l.Next()
		poisonErr = l.Poison()
		return nil
	})); err != nil {
		t.Fatal(err)
	}
	if err := c.Wait(true); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(closeErr, bserrors.ErrLiveBlock) {
		t.Errorf("Close() on a live link = %v, want ErrLiveBlock", closeErr)
	}
	if !errors.Is(nextErr, bserrors.ErrStreamExhausted) {
		t.Errorf("Next() after poison = %v, want ErrStreamExhausted", nextErr)
	}
	if !errors.Is(poisonErr, bserrors.ErrAlreadyPoisoned) {
		t.Errorf("Poison() twice = %v, want ErrAlreadyPoisoned", poisonErr)
	}
}

// TestCancelUnblocksChain stops a chain whose stages never poison by
// cancelling the context it was started with.
func TestCancelUnblocksChain(t *testing.T) {
	c, err := stream.NewChain(stream.ChainConfig{EntrySize: 8, BlockSize: 8, BlockCount: 1, Allocator: stream.HeapAllocator{}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	started := make(chan struct{})
	if err := c.Attach(stream.WorkerFunc(func(position stream.ChainPosition) error {
		l, err := stream.NewLink(position)
		if err != nil {
			return err
		}
		close(started)
		for {
			if err := l.Next(); err != nil {
				return err
			}
		}
	})); err != nil {
		t.Fatal(err)
	}
	if err := c.Complete(stream.Recycle); err != nil {
		t.Fatal(err)
	}
	<-started
	cancel()

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- c.Wait(true)
	}()
	select {
	case err := <-waitCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Wait() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("deadlock")
	}
}
