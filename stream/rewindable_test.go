package stream_test

import (
	"encoding/binary"
	"errors"
	"testing"

	bserrors "github.com/lanrat/blocksort/errors"
	"github.com/lanrat/blocksort/stream"
)

func put(s *stream.RewindableStream, v uint64) error {
	binary.LittleEndian.PutUint64(s.Get(), v)
	return s.Next()
}

func runRewindable(t *testing.T, blockCount int, produce func(s *stream.RewindableStream) error) []uint64 {
	t.Helper()
	c, err := stream.NewChain(stream.ChainConfig{EntrySize: 8, BlockSize: 16, BlockCount: blockCount})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Attach(stream.WorkerFunc(func(position stream.ChainPosition) error {
		s, err := stream.NewRewindableStream(position)
		if err != nil {
			return err
		}
		return produce(s)
	})); err != nil {
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
	return got
}

func TestRewindOverwrite(t *testing.T) {
	const a, b, c = 0xA, 0xB, 0xC
	got := runRewindable(t, 4, func(s *stream.RewindableStream) error {
		if err := put(s, a); err != nil {
			return err
		}
		s.Mark()
		if err := put(s, b); err != nil {
			return err
		}
		if err := s.Rewind(); err != nil {
			return err
		}
		if err := put(s, c); err != nil {
			return err
		}
		return s.Poison()
	})
	want := []uint64{a, c}
	if len(got) != len(want) {
		t.Fatalf("read %x, expected %x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("read %x, expected %x", got, want)
		}
	}
}

func TestRewindWithinBlock(t *testing.T) {
	got := runRewindable(t, 3, func(s *stream.RewindableStream) error {
		s.Mark()
		if err := put(s, 1); err != nil {
			return err
		}
		if err := s.Rewind(); err != nil {
			return err
		}
		for _, v := range []uint64{2, 3, 4} {
			if err := put(s, v); err != nil {
				return err
			}
		}
		return s.Poison()
	})
	want := []uint64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("read %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("read %v, expected %v", got, want)
		}
	}
}

func TestRewoundTooFar(t *testing.T) {
	var rewindErr error
	got := runRewindable(t, 4, func(s *stream.RewindableStream) error {
		s.Mark()
		// Two records per block: after four records the marked block has
		// been handed downstream.
		for v := uint64(0); v < 4; v++ {
			if err := put(s, v); err != nil {
				return err
			}
		}
		rewindErr = s.Rewind()
		return s.Poison()
	})
	if !errors.Is(rewindErr, bserrors.ErrRewoundTooFar) {
		t.Fatalf("Rewind() error = %v, want ErrRewoundTooFar", rewindErr)
	}
	if len(got) != 4 {
		t.Fatalf("read %v, expected 4 records", got)
	}
	for i, v := range got {
		if v != uint64(i) {
			t.Fatalf("read %v, expected 0..3", got)
		}
	}
}

// TestCollapseCounts merges runs of equal keys by rewinding onto the record
// holding the running total.
func TestCollapseCounts(t *testing.T) {
	keys := []uint64{1, 1, 1, 2, 3, 3, 4, 4, 4, 4, 4, 5}
	got := runRewindable(t, 3, func(s *stream.RewindableStream) error {
		var last, count uint64
		for i, k := range keys {
			if i > 0 && k == last {
				count++
				if err := s.Rewind(); err != nil {
					return err
				}
			} else {
				last, count = k, 1
				s.Mark()
			}
			if err := put(s, k<<32|count); err != nil {
				return err
			}
		}
		return s.Poison()
	})
	want := []uint64{1<<32 | 3, 2<<32 | 1, 3<<32 | 2, 4<<32 | 5, 5<<32 | 1}
	if len(got) != len(want) {
		t.Fatalf("read %x, expected %x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("read %x, expected %x", got, want)
		}
	}
}
