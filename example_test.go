package blocksort_test

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lanrat/blocksort"
	"github.com/lanrat/blocksort/stream"
)

func Example() {
	input := encodeUint64s([]uint64{42, 7, 19, 7, 3})
	chainConfig := stream.ChainConfig{EntrySize: 8, BlockSize: 16, BlockCount: 2}

	// cut the input into sorted runs
	in, err := stream.NewChain(chainConfig)
	if err != nil {
		panic(err)
	}
	if err := in.Attach(stream.Read{R: bytes.NewReader(input)}); err != nil {
		panic(err)
	}
	config := &blocksort.Config{BufferSize: 16, TotalMemory: 64, InMemory: true}
	s, err := blocksort.New(in, config, uint64Less, blocksort.NeverCombine)
	if err != nil {
		panic(err)
	}
	if err := in.Wait(true); err != nil {
		panic(err)
	}

	// merge the runs into a second chain
	out, err := stream.NewChain(chainConfig)
	if err != nil {
		panic(err)
	}
	if err := s.Output(out, 64); err != nil {
		panic(err)
	}
	if err := out.Attach(stream.WorkerFunc(func(position stream.ChainPosition) error {
		records, err := stream.NewStream(position)
		if err != nil {
			return err
		}
		for records.Valid() {
			fmt.Println(binary.LittleEndian.Uint64(records.Get()))
			if err := records.Next(); err != nil {
				return err
			}
		}
		return nil
	})); err != nil {
		panic(err)
	}
	if err := out.Wait(true); err != nil {
		panic(err)
	}
	// Output:
	// 3
	// 7
	// 7
	// 19
	// 42
}

func ExampleSumUint64() {
	// an 8 byte key followed by an 8 byte count
	into := make([]byte, 16)
	other := make([]byte, 16)
	copy(into, "the word")
	copy(other, "the word")
	binary.LittleEndian.PutUint64(into[8:], 2)
	binary.LittleEndian.PutUint64(other[8:], 3)

	sum := blocksort.SumUint64(8)
	keyLess := func(a, b []byte) bool { return bytes.Compare(a[:8], b[:8]) < 0 }
	if sum(into, other, keyLess) {
		fmt.Println(binary.LittleEndian.Uint64(into[8:]))
	}
	// Output: 5
}
