// Package ngram describes the fixed-width n-gram count records sorted by
// blocksort: order little endian uint32 word ids followed by a uint64 count.
package ngram

import (
	"encoding/binary"

	"github.com/lanrat/blocksort"
)

// WordIndex identifies a vocabulary word.
type WordIndex = uint32

const (
	wordSize  = 4
	countSize = 8
)

// EntrySize is the width of a record of the given order.
func EntrySize(order int) int {
	return order*wordSize + countSize
}

// Record is a view over one record inside a block or buffer. Writes go
// straight to the underlying memory.
type Record struct {
	mem   []byte
	order int
}

// View wraps mem, which must hold at least EntrySize(order) bytes.
func View(mem []byte, order int) Record {
	return Record{mem: mem[:EntrySize(order)], order: order}
}

// Encode builds a new record.
func Encode(words []WordIndex, count uint64) []byte {
	mem := make([]byte, EntrySize(len(words)))
	r := View(mem, len(words))
	for i, w := range words {
		r.SetWord(i, w)
	}
	r.SetCount(count)
	return mem
}

func (r Record) Order() int {
	return r.order
}

func (r Record) Word(i int) WordIndex {
	return binary.LittleEndian.Uint32(r.mem[i*wordSize:])
}

func (r Record) SetWord(i int, w WordIndex) {
	binary.LittleEndian.PutUint32(r.mem[i*wordSize:], w)
}

// Words copies the word ids out of the record.
func (r Record) Words() []WordIndex {
	words := make([]WordIndex, r.order)
	for i := range words {
		words[i] = r.Word(i)
	}
	return words
}

func (r Record) Count() uint64 {
	return binary.LittleEndian.Uint64(r.mem[r.order*wordSize:])
}

func (r Record) SetCount(c uint64) {
	binary.LittleEndian.PutUint64(r.mem[r.order*wordSize:], c)
}

func word(mem []byte, i int) WordIndex {
	return binary.LittleEndian.Uint32(mem[i*wordSize:])
}

// PrefixOrder compares n-grams word by word from the first word to the
// last.
func PrefixOrder(order int) blocksort.Compare {
	return func(a, b []byte) bool {
		for i := 0; i < order; i++ {
			if wa, wb := word(a, i), word(b, i); wa != wb {
				return wa < wb
			}
		}
		return false
	}
}

// SuffixOrder compares n-grams word by word from the last word to the
// first.
func SuffixOrder(order int) blocksort.Compare {
	return func(a, b []byte) bool {
		for i := order - 1; i > 0; i-- {
			if wa, wb := word(a, i), word(b, i); wa != wb {
				return wa < wb
			}
		}
		return word(a, 0) < word(b, 0)
	}
}

// ContextOrder compares the context of n-grams in reverse, from the
// penultimate word to the first, then the last word.
func ContextOrder(order int) blocksort.Compare {
	return func(a, b []byte) bool {
		for i := order - 2; i >= 0; i-- {
			if wa, wb := word(a, i), word(b, i); wa != wb {
				return wa < wb
			}
		}
		return word(a, order-1) < word(b, order-1)
	}
}

// SumCounts adds up the counts of identical n-grams. Every comparator of
// this package only ties on identical words.
func SumCounts(order int) blocksort.Combine {
	return blocksort.SumUint64(order * wordSize)
}
