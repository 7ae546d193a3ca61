package blocksort

import (
	"sort"

	bserrors "github.com/lanrat/blocksort/errors"
)

// records views a byte slice as fixed-width records so sort.Sort can order
// them in place. The width is only known at runtime.
type records struct {
	mem     []byte
	size    int
	compare Compare
	swap    []byte
}

func newRecords(mem []byte, size int, compare Compare) *records {
	return &records{mem: mem, size: size, compare: compare, swap: make([]byte, size)}
}

func (r *records) at(i int) []byte {
	lo := i * r.size
	return r.mem[lo : lo+r.size : lo+r.size]
}

func (r *records) Len() int {
	return len(r.mem) / r.size
}

func (r *records) Less(i, j int) bool {
	return r.compare(r.at(i), r.at(j))
}

func (r *records) Swap(i, j int) {
	a, b := r.at(i), r.at(j)
	copy(r.swap, a)
	copy(a, b)
	copy(b, r.swap)
}

// collapse folds adjacent tying records of a sorted slice with combine and
// returns the length of the surviving prefix.
func (r *records) collapse(combine Combine) int {
	n := r.Len()
	if combine == nil || n == 0 {
		return n * r.size
	}
	out := 0
	for in := 1; in < n; in++ {
		if tryCombine(r.compare, combine, r.at(out), r.at(in)) {
			continue
		}
		out++
		if out != in {
			copy(r.at(out), r.at(in))
		}
	}
	return (out + 1) * r.size
}

// sortRecords sorts mem in place and applies combine to ties, returning the
// new valid length. A panicking comparator is reported as a ComparisonError.
func sortRecords(mem []byte, size int, compare Compare, combine Combine) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = bserrors.NewComparisonError(r, "sortRecords")
		}
	}()
	recs := newRecords(mem, size, compare)
	sort.Sort(recs)
	return recs.collapse(combine), nil
}
