package blocksort

import (
	"encoding/binary"
)

// Compare reports whether record a sorts before record b. Both slices are
// exactly one entry wide. It must be a strict weak ordering.
type Compare func(a, b []byte) bool

// Combine is offered two records that tie under compare. It returns true
// after folding other into into, in which case other is dropped from the
// output; false emits both.
type Combine func(into, other []byte, compare Compare) bool

// NeverCombine keeps every record, making a merge a pure merge.
var NeverCombine Combine

// DropDuplicates keeps the first of each group of tying records.
func DropDuplicates(into, other []byte, compare Compare) bool {
	return true
}

// SumUint64 returns a Combine adding the little endian uint64 count stored
// at offset of other into the count of into.
func SumUint64(offset int) Combine {
	return func(into, other []byte, compare Compare) bool {
		sum := binary.LittleEndian.Uint64(into[offset:]) + binary.LittleEndian.Uint64(other[offset:])
		binary.LittleEndian.PutUint64(into[offset:], sum)
		return true
	}
}

// tie reports whether neither record sorts before the other.
func tie(compare Compare, a, b []byte) bool {
	return !compare(a, b) && !compare(b, a)
}

// tryCombine offers other to combine if the two records tie.
func tryCombine(compare Compare, combine Combine, into, other []byte) bool {
	if combine == nil || !tie(compare, into, other) {
		return false
	}
	return combine(into, other, compare)
}
