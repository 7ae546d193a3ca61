package diff

// ChanResult holds a single diff result.
// It contains both the difference type (NEW/OLD) and a copy of the record.
type ChanResult struct {
	// D indicates whether the record is NEW (only in stream B) or OLD (only in stream A)
	D Delta
	// Rec is the record that differs between streams
	Rec []byte
}

// ResultChan creates a channel-based result processing system for record diffs.
// It returns a ResultFunc that can be passed to diff.Records() and a channel
// for consuming the results in a separate goroutine.
//
// The caller is responsible for closing the returned channel when done.
func ResultChan() (ResultFunc, chan *ChanResult) {
	c := make(chan *ChanResult, 1)
	f := func(d Delta, rec []byte) error {
		c <- &ChanResult{D: d, Rec: append([]byte(nil), rec...)}
		return nil
	}
	return f, c
}
