package stream

import "context"

// boundedQueue is the FIFO between two adjacent stages. Produce blocks while
// the queue is full, which is the only backpressure in a chain.
type boundedQueue struct {
	ch chan Block
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{ch: make(chan Block, capacity)}
}

func (q *boundedQueue) produce(ctx context.Context, b Block) error {
	select {
	case q.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *boundedQueue) consume(ctx context.Context) (Block, error) {
	select {
	case b := <-q.ch:
		return b, nil
	case <-ctx.Done():
		return Block{}, ctx.Err()
	}
}

// tryConsume never blocks; ok is false when the queue is empty.
func (q *boundedQueue) tryConsume() (b Block, ok bool) {
	select {
	case b = <-q.ch:
		return b, true
	default:
		return Block{}, false
	}
}
