package stream

import (
	"context"

	bserrors "github.com/lanrat/blocksort/errors"
)

// Link is a stage's handle on whole blocks. It holds one block at a time;
// Next hands it downstream and takes the next one from upstream.
type Link struct {
	in, out  *boundedQueue
	ctx      context.Context
	current  Block
	poisoned bool // the poison has been sent downstream
}

// NewLink binds a link to position and takes its first block, blocking until
// upstream provides one.
func NewLink(position ChainPosition) (*Link, error) {
	l := &Link{in: position.in, out: position.out, ctx: position.ctx}
	b, err := l.in.consume(l.ctx)
	if err != nil {
		return nil, err
	}
	l.current = b
	if b.Poisoned() {
		l.poisoned = true
		if err := l.out.produce(l.ctx, b); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Block is the block currently owned by this stage.
func (l *Link) Block() *Block {
	return &l.current
}

// Valid is false once the poison has arrived.
func (l *Link) Valid() bool {
	return !l.current.Poisoned()
}

// Next forwards the current block and waits for the next. When the next
// block is the poison it is passed on immediately and the link is exhausted.
func (l *Link) Next() error {
	if !l.Valid() {
		return bserrors.ErrStreamExhausted
	}
	if err := l.out.produce(l.ctx, l.current); err != nil {
		return err
	}
	b, err := l.in.consume(l.ctx)
	if err != nil {
		// nothing is owned any more
		l.current = poisonBlock()
		l.poisoned = true
		return err
	}
	l.current = b
	if b.Poisoned() {
		l.poisoned = true
		return l.out.produce(l.ctx, b)
	}
	return nil
}

// Poison ends the stream here: the current block is dropped and the poison
// is sent downstream in its place.
func (l *Link) Poison() error {
	if l.poisoned {
		return bserrors.ErrAlreadyPoisoned
	}
	l.current.SetToPoison()
	l.poisoned = true
	return l.out.produce(l.ctx, l.current)
}

// Close reports ErrLiveBlock if the link still owns a block, which would
// leave the chain one block short.
func (l *Link) Close() error {
	if l.Valid() {
		return bserrors.ErrLiveBlock
	}
	return nil
}
