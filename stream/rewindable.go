package stream

import (
	"context"

	bserrors "github.com/lanrat/blocksort/errors"
)

// RewindableStream is a producer Stream that keeps the previous block back
// from downstream, so a writer can return to a marked record and overwrite
// it. The mark may be at most 2*BlockSize-1 bytes behind the cursor.
type RewindableStream struct {
	in, out   *boundedQueue
	ctx       context.Context
	entrySize int

	// second is the newest block; first the one held back before it.
	first, second       Block
	firstSeq, secondSeq uint64
	haveFirst           bool
	seq                 uint64

	onFirst      bool
	current, end int

	markSeq  uint64
	markOff  int
	poisoned bool
}

// NewRewindableStream binds a rewindable cursor to position.
func NewRewindableStream(position ChainPosition) (*RewindableStream, error) {
	s := &RewindableStream{
		in:        position.in,
		out:       position.out,
		ctx:       position.ctx,
		entrySize: position.Chain().EntrySize(),
	}
	if err := s.fetchBlock(); err != nil {
		return nil, err
	}
	s.current, s.end = 0, s.second.valid
	if s.second.Poisoned() {
		s.poisoned = true
		if err := s.out.produce(s.ctx, s.second); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *RewindableStream) block() *Block {
	if s.onFirst {
		return &s.first
	}
	return &s.second
}

// Valid is false after the stream has been poisoned.
func (s *RewindableStream) Valid() bool {
	return !s.poisoned
}

// Get returns the record under the cursor.
func (s *RewindableStream) Get() []byte {
	end := s.current + s.entrySize
	return s.block().mem[s.current:end:end]
}

// Mark remembers the cursor position for a later Rewind.
func (s *RewindableStream) Mark() {
	if s.onFirst {
		s.markSeq = s.firstSeq
	} else {
		s.markSeq = s.secondSeq
	}
	s.markOff = s.current
}

// Rewind moves the cursor back to the mark. It fails with ErrRewoundTooFar
// when the marked block has already been sent downstream.
func (s *RewindableStream) Rewind() error {
	switch {
	case s.haveFirst && s.markSeq == s.firstSeq && s.markOff < s.first.valid:
		s.onFirst = true
		s.current, s.end = s.markOff, s.first.valid
	case !s.second.Poisoned() && s.markSeq == s.secondSeq && s.markOff < s.second.valid:
		s.onFirst = false
		s.current, s.end = s.markOff, s.second.valid
	default:
		return bserrors.ErrRewoundTooFar
	}
	return nil
}

// Next advances the cursor. Crossing into a new block sends the held-back
// block downstream.
func (s *RewindableStream) Next() error {
	if !s.Valid() {
		return bserrors.ErrStreamExhausted
	}
	s.current += s.entrySize
	if s.current == s.end {
		// Either the next block was already fetched (we had rewound into
		// first) or first has to go downstream to make room for it.
		if !s.onFirst {
			if s.haveFirst {
				if err := s.out.produce(s.ctx, s.first); err != nil {
					return err
				}
			}
			s.first, s.firstSeq, s.haveFirst = s.second, s.secondSeq, true
			if err := s.fetchBlock(); err != nil {
				return err
			}
		}
		s.onFirst = false
		s.current, s.end = 0, s.second.valid
	}
	if s.block().Poisoned() {
		if s.haveFirst {
			if err := s.out.produce(s.ctx, s.first); err != nil {
				return err
			}
			s.haveFirst = false
		}
		s.poisoned = true
		return s.out.produce(s.ctx, s.second)
	}
	return nil
}

// Poison sends the held-back block, the current block truncated at the
// cursor, and the poison.
func (s *RewindableStream) Poison() error {
	if s.poisoned {
		return bserrors.ErrAlreadyPoisoned
	}
	if !s.onFirst && s.haveFirst {
		if err := s.out.produce(s.ctx, s.first); err != nil {
			return err
		}
	}
	cur := s.block()
	cur.SetValidSize(s.current)
	if err := s.out.produce(s.ctx, *cur); err != nil {
		return err
	}
	if s.onFirst && !s.second.Poisoned() {
		// Everything written after the mark was discarded by Rewind.
		s.second.SetValidSize(0)
		if err := s.out.produce(s.ctx, s.second); err != nil {
			return err
		}
	}
	s.haveFirst = false
	s.poisoned = true
	return s.out.produce(s.ctx, poisonBlock())
}

// fetchBlock takes the next non-empty block from upstream into second.
func (s *RewindableStream) fetchBlock() error {
	for {
		b, err := s.in.consume(s.ctx)
		if err != nil {
			return err
		}
		if b.Poisoned() || b.valid != 0 {
			s.second = b
			break
		}
		// Empty blocks carry nothing to rewind into; pass them along.
		if err := s.out.produce(s.ctx, b); err != nil {
			return err
		}
	}
	s.seq++
	s.secondSeq = s.seq
	return nil
}
