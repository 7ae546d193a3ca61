package stream

import (
	bserrors "github.com/lanrat/blocksort/errors"
)

// Stream walks a chain one record at a time, crossing block boundaries
// transparently. The same cursor is used to read records from upstream and
// to write records into the blocks a producer was handed.
type Stream struct {
	link      *Link
	entrySize int
	current   int
	end       int
}

// NewStream binds a record cursor to position.
func NewStream(position ChainPosition) (*Stream, error) {
	l, err := NewLink(position)
	if err != nil {
		return nil, err
	}
	s := &Stream{link: l, entrySize: position.Chain().EntrySize()}
	s.resetBlock()
	if err := s.skipZero(); err != nil {
		return nil, err
	}
	return s, nil
}

// Valid is false once the stream is exhausted.
func (s *Stream) Valid() bool {
	return s.link.Valid()
}

// Get returns the current record. Writes go straight into the block.
func (s *Stream) Get() []byte {
	end := s.current + s.entrySize
	return s.link.current.mem[s.current:end:end]
}

// Next advances to the next record.
func (s *Stream) Next() error {
	if !s.Valid() {
		return bserrors.ErrStreamExhausted
	}
	s.current += s.entrySize
	return s.skipZero()
}

// Poison truncates the current block at the cursor, sends it downstream and
// ends the stream. Producers call this when their input runs out.
func (s *Stream) Poison() error {
	if !s.Valid() {
		return bserrors.ErrAlreadyPoisoned
	}
	s.link.Block().SetValidSize(s.current)
	if err := s.link.Next(); err != nil {
		return err
	}
	if !s.link.Valid() {
		return nil
	}
	return s.link.Poison()
}

// Close reports ErrLiveBlock if the stream was abandoned before the poison.
func (s *Stream) Close() error {
	return s.link.Close()
}

func (s *Stream) resetBlock() {
	s.current = 0
	s.end = s.link.current.valid
}

func (s *Stream) skipZero() error {
	for s.current == s.end && s.link.Valid() {
		if err := s.link.Next(); err != nil {
			return err
		}
		s.resetBlock()
	}
	return nil
}
