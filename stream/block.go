package stream

// Block is a slab of chain memory owned by exactly one stage at a time. The
// end of a stream is a poison Block, which carries no memory.
type Block struct {
	mem   []byte
	valid int
	eos   bool
}

func newBlock(mem []byte) Block {
	return Block{mem: mem, valid: len(mem)}
}

func poisonBlock() Block {
	return Block{eos: true}
}

// Get returns the full capacity of the block.
func (b *Block) Get() []byte {
	return b.mem
}

// Valid returns the populated prefix of the block.
func (b *Block) Valid() []byte {
	return b.mem[:b.valid]
}

// ValidSize is the number of populated bytes. A reader may fill in less than
// Cap() at the end of its input.
func (b *Block) ValidSize() int {
	return b.valid
}

// SetValidSize marks the first n bytes as populated.
func (b *Block) SetValidSize(n int) {
	if n < 0 || n > len(b.mem) {
		panic("stream: valid size out of range")
	}
	b.valid = n
}

// Cap is the block capacity in bytes.
func (b *Block) Cap() int {
	return len(b.mem)
}

// Poisoned reports whether this is the end-of-stream marker.
func (b *Block) Poisoned() bool {
	return b.eos
}

// SetToPoison turns the block into the end-of-stream marker and drops its
// memory.
func (b *Block) SetToPoison() {
	*b = poisonBlock()
}
