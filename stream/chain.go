// Package stream implements a bounded-memory pipeline of fixed-size blocks.
//
// A Chain owns one memory arena cut into BlockCount blocks. Stages attached to
// the chain each run in their own goroutine and hand blocks downstream through
// bounded queues; the last queue loops back to the first, so the same blocks
// circulate until the stream is poisoned. A full queue stalls its producer,
// which keeps the whole pipeline inside the arena no matter how much data
// passes through it.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	bserrors "github.com/lanrat/blocksort/errors"

	"golang.org/x/sync/errgroup"
)

// ChainConfig describes the arena of a Chain.
type ChainConfig struct {
	EntrySize  int       // size of one record in bytes
	BlockSize  int       // bytes per block, rounded up to a multiple of EntrySize
	BlockCount int       // number of blocks circulating in the chain
	Allocator  Allocator // nil uses DefaultAllocator
}

// Worker is a pipeline stage. Run is called once in a dedicated goroutine
// and must consume its input until the poison, forwarding the poison on.
type Worker interface {
	Run(position ChainPosition) error
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(position ChainPosition) error

// Run calls f(position).
func (f WorkerFunc) Run(position ChainPosition) error {
	return f(position)
}

// ChainPosition is the pair of queues a single stage reads from and writes
// to. It is returned by Chain.Add and must be used by exactly one Link,
// Stream or RewindableStream.
type ChainPosition struct {
	in, out *boundedQueue
	chain   *Chain
	ctx     context.Context
}

// Chain returns the chain this position belongs to.
func (p ChainPosition) Chain() *Chain {
	return p.chain
}

// Chain is a pipeline instance: an arena, a ring of bounded queues and the
// goroutines running its stages. A Chain is driven from a single goroutine;
// only the stages run concurrently.
type Chain struct {
	config   ChainConfig
	alloc    Allocator
	arena    []byte
	queues   []*boundedQueue
	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
	complete bool
	stages   int
}

// NewChain validates config and returns an idle chain. Memory is allocated
// on the first Start or Add.
func NewChain(config ChainConfig) (*Chain, error) {
	if config.EntrySize <= 0 {
		return nil, bserrors.NewConfigError("EntrySize", config.EntrySize, "entries must have a positive size")
	}
	if config.BlockSize <= 0 {
		return nil, bserrors.NewConfigError("BlockSize", config.BlockSize, "blocks must have a positive size")
	}
	if config.BlockCount <= 0 {
		return nil, bserrors.NewConfigError("BlockCount", config.BlockCount, "a chain needs at least one block")
	}
	// Round up to a multiple of EntrySize.
	config.BlockSize = config.EntrySize * ((config.BlockSize + config.EntrySize - 1) / config.EntrySize)
	c := &Chain{config: config, alloc: config.Allocator}
	if c.alloc == nil {
		c.alloc = DefaultAllocator
	}
	return c, nil
}

// EntrySize is the size of one record.
func (c *Chain) EntrySize() int {
	return c.config.EntrySize
}

// BlockSize is the capacity of each block, a multiple of EntrySize.
func (c *Chain) BlockSize() int {
	return c.config.BlockSize
}

// BlockCount is the number of blocks in circulation.
func (c *Chain) BlockCount() int {
	return c.config.BlockCount
}

// Running reports whether Start has been called since the last Wait.
func (c *Chain) Running() bool {
	return c.queues != nil
}

// Start allocates the arena if needed and fills the first queue with every
// block. Stages are cancelled when ctx is done.
func (c *Chain) Start(ctx context.Context) error {
	if c.Running() {
		return nil
	}
	size := c.config.BlockSize * c.config.BlockCount
	if c.arena == nil {
		mem, err := c.alloc.Allocate(size)
		if err != nil {
			return err
		}
		if len(mem) < size {
			return bserrors.NewResourceError(fmt.Errorf("allocator returned %d bytes", len(mem)), "chain arena", size)
		}
		c.arena = mem
	}
	var cancelCtx context.Context
	cancelCtx, c.cancel = context.WithCancel(ctx)
	c.group, c.ctx = errgroup.WithContext(cancelCtx)

	// The loop-back queue has room for every block plus a poison so the
	// stage closing the loop never stalls while Wait drains it.
	front := newBoundedQueue(c.config.BlockCount + 1)
	for i := 0; i < c.config.BlockCount; i++ {
		lo, hi := i*c.config.BlockSize, (i+1)*c.config.BlockSize
		front.ch <- newBlock(c.arena[lo:hi:hi])
	}
	c.queues = []*boundedQueue{front}
	return nil
}

// Add appends a queue to the chain and returns the position between the
// previous last queue and the new one.
func (c *Chain) Add() (ChainPosition, error) {
	if !c.Running() {
		if err := c.Start(context.Background()); err != nil {
			return ChainPosition{}, err
		}
	}
	if c.complete {
		return ChainPosition{}, fmt.Errorf("add after the loop was closed: %w", bserrors.ErrCompleteTwice)
	}
	in := c.queues[len(c.queues)-1]
	out := newBoundedQueue(c.config.BlockCount)
	c.queues = append(c.queues, out)
	return ChainPosition{in: in, out: out, chain: c, ctx: c.ctx}, nil
}

// Attach runs w as the next stage of the chain.
func (c *Chain) Attach(w Worker) error {
	position, err := c.Add()
	if err != nil {
		return err
	}
	c.spawn(w, position)
	return nil
}

// Complete runs w as the final stage, whose output feeds the first queue.
func (c *Chain) Complete(w Worker) error {
	if !c.Running() {
		if err := c.Start(context.Background()); err != nil {
			return err
		}
	}
	if c.complete {
		return bserrors.ErrCompleteTwice
	}
	c.complete = true
	position := ChainPosition{in: c.queues[len(c.queues)-1], out: c.queues[0], chain: c, ctx: c.ctx}
	c.spawn(w, position)
	return nil
}

func (c *Chain) spawn(w Worker, position ChainPosition) {
	c.stages++
	name := fmt.Sprintf("%d:%T", c.stages, w)
	c.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &bserrors.PanicError{Stage: name, Cause: r}
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("chain stage failed", "stage", name, "error", err)
			}
		}()
		return w.Run(position)
	})
}

// Wait closes the loop with Recycle if no terminal stage was attached, joins
// every stage and checks that the poison came back around. The first stage
// error is returned. The chain may be started again afterwards; its arena is
// kept unless releaseMemory is set.
func (c *Chain) Wait(releaseMemory bool) error {
	if !c.Running() {
		if releaseMemory {
			return c.release()
		}
		return nil
	}
	var err error
	if !c.complete {
		err = c.Complete(Recycle)
	}
	if err == nil {
		err = c.group.Wait()
		if err == nil {
			err = c.drain()
		}
	}
	c.cancel()
	c.queues = nil
	c.group = nil
	c.ctx = nil
	c.cancel = nil
	c.complete = false
	c.stages = 0
	if releaseMemory {
		err = errors.Join(err, c.release())
	}
	return err
}

// drain empties the first queue up to the poison. All stages have returned
// by now, so anything short of a poison means blocks went missing.
func (c *Chain) drain() error {
	front := c.queues[0]
	for i := 0; ; i++ {
		b, ok := front.tryConsume()
		if !ok {
			return bserrors.NewInternalError("chain ended without poison after %d blocks", i)
		}
		if b.Poisoned() {
			return nil
		}
		if i >= c.config.BlockCount {
			return bserrors.NewInternalError("chain returned more than %d blocks without poison", c.config.BlockCount)
		}
	}
}

func (c *Chain) release() error {
	if c.arena == nil {
		return nil
	}
	mem := c.arena
	c.arena = nil
	return c.alloc.Release(mem)
}

type recycler struct{}

func (recycler) Run(position ChainPosition) error {
	blockSize := position.Chain().BlockSize()
	l, err := NewLink(position)
	if err != nil {
		return err
	}
	for l.Valid() {
		l.Block().SetValidSize(blockSize)
		if err := l.Next(); err != nil {
			return err
		}
	}
	return l.Close()
}

// Recycle is the terminal stage that discards a chain's output and returns
// the blocks, full size, to the head of the chain.
var Recycle Worker = recycler{}
