package main

import (
	"context"
	"errors"
	"io"

	"github.com/lanrat/blocksort/stream"
)

// recordSource is a cursor over the records of a reader, fed by its own
// chain.
type recordSource struct {
	*stream.Stream
	chain  *stream.Chain
	cancel context.CancelFunc
}

// readRecords starts a chain reading r and returns a cursor over its
// records.
func readRecords(ctx context.Context, config stream.ChainConfig, r io.Reader) (*recordSource, error) {
	ctx, cancel := context.WithCancel(ctx)
	c, err := stream.NewChain(config)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		cancel()
		return nil, err
	}
	abort := func(err error) (*recordSource, error) {
		cancel()
		return nil, errors.Join(err, c.Wait(true))
	}
	if err := c.Attach(stream.Read{R: r}); err != nil {
		return abort(err)
	}
	position, err := c.Add()
	if err != nil {
		return abort(err)
	}
	if err := c.Complete(stream.Recycle); err != nil {
		return abort(err)
	}
	s, err := stream.NewStream(position)
	if err != nil {
		return abort(err)
	}
	return &recordSource{Stream: s, chain: c, cancel: cancel}, nil
}

// Wait stops the chain once the cursor is exhausted.
func (r *recordSource) Wait() error {
	defer r.cancel()
	return r.chain.Wait(true)
}

// drain consumes the rest of the records.
func (r *recordSource) drain() error {
	for r.Valid() {
		if err := r.Next(); err != nil {
			return err
		}
	}
	return nil
}
