package mutable

import (
	"context"
	"errors"
)

type (
	// Pusher maps mutable contexts to destinations. Pusher is not safe for
	// concurrent use, callers synchronise access.
	Pusher struct {
		destinations map[Context]Destination
	}

	// Destination is a channel that used as source of mutations.
	Destination chan Mutations

	// Batch holds staged mutations per destination. It's owned by the
	// caller that staged it.
	Batch map[Destination]Mutations
)

// ErrUnknownContext is returned when mutation is put for context that
// has no destination.
var ErrUnknownContext = errors.New("unknown mutable context")

// NewPusher creates new pusher.
func NewPusher() Pusher {
	return Pusher{
		destinations: make(map[Context]Destination),
	}
}

// NewDestination creates a destination that holds a single batch.
func NewDestination() Destination {
	return make(chan Mutations, 1)
}

// AddDestination adds new mapping of mutable context to destination.
func (p Pusher) AddDestination(ctx Context, d Destination) {
	p.destinations[ctx] = d
}

// RemoveDestination removes mapping of mutable context.
func (p Pusher) RemoveDestination(ctx Context) {
	delete(p.destinations, ctx)
}

// Stage groups mutations by destination. Nothing is staged if any
// context has no destination.
func (p Pusher) Stage(mutations ...Mutation) (Batch, error) {
	for _, m := range mutations {
		if _, ok := p.destinations[m.Context]; !ok {
			return nil, ErrUnknownContext
		}
	}
	b := make(Batch)
	for _, m := range mutations {
		d := p.destinations[m.Context]
		b[d] = b[d].Put(m)
	}
	return b, nil
}

// Push delivers the batch. If destination still holds the previous batch,
// Push waits until it's received or ctx is done. Mutations that were not
// delivered when ctx is done are dropped from the batch.
func (b Batch) Push(ctx context.Context) error {
	for d, ms := range b {
		if len(ms) == 0 {
			delete(b, d)
			continue
		}
		select {
		case d <- ms:
			delete(b, d)
		case <-ctx.Done():
			clear(b)
			return ctx.Err()
		}
	}
	return nil
}

// Receive returns pending batch without blocking.
func (d Destination) Receive() (Mutations, bool) {
	select {
	case ms := <-d:
		return ms, true
	default:
		return nil, false
	}
}
