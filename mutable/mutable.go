// Package mutable carries control-plane changes into the audio goroutine.
//
// A change that can't be expressed as a single atomic write, for example
// resetting a delay line, is wrapped into a Mutation bound to the Context
// of the node it mutates. Mutations are delivered in batches and applied
// by the processing goroutine right before the node's turn in the block,
// so the node never observes a change in the middle of processing.
package mutable

import "sync/atomic"

var contexts atomic.Uint64

type (
	// Context identifies the mutable object. Zero value is immutable.
	Context uint64

	// Mutation is a function bound to a mutable context.
	Mutation struct {
		Context
		fn func()
	}

	// Mutations is an ordered batch. Mutations of the same context are
	// applied in the order they were put.
	Mutations []Mutation
)

// Mutable returns new unique mutable context.
func Mutable() Context {
	return Context(contexts.Add(1))
}

// Immutable returns immutable context.
func Immutable() Context {
	return 0
}

// Mutate binds fn to the context. It panics if context is immutable.
func (c Context) Mutate(fn func()) Mutation {
	if !c.IsMutable() {
		panic("mutate immutable context")
	}
	return Mutation{Context: c, fn: fn}
}

// IsMutable returns true if context accepts mutations.
func (c Context) IsMutable() bool {
	return c != 0
}

// Apply executes the mutation.
func (m Mutation) Apply() {
	m.fn()
}

// Put adds mutation to the batch. Mutations of immutable context are
// ignored.
func (ms Mutations) Put(m Mutation) Mutations {
	if !m.IsMutable() {
		return ms
	}
	return append(ms, m)
}

// Append adds mutations of source batch to the end.
func (ms Mutations) Append(source Mutations) Mutations {
	return append(ms, source...)
}

// ApplyTo applies mutations of the context and returns the rest of the
// batch. Remaining mutations are compacted in place.
func (ms Mutations) ApplyTo(c Context) Mutations {
	if len(ms) == 0 || !c.IsMutable() {
		return ms
	}
	rest := ms[:0]
	for _, m := range ms {
		if m.Context == c {
			m.fn()
			continue
		}
		rest = append(rest, m)
	}
	clear(ms[len(rest):])
	return rest
}

// Len returns number of mutations of the context in the batch.
func (ms Mutations) Len(c Context) int {
	n := 0
	for _, m := range ms {
		if m.Context == c {
			n++
		}
	}
	return n
}

// Discard drops every mutation and returns empty batch that reuses the
// storage.
func (ms Mutations) Discard() Mutations {
	clear(ms)
	return ms[:0]
}
