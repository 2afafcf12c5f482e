package mutable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/graph/mutable"
)

// counter records the order of applied deltas.
type counter struct {
	mutable.Context
	values []int
}

func (c *counter) add(delta int) mutable.Mutation {
	return c.Mutate(func() {
		c.values = append(c.values, delta)
	})
}

func TestApplyTo(t *testing.T) {
	tests := []struct {
		description string
		operations  []int
		expected    [][]int
	}{
		{
			description: "single context",
			operations:  []int{0, 0, 0},
			expected:    [][]int{{1, 2, 3}},
		},
		{
			description: "interleaved contexts keep order",
			operations:  []int{0, 1, 0, 1, 1},
			expected:    [][]int{{1, 3}, {2, 4, 5}},
		},
		{
			description: "context without mutations",
			operations:  []int{1, 1},
			expected:    [][]int{nil, {1, 2}},
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			counters := make([]*counter, len(test.expected))
			for i := range counters {
				counters[i] = &counter{Context: mutable.Mutable()}
			}
			var ms mutable.Mutations
			for i, c := range test.operations {
				ms = ms.Put(counters[c].add(i + 1))
			}
			for i, c := range counters {
				assert.Equal(t, len(test.expected[i]), ms.Len(c.Context))
				ms = ms.ApplyTo(c.Context)
				assert.Equal(t, test.expected[i], c.values)
				assert.Zero(t, ms.Len(c.Context))
			}
			assert.Empty(t, ms)
		})
	}
}

func TestAppend(t *testing.T) {
	c1 := &counter{Context: mutable.Mutable()}
	c2 := &counter{Context: mutable.Mutable()}
	var received, pending mutable.Mutations
	pending = pending.Put(c1.add(1)).Put(c2.add(2))
	received = received.Put(c1.add(3))
	pending = pending.Append(received)

	pending = pending.ApplyTo(c1.Context)
	assert.Equal(t, []int{1, 3}, c1.values)
	assert.Len(t, pending, 1)
	pending = pending.ApplyTo(c2.Context)
	assert.Equal(t, []int{2}, c2.values)
}

func TestMutability(t *testing.T) {
	assert.False(t, mutable.Immutable().IsMutable())
	c1, c2 := mutable.Mutable(), mutable.Mutable()
	assert.True(t, c1.IsMutable())
	assert.NotEqual(t, c1, c2)
	assert.Panics(t, func() {
		mutable.Immutable().Mutate(func() {})
	})

	c := &counter{Context: c1}
	c.add(10).Apply()
	assert.Equal(t, []int{10}, c.values)

	// immutable mutations are ignored by batch.
	var ms mutable.Mutations
	ms = ms.Put(mutable.Mutation{})
	assert.Empty(t, ms)
	assert.Empty(t, ms.ApplyTo(mutable.Immutable()))
}

func TestDiscard(t *testing.T) {
	c := &counter{Context: mutable.Mutable()}
	var ms mutable.Mutations
	ms = ms.Put(c.add(10))
	ms = ms.Discard()
	ms = ms.ApplyTo(c.Context)
	assert.Empty(t, c.values)
	assert.Empty(t, ms)
}
