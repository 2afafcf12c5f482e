package mutable_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/graph/mutable"
)

func TestPusher(t *testing.T) {
	p := mutable.NewPusher()
	c1 := &counter{Context: mutable.Mutable()}
	d := mutable.NewDestination()
	p.AddDestination(c1.Context, d)

	b, err := p.Stage(c1.add(1), c1.add(2))
	require.NoError(t, err)
	require.NoError(t, b.Push(context.Background()))
	assert.Empty(t, b)
	ms, ok := d.Receive()
	require.True(t, ok)
	ms = ms.ApplyTo(c1.Context)
	assert.Equal(t, []int{1, 2}, c1.values)
	assert.Empty(t, ms)

	_, ok = d.Receive()
	assert.False(t, ok, "empty destination")

	// nothing is staged if any context is unknown.
	c2 := &counter{Context: mutable.Mutable()}
	b, err = p.Stage(c1.add(3), c2.add(4))
	assert.ErrorIs(t, err, mutable.ErrUnknownContext)
	assert.Nil(t, b)

	p.RemoveDestination(c1.Context)
	_, err = p.Stage(c1.add(5))
	assert.ErrorIs(t, err, mutable.ErrUnknownContext)
}

func TestPushFullDestination(t *testing.T) {
	p := mutable.NewPusher()
	c := &counter{Context: mutable.Mutable()}
	d := mutable.NewDestination()
	p.AddDestination(c.Context, d)

	first, err := p.Stage(c.add(1))
	require.NoError(t, err)
	require.NoError(t, first.Push(context.Background()))

	second, err := p.Stage(c.add(2))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, second.Push(ctx), context.DeadlineExceeded)
	assert.Empty(t, second, "undelivered mutations are dropped")

	// failed batch is never delivered by later pushes.
	ms, _ := d.Receive()
	ms.ApplyTo(c.Context)
	third, err := p.Stage(c.add(3))
	require.NoError(t, err)
	require.NoError(t, third.Push(context.Background()))
	ms, _ = d.Receive()
	ms.ApplyTo(c.Context)
	assert.Equal(t, []int{1, 3}, c.values)
}
