//go:build portaudio

package portaudio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/graph"
	"pipelined.dev/graph/engine"
	"pipelined.dev/graph/mock"
	"pipelined.dev/graph/signal"
)

const blockSize = 4

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	g, err := graph.New()
	require.NoError(t, err)
	id, err := g.AddNode(mock.NewProcessor())
	require.NoError(t, err)
	in, _ := g.Outputs(g.Input())
	out, _ := g.Inputs(g.Output())
	pIn, _ := g.Inputs(id)
	pOut, _ := g.Outputs(id)
	_, err = g.Connect(in[0], pIn[0])
	require.NoError(t, err)
	_, err = g.Connect(pOut[0], out[0])
	require.NoError(t, err)
	return engine.New(g)
}

func TestCallback(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Start(context.Background(), 44100, blockSize))
	h := NewHost(e)
	h.in = signal.EmptyFloat64(2, blockSize)
	h.out = signal.EmptyFloat64(2, blockSize)

	in := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	out := make([]float32, len(in))
	h.process(in, out)
	assert.Equal(t, in, out)

	// missing input is silence.
	h.process(nil, out)
	assert.Equal(t, make([]float32, len(in)), out)
	require.NoError(t, e.Stop())
}

func TestPlay(t *testing.T) {
	h := NewHost(newEngine(t))
	require.NoError(t, h.Start(context.Background(), 44100, 512))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, h.Stop())
}
