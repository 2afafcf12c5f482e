package engine_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/graph"
	"pipelined.dev/graph/effect"
	"pipelined.dev/graph/effects"
	"pipelined.dev/graph/engine"
	"pipelined.dev/graph/mock"
	"pipelined.dev/graph/signal"
)

const (
	sampleRate = 44100
	blockSize  = 32
)

// blocks reads data block by block.
type blocks struct {
	data signal.Float64
	pos  int
}

func (s *blocks) Read(b signal.Float64) (int, error) {
	n := min(b.Size(), s.data.Size()-s.pos)
	if n == 0 {
		return 0, io.EOF
	}
	for c := range b {
		copy(b[c][:n], s.data[c][s.pos:s.pos+n])
	}
	s.pos += n
	return n, nil
}

type collector struct {
	signal.Float64
	err error
}

func (c *collector) Write(b signal.Float64, frames int) error {
	if c.err != nil {
		return c.err
	}
	c.Float64 = c.Float64.Append(b.Slice(0, frames))
	return nil
}

func constant(channels, frames int, value float64) signal.Float64 {
	buf := signal.EmptyFloat64(channels, frames)
	for c := range buf {
		for i := range buf[c] {
			buf[c][i] = value
		}
	}
	return buf
}

// newGraph returns input -> n -> output graph.
func newGraph(t *testing.T, n graph.Node) (*graph.Graph, graph.NodeID) {
	t.Helper()
	g, err := graph.New()
	require.NoError(t, err)
	id, err := g.AddNode(n)
	require.NoError(t, err)
	in, _ := g.Outputs(g.Input())
	out, _ := g.Inputs(g.Output())
	nIn, _ := g.Inputs(id)
	nOut, _ := g.Outputs(id)
	_, err = g.Connect(in[0], nIn[0])
	require.NoError(t, err)
	_, err = g.Connect(nOut[0], out[0])
	require.NoError(t, err)
	return g, id
}

func TestFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	errProcess := errors.New("process failed")
	tests := []struct {
		description string
		processor   *mock.Processor
		err         error
		logsNode    bool
	}{
		{
			description: "error",
			processor: &mock.Processor{
				In:          []graph.PortSpec{{Name: "in", Type: graph.Stereo}},
				Out:         []graph.PortSpec{{Name: "out", Type: graph.Stereo}},
				Node:        graph.KindEffect,
				ErrorOnCall: errProcess,
			},
			err:      errProcess,
			logsNode: true,
		},
		{
			description: "panic",
			processor: &mock.Processor{
				In:          []graph.PortSpec{{Name: "in", Type: graph.Stereo}},
				Out:         []graph.PortSpec{{Name: "out", Type: graph.Stereo}},
				Node:        graph.KindEffect,
				PanicOnCall: "boom",
			},
			err: engine.ErrPanic,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			logger, hook := testLogger()
			g, id := newGraph(t, test.processor)
			e := engine.New(g, engine.WithLogger(logger))
			require.NoError(t, e.Start(context.Background(), sampleRate, blockSize))

			out := constant(2, blockSize, 1)
			err := e.Process(constant(2, blockSize, 1), out, blockSize)
			var perr *graph.ProcessError
			require.ErrorAs(t, err, &perr)
			assert.ErrorIs(t, err, test.err)
			assert.Equal(t, signal.EmptyFloat64(2, blockSize), out)

			stats := e.Stats()
			assert.Equal(t, uint64(1), stats.Blocks)
			assert.Equal(t, uint64(1), stats.Failures)
			require.NoError(t, e.Stop())

			entries := hook.AllEntries()
			require.Len(t, entries, 1)
			assert.Equal(t, logrus.ErrorLevel, entries[0].Level)
			assert.Equal(t, g.UID(), entries[0].Data["graph"])
			node, ok := entries[0].Data["node"]
			assert.Equal(t, test.logsNode, ok)
			if ok {
				assert.Equal(t, id, node)
			}
		})
	}
}

// testLogger records entries of Info level and above.
func testLogger() (*logrus.Logger, *logtest.Hook) {
	return logtest.NewNullLogger()
}

func TestRecovers(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := mock.NewProcessor()
	g, _ := newGraph(t, p)
	logger, _ := logtest.NewNullLogger()
	e := engine.New(g, engine.WithLogger(logger))
	require.NoError(t, e.Start(context.Background(), sampleRate, blockSize))

	in := constant(2, blockSize, 0.5)
	out := signal.EmptyFloat64(2, blockSize)
	p.ErrorOnCall = errors.New("glitch")
	assert.Error(t, e.Process(in, out, blockSize))
	// next block is processed as usual.
	p.ErrorOnCall = nil
	require.NoError(t, e.Process(in, out, blockSize))
	assert.Equal(t, in, out)
	assert.Equal(t, uint64(1), e.Stats().Failures)
	assert.Equal(t, uint64(2), e.Stats().Blocks)
	require.NoError(t, e.Stop())
}

func TestNotStarted(t *testing.T) {
	defer goleak.VerifyNone(t)
	g, _ := newGraph(t, mock.NewProcessor())
	logger, _ := logtest.NewNullLogger()
	e := engine.New(g, engine.WithLogger(logger))
	assert.NotEmpty(t, e.UID())
	assert.Equal(t, g, e.Graph())

	out := signal.EmptyFloat64(2, blockSize)
	assert.ErrorIs(t, e.Process(constant(2, blockSize, 1), out, blockSize), graph.ErrNotPrepared)
	// no reporting goroutine yet.
	assert.Equal(t, uint64(1), e.Stats().Dropped)
	assert.ErrorIs(t, e.Render(context.Background(), &blocks{}, &collector{}), graph.ErrNotPrepared)
	assert.ErrorIs(t, e.Stop(), graph.ErrNotPrepared)

	require.NoError(t, e.Start(context.Background(), sampleRate, blockSize))
	assert.ErrorIs(t, e.Start(context.Background(), sampleRate, blockSize), engine.ErrStarted)
	require.NoError(t, e.Stop())
}

func TestStartFails(t *testing.T) {
	g, _ := newGraph(t, mock.NewProcessor())
	e := engine.New(g)
	assert.ErrorIs(t, e.Start(context.Background(), 0, blockSize), graph.ErrSampleRate)
	// can be started after failure.
	require.NoError(t, e.Start(context.Background(), sampleRate, blockSize))
	require.NoError(t, e.Stop())
}

func TestRender(t *testing.T) {
	defer goleak.VerifyNone(t)
	g, _ := newGraph(t, effect.New(effects.NewGain(-6)))
	logger, _ := logtest.NewNullLogger()
	e := engine.New(g, engine.WithLogger(logger))
	require.NoError(t, e.Start(context.Background(), sampleRate, blockSize))

	// last block is partial.
	frames := 3*blockSize + 5
	source := &blocks{data: constant(2, frames, 1)}
	sink := &collector{}
	require.NoError(t, e.Render(context.Background(), source, sink))
	require.Equal(t, 2, sink.NumChannels())
	assert.Equal(t, frames, sink.Size())
	for _, c := range sink.Float64 {
		for _, v := range c {
			assert.InDelta(t, effects.DecibelsToLinear(-6), v, 1e-9)
		}
	}
	assert.Equal(t, uint64(4), e.Stats().Blocks)
	require.NoError(t, e.Stop())
}

func TestRenderErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	g, _ := newGraph(t, mock.NewProcessor())
	logger, _ := logtest.NewNullLogger()
	e := engine.New(g, engine.WithLogger(logger))
	require.NoError(t, e.Start(context.Background(), sampleRate, blockSize))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Render(ctx, &blocks{data: constant(2, blockSize, 1)}, &collector{})
	assert.ErrorIs(t, err, context.Canceled)

	errWrite := errors.New("disk full")
	err = e.Render(context.Background(), &blocks{data: constant(2, blockSize, 1)}, &collector{err: errWrite})
	assert.ErrorIs(t, err, errWrite)
	require.NoError(t, e.Stop())
}
