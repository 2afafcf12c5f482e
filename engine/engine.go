// Package engine drives a graph block by block. It keeps the audio
// callback alive when the graph fails: failed blocks are replaced with
// silence and reported to a logging goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/graph"
	"pipelined.dev/graph/signal"
)

// ErrPanic is wrapped into ProcessError when processing panics.
var ErrPanic = errors.New("processing panic")

// ErrStarted is returned when engine is started twice.
var ErrStarted = errors.New("engine already started")

// unknownNode is the node of ProcessError recovered from panic.
const unknownNode graph.NodeID = -1

type (
	// Engine executes the graph in the audio callback.
	Engine struct {
		uid        string
		graph      *graph.Graph
		log        logrus.FieldLogger
		errc       chan error
		bufferSize int

		sampleRate float64
		blockSize  int
		budget     time.Duration

		started  atomic.Bool
		cancelFn context.CancelFunc
		wg       sync.WaitGroup

		blocks   atomic.Uint64
		failures atomic.Uint64
		overruns atomic.Uint64
		dropped  atomic.Uint64
	}

	// Option configures the engine.
	Option func(*Engine)

	// Stats are engine counters.
	Stats struct {
		Blocks   uint64
		Failures uint64
		Overruns uint64
		// Dropped counts failures that were not reported because the
		// reporting goroutine was busy.
		Dropped uint64
	}

	// Source provides blocks for offline rendering. It returns number of
	// frames read and io.EOF when there is no more data.
	Source interface {
		Read(block signal.Float64) (int, error)
	}

	// Sink consumes rendered blocks.
	Sink interface {
		Write(block signal.Float64, frames int) error
	}
)

// WithLogger sets logger for failure reports.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithReportBuffer sets how many failures can wait for the reporting
// goroutine before they're dropped.
func WithReportBuffer(n int) Option {
	return func(e *Engine) {
		e.bufferSize = max(1, n)
	}
}

// New returns engine for the graph.
func New(g *graph.Graph, options ...Option) *Engine {
	e := &Engine{
		uid:        xid.New().String(),
		graph:      g,
		log:        logrus.StandardLogger(),
		bufferSize: 16,
	}
	for _, option := range options {
		option(e)
	}
	e.log = e.log.WithFields(logrus.Fields{
		"engine": e.uid,
		"graph":  g.UID(),
	})
	return e
}

// UID returns unique id of the engine.
func (e *Engine) UID() string {
	return e.uid
}

// Graph returns the driven graph.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// BlockSize returns block size engine was started with.
func (e *Engine) BlockSize() int {
	return e.blockSize
}

// Start prepares the graph and starts reporting goroutine. The goroutine
// stops when ctx is done or Stop is called.
func (e *Engine) Start(ctx context.Context, sampleRate float64, blockSize int) error {
	if e.started.Swap(true) {
		return ErrStarted
	}
	if err := e.graph.Prepare(sampleRate, blockSize); err != nil {
		e.started.Store(false)
		return fmt.Errorf("prepare graph: %w", err)
	}
	e.sampleRate = sampleRate
	e.blockSize = blockSize
	e.budget = signal.DurationOf(sampleRate, int64(blockSize))
	e.errc = make(chan error, e.bufferSize)

	ctx, e.cancelFn = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.report(ctx)
	e.log.WithFields(logrus.Fields{
		"sample_rate": sampleRate,
		"block_size":  blockSize,
	}).Debug("engine started")
	return nil
}

// report logs failures until ctx is done. Failures left in the buffer are
// logged before return.
func (e *Engine) report(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case err := <-e.errc:
			e.logFailure(err)
		case <-ctx.Done():
			for {
				select {
				case err := <-e.errc:
					e.logFailure(err)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) logFailure(err error) {
	fields := logrus.Fields{"error": err}
	var perr *graph.ProcessError
	if errors.As(err, &perr) && perr.Node != unknownNode {
		fields["node"] = perr.Node
	}
	e.log.WithFields(fields).Error("block failed")
}

// Process processes a single block in the audio callback. If graph fails,
// out is filled with silence and the failure is reported without
// blocking. The returned error is the graph failure, callers may ignore
// it.
func (e *Engine) Process(in, out signal.Float64, frames int) error {
	start := time.Now()
	err := e.process(in, out, frames)
	e.blocks.Add(1)
	if err != nil {
		out.Clear(min(frames, out.Size()))
		e.failures.Add(1)
		select {
		case e.errc <- err:
		default:
			e.dropped.Add(1)
		}
	}
	if e.budget > 0 && time.Since(start) > e.budget {
		e.overruns.Add(1)
	}
	return err
}

// process recovers panics of the block.
func (e *Engine) process(in, out signal.Float64, frames int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &graph.ProcessError{
				Node: unknownNode,
				Err:  fmt.Errorf("%w: %v", ErrPanic, r),
			}
		}
	}()
	return e.graph.Process(in, out, frames)
}

// Render processes the whole source offline and writes every block into
// sink. Failed blocks are written as silence. Render returns when source
// is exhausted, ctx is done or sink fails.
func (e *Engine) Render(ctx context.Context, source Source, sink Sink) error {
	if !e.started.Load() {
		return graph.ErrNotPrepared
	}
	inChannels, outChannels := e.graph.Channels()
	in := signal.EmptyFloat64(inChannels, e.blockSize)
	out := signal.EmptyFloat64(outChannels, e.blockSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		read, err := source.Read(in)
		if read > 0 {
			_ = e.Process(in, out, read)
			if werr := sink.Write(out, read); werr != nil {
				return fmt.Errorf("write block: %w", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read block: %w", err)
		}
	}
}

// Stats returns engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Blocks:   e.blocks.Load(),
		Failures: e.failures.Load(),
		Overruns: e.overruns.Load(),
		Dropped:  e.dropped.Load(),
	}
}

// Stop stops reporting goroutine and releases the graph. Processing must
// be stopped before.
func (e *Engine) Stop() error {
	if !e.started.Load() {
		return graph.ErrNotPrepared
	}
	e.cancelFn()
	e.wg.Wait()
	stats := e.Stats()
	e.log.WithFields(logrus.Fields{
		"blocks":   stats.Blocks,
		"failures": stats.Failures,
		"overruns": stats.Overruns,
	}).Debug("engine stopped")
	return e.graph.Release()
}
