package graph

import (
	"sync/atomic"

	"pipelined.dev/graph/metric"
	"pipelined.dev/graph/mutable"
	"pipelined.dev/graph/signal"
)

// schedule is an immutable snapshot of the topology used by the
// processing goroutine.
type schedule struct {
	generation uint64
	blockSize  int
	// buffers of input and output sentinels.
	input  signal.Float64
	output signal.Float64
	steps  []step
}

type step struct {
	id       NodeID
	node     Node
	ctx      mutable.Context
	bypass   *atomic.Bool
	bypasser Bypasser
	in, out  []signal.Float64
	feeds    []feed
	// channels feeding every input, applied to configurer on adoption.
	channels   []int
	configurer ChannelConfigurer
	measure    metric.MeasureFunc
	listeners  []Listener
}

// feed fills input port buffer. Nil source means unconnected input.
type feed struct {
	dst signal.Float64
	src signal.Float64
}

// publish builds schedule from current order and stores it. Must be
// called with mu held.
func (g *Graph) publish() {
	g.generation++
	s := &schedule{
		generation: g.generation,
		blockSize:  g.blockSize,
		input:      g.ports[g.nodes[g.input].outputs[0]].buffer,
		output:     g.ports[g.nodes[g.output].inputs[0]].buffer,
		steps:      make([]step, 0, len(g.order)),
	}
	// effective channels of output ports.
	effective := make(map[PortID]int)
	for _, id := range g.order {
		e := g.nodes[id]
		st := step{
			id:       id,
			node:     e.node,
			ctx:      e.ctx,
			bypass:   &e.bypass,
			in:       make([]signal.Float64, len(e.inputs)),
			out:      make([]signal.Float64, len(e.outputs)),
			feeds:    make([]feed, len(e.inputs)),
			channels: make([]int, len(e.inputs)),
			measure:  e.measure,
		}
		if b, ok := e.node.(Bypasser); ok {
			st.bypasser = b
		}
		for i, pid := range e.inputs {
			p := g.ports[pid]
			st.in[i] = p.buffer
			st.feeds[i] = feed{dst: p.buffer}
			if p.connection == noConnection {
				continue
			}
			src := g.ports[g.connections[p.connection].From]
			st.feeds[i].src = src.buffer
			st.channels[i] = min(effective[src.ID], p.Type.Channels())
		}
		for i, pid := range e.outputs {
			p := g.ports[pid]
			st.out[i] = p.buffer
			effective[pid] = p.Type.Channels()
		}
		switch c := e.node.(type) {
		case ChannelConfigurer:
			st.configurer = c
			for i, n := range c.ResolveChannels(st.channels) {
				if i < len(e.outputs) {
					effective[e.outputs[i]] = min(n, g.ports[e.outputs[i]].Type.Channels())
				}
			}
		case sentinel:
			if c.kind == KindInput {
				effective[e.outputs[0]] = g.inChannels
			}
		}
		for _, l := range e.listeners {
			st.listeners = append(st.listeners, l)
		}
		s.steps = append(s.steps, st)
	}
	g.schedule.Store(s)
}

// adopt switches processing goroutine to the new schedule.
func (g *Graph) adopt(s *schedule) {
	for i := range s.steps {
		if st := &s.steps[i]; st.configurer != nil {
			st.configurer.SetInputChannels(st.channels)
		}
	}
	g.current = s
	g.adopted.Store(s.generation)
}

// Process processes a single block. It must be called by one goroutine
// at a time. Input is copied into the input sentinel, nodes are processed
// in order and the output sentinel is copied into out. Topology changes
// are picked up at the start of the block if the control lock is free,
// otherwise the previous schedule is used.
//
// If a node fails, Process returns *ProcessError and out is left
// unspecified.
func (g *Graph) Process(in, out signal.Float64, frames int) error {
	if g.released.Load() {
		return ErrReleased
	}
	if g.dirty.Load() && g.mu.TryLock() {
		if g.dirty.Load() && g.prepared {
			// rebuild can't fail: connections never form a cycle.
			_ = g.rebuild()
		}
		g.mu.Unlock()
	}
	s := g.schedule.Load()
	if s == nil {
		return ErrNotPrepared
	}
	if len(in) != len(s.input) || len(out) != len(s.output) {
		return ErrChannelMismatch
	}
	if frames <= 0 || frames > s.blockSize || in.Size() < frames || out.Size() < frames {
		return ErrBlockSize
	}
	if s != g.current {
		g.adopt(s)
	}
	if ms, ok := g.destination.Receive(); ok {
		g.pending = g.pending.Append(ms)
	}

	signal.Transfer(s.input, in, frames)
	for i := range s.steps {
		st := &s.steps[i]
		g.pending = g.pending.ApplyTo(st.ctx)
		for _, f := range st.feeds {
			if f.src == nil {
				f.dst.Clear(frames)
				continue
			}
			signal.Transfer(f.dst, f.src, frames)
		}
		var err error
		switch {
		case !st.bypass.Load():
			err = st.node.Process(st.in, st.out, frames)
		case st.bypasser != nil:
			err = st.bypasser.Bypass(st.in, st.out, frames)
		default:
			err = passthrough(st.in, st.out, frames)
		}
		if err != nil {
			return &ProcessError{Node: st.id, Err: err}
		}
		if st.measure != nil {
			st.measure(int64(frames))
		}
		for _, l := range st.listeners {
			l(st.in, st.out, frames)
		}
	}
	signal.Transfer(out, s.output, frames)

	// mutations of removed nodes are dropped once the schedule is current.
	if len(g.pending) > 0 && !g.dirty.Load() && g.schedule.Load() == s {
		g.pending = g.pending.Discard()
	}
	return nil
}
