package graph

import (
	"sync/atomic"

	"pipelined.dev/graph/metric"
	"pipelined.dev/graph/mutable"
	"pipelined.dev/graph/signal"
)

// NodeID identifies a node within a graph.
type NodeID int

// Kind is a role of the node in the graph.
type Kind int

const (
	// KindInput is the input sentinel, it's seeded from caller's block.
	KindInput Kind = iota
	// KindOutput is the output sentinel, caller's block is copied from it.
	KindOutput
	// KindEffect wraps an effect.
	KindEffect
	// KindUtility routes signal: splitters, mixers, sources.
	KindUtility
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindEffect:
		return "effect"
	case KindUtility:
		return "utility"
	}
	return "unknown"
}

// PortSpec declares a port of the node.
type PortSpec struct {
	Name string
	Type PortType
	// Optional ports are not required to be connected by Validate.
	Optional bool
}

// Node is a unit of processing. Graph calls Prepare before the first
// Process call and Release when node is removed or graph is released.
//
// Process receives one buffer per declared port. Buffers of input ports
// are filled by the graph before the call, node must write every output
// buffer. Process is called by the processing goroutine only and must not
// block or allocate.
type Node interface {
	Kind() Kind
	Inputs() []PortSpec
	Outputs() []PortSpec
	Prepare(sampleRate float64, maxBlockSize int) error
	Process(in, out []signal.Float64, frames int) error
	// Reset clears internal state without reallocation.
	Reset()
	Release() error
	// Latency returns number of samples node delays its output.
	Latency() int
}

// ChannelConfigurer is implemented by nodes whose effective output
// channels depend on channels feeding their inputs.
type ChannelConfigurer interface {
	// ResolveChannels returns effective channel counts of the outputs for
	// given channel counts of the inputs. Unconnected inputs have 0
	// channels. It must not change the node.
	ResolveChannels(inputs []int) []int
	// SetInputChannels is called by the processing goroutine when it
	// adopts a schedule with new input channel counts.
	SetInputChannels(inputs []int)
}

// Bypasser is implemented by nodes with custom bypass behaviour. Nodes
// that don't implement it copy inputs to outputs by index when bypassed.
type Bypasser interface {
	Bypass(in, out []signal.Float64, frames int) error
}

// Listener observes node buffers after the node is processed. It's called
// by the processing goroutine and must not block or modify buffers.
type Listener func(in, out []signal.Float64, frames int)

// state of the node lifecycle.
type state int

const (
	created state = iota
	prepared
	released
)

// entry is the graph-owned record of the node.
type entry struct {
	id        NodeID
	node      Node
	inputs    []PortID
	outputs   []PortID
	protected bool
	bypass    atomic.Bool
	ctx       mutable.Context
	state     state
	listeners map[int]Listener
	measure   metric.MeasureFunc
}

func (e *entry) prepare(sampleRate float64, blockSize int, withMetric bool) error {
	if e.state == released {
		return ErrReleased
	}
	if err := e.node.Prepare(sampleRate, blockSize); err != nil {
		return err
	}
	if withMetric {
		e.measure = metric.Meter(e.node, sampleRate)()
	}
	e.state = prepared
	return nil
}

func (e *entry) release() error {
	if e.state == released {
		return ErrReleased
	}
	e.state = released
	return e.node.Release()
}

// passthrough copies inputs to outputs by index and clears outputs that
// have no matching input.
func passthrough(in, out []signal.Float64, frames int) error {
	for i := range out {
		if i < len(in) {
			signal.Transfer(out[i], in[i], frames)
			continue
		}
		out[i].Clear(frames)
	}
	return nil
}

// sentinel is the graph-owned input or output node.
type sentinel struct {
	kind Kind
	port PortSpec
}

func (s sentinel) Kind() Kind {
	return s.kind
}

func (s sentinel) Inputs() []PortSpec {
	if s.kind == KindOutput {
		return []PortSpec{s.port}
	}
	return nil
}

func (s sentinel) Outputs() []PortSpec {
	if s.kind == KindInput {
		return []PortSpec{s.port}
	}
	return nil
}

func (sentinel) Prepare(float64, int) error {
	return nil
}

// Process does nothing: sentinel buffers are written by the graph.
func (sentinel) Process([]signal.Float64, []signal.Float64, int) error {
	return nil
}

func (sentinel) Reset() {}

func (sentinel) Release() error {
	return nil
}

func (sentinel) Latency() int {
	return 0
}
