// Package effect adapts DSP effects to graph nodes.
//
// An Effect only knows how to process mono or stereo sample slices. Node
// wraps it into a graph node with one stereo input and one stereo output,
// resolves the stereo mode once per block, smooths effect parameters and
// implements bypass.
package effect

import (
	"fmt"
	"strings"
	"sync/atomic"

	"pipelined.dev/graph"
	"pipelined.dev/graph/param"
	"pipelined.dev/graph/signal"
)

// Effect is a pluggable DSP implementation. All methods except Params
// are called by the graph: Prepare and Release from the control
// goroutine, the rest from the processing goroutine.
type Effect interface {
	Prepare(sampleRate float64, maxFrames int) error
	// Process processes mono signal.
	Process(in, out []float64, frames int) error
	// ProcessStereo processes left and right channels.
	ProcessStereo(inL, inR, outL, outR []float64, frames int) error
	Reset()
	Release() error
	// Params returns parameters of the effect. Node smooths them once
	// per block before processing.
	Params() param.Set
	Latency() int
}

// Sink is implemented by effects with external side effects, for example
// writing to a file or device. Sinks are processed even when bypassed.
type Sink interface {
	IsSink() bool
}

// StereoMode defines how node treats one and two channel input.
type StereoMode int

const (
	// Auto resolves to Stereo if upstream has two channels and to Mono
	// otherwise.
	Auto StereoMode = iota
	// Mono processes left channel and duplicates it to the right.
	Mono
	// Stereo processes both channels. Mono input is duplicated and
	// processed as stereo.
	Stereo
)

func (m StereoMode) String() string {
	switch m {
	case Auto:
		return "auto"
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	}
	return "unknown"
}

// ParseStereoMode returns stereo mode by its name.
func ParseStereoMode(s string) (StereoMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return Auto, nil
	case "mono":
		return Mono, nil
	case "stereo":
		return Stereo, nil
	}
	return Auto, fmt.Errorf("unknown stereo mode %q", s)
}

// resolve returns effective number of channels for input channels.
func (m StereoMode) resolve(inputChannels int) int {
	switch m {
	case Mono:
		return 1
	case Stereo:
		return 2
	}
	if inputChannels >= 2 {
		return 2
	}
	return 1
}

type state int

const (
	created state = iota
	prepared
	released
)

// Node wraps an effect into graph node.
type Node struct {
	name   string
	effect Effect
	params param.Set
	mode   StereoMode
	sink   bool
	state  state

	// set by the processing goroutine.
	inputChannels  int
	outputChannels atomic.Int32
}

// Option configures effect node.
type Option func(*Node)

// WithStereoMode sets stereo mode, default is Auto.
func WithStereoMode(m StereoMode) Option {
	return func(n *Node) {
		n.mode = m
	}
}

// WithName sets node name.
func WithName(name string) Option {
	return func(n *Node) {
		n.name = name
	}
}

// New wraps the effect.
func New(e Effect, options ...Option) *Node {
	n := &Node{
		name:   fmt.Sprintf("%T", e),
		effect: e,
		params: e.Params(),
	}
	if s, ok := e.(Sink); ok {
		n.sink = s.IsSink()
	}
	for _, option := range options {
		option(n)
	}
	n.outputChannels.Store(int32(n.mode.resolve(0)))
	return n
}

var (
	inputs  = []graph.PortSpec{{Name: "in", Type: graph.Stereo}}
	outputs = []graph.PortSpec{{Name: "out", Type: graph.Stereo}}
)

// Kind implements graph.Node.
func (n *Node) Kind() graph.Kind {
	return graph.KindEffect
}

// Inputs implements graph.Node.
func (n *Node) Inputs() []graph.PortSpec {
	return inputs
}

// Outputs implements graph.Node.
func (n *Node) Outputs() []graph.PortSpec {
	return outputs
}

// Name returns node name.
func (n *Node) Name() string {
	return n.name
}

// Effect returns wrapped effect.
func (n *Node) Effect() Effect {
	return n.effect
}

// Params returns parameters of wrapped effect.
func (n *Node) Params() param.Set {
	return n.params
}

// Mode returns configured stereo mode.
func (n *Node) Mode() StereoMode {
	return n.mode
}

// IsSink returns true if wrapped effect is a sink.
func (n *Node) IsSink() bool {
	return n.sink
}

// OutputChannels returns effective number of output channels resolved
// for the last processed block.
func (n *Node) OutputChannels() int {
	return int(n.outputChannels.Load())
}

// Latency implements graph.Node.
func (n *Node) Latency() int {
	return n.effect.Latency()
}

// ResolveChannels implements graph.ChannelConfigurer.
func (n *Node) ResolveChannels(inputs []int) []int {
	return []int{n.mode.resolve(inputs[0])}
}

// SetInputChannels implements graph.ChannelConfigurer.
func (n *Node) SetInputChannels(inputs []int) {
	n.inputChannels = inputs[0]
}

// Prepare prepares parameters and the effect.
func (n *Node) Prepare(sampleRate float64, maxBlockSize int) error {
	if n.state == released {
		return graph.ErrReleased
	}
	n.params.Prepare(sampleRate)
	if err := n.effect.Prepare(sampleRate, maxBlockSize); err != nil {
		return fmt.Errorf("prepare %s: %w", n.name, err)
	}
	n.state = prepared
	return nil
}

// Process smooths parameters and dispatches the block to mono or stereo
// processing.
func (n *Node) Process(in, out []signal.Float64, frames int) error {
	switch n.state {
	case created:
		return graph.ErrNotPrepared
	case released:
		return graph.ErrReleased
	}
	n.params.Smooth(frames)
	inL, inR := in[0][0][:frames], in[0][1][:frames]
	outL, outR := out[0][0][:frames], out[0][1][:frames]
	channels := n.mode.resolve(n.inputChannels)
	n.outputChannels.Store(int32(channels))
	if channels == 1 {
		if err := n.effect.Process(inL, outL, frames); err != nil {
			return err
		}
		copy(outR, outL)
		return nil
	}
	return n.effect.ProcessStereo(inL, inR, outL, outR, frames)
}

// Bypass copies input to output. Sink effects are processed first, so
// their side effects are kept.
func (n *Node) Bypass(in, out []signal.Float64, frames int) error {
	if n.sink {
		if err := n.Process(in, out, frames); err != nil {
			return err
		}
	} else {
		n.params.Smooth(frames)
		n.outputChannels.Store(int32(n.mode.resolve(n.inputChannels)))
	}
	inL, inR := in[0][0][:frames], in[0][1][:frames]
	outL, outR := out[0][0][:frames], out[0][1][:frames]
	copy(outL, inL)
	if n.mode.resolve(n.inputChannels) == 1 {
		copy(outR, inL)
		return nil
	}
	copy(outR, inR)
	return nil
}

// Reset clears effect state.
func (n *Node) Reset() {
	n.effect.Reset()
}

// Release releases the effect. Released node can't be used.
func (n *Node) Release() error {
	if n.state == released {
		return graph.ErrReleased
	}
	n.state = released
	return n.effect.Release()
}
