// Package split provides a node that copies one input to many outputs.
package split

import (
	"fmt"

	"pipelined.dev/graph"
	"pipelined.dev/graph/signal"
)

// Splitter copies its input into every output. Unused outputs are
// optional.
type Splitter struct {
	portType graph.PortType
	outputs  int
}

// New returns splitter with n outputs of port type t.
func New(n int, t graph.PortType) *Splitter {
	return &Splitter{
		portType: t,
		outputs:  n,
	}
}

// Kind implements graph.Node.
func (s *Splitter) Kind() graph.Kind {
	return graph.KindUtility
}

// Inputs implements graph.Node.
func (s *Splitter) Inputs() []graph.PortSpec {
	return []graph.PortSpec{{Name: "in", Type: s.portType}}
}

// Outputs implements graph.Node.
func (s *Splitter) Outputs() []graph.PortSpec {
	specs := make([]graph.PortSpec, s.outputs)
	for i := range specs {
		specs[i] = graph.PortSpec{
			Name:     fmt.Sprintf("out%d", i+1),
			Type:     s.portType,
			Optional: true,
		}
	}
	return specs
}

// ResolveChannels passes input channels to every output.
func (s *Splitter) ResolveChannels(inputs []int) []int {
	channels := make([]int, s.outputs)
	for i := range channels {
		channels[i] = inputs[0]
	}
	return channels
}

// SetInputChannels implements graph.ChannelConfigurer.
func (s *Splitter) SetInputChannels([]int) {}

// Prepare implements graph.Node.
func (s *Splitter) Prepare(float64, int) error {
	if s.outputs < 1 {
		return fmt.Errorf("splitter needs at least one output: %d", s.outputs)
	}
	return nil
}

// Process implements graph.Node.
func (s *Splitter) Process(in, out []signal.Float64, frames int) error {
	for _, o := range out {
		signal.Transfer(o, in[0], frames)
	}
	return nil
}

// Reset implements graph.Node.
func (s *Splitter) Reset() {}

// Release implements graph.Node.
func (s *Splitter) Release() error {
	return nil
}

// Latency implements graph.Node.
func (s *Splitter) Latency() int {
	return 0
}
