// Package mixer provides a node that sums many inputs into one output.
package mixer

import (
	"fmt"

	"pipelined.dev/graph"
	"pipelined.dev/graph/param"
	"pipelined.dev/graph/signal"
)

// Mixer sums up inputs into a single output. Every input has a smoothed
// level parameter. Unconnected inputs are silent.
type Mixer struct {
	portType graph.PortType
	levels   param.Set
	scratch  []float64
}

// Option configures the mixer.
type Option func(*Mixer)

// WithLevels sets default levels of the first inputs.
func WithLevels(levels ...float64) Option {
	return func(m *Mixer) {
		for i, l := range levels {
			if i < len(m.levels) {
				m.levels[i] = newLevel(i, l)
			}
		}
	}
}

func newLevel(i int, def float64) *param.Parameter {
	return param.New(fmt.Sprintf("level%d", i+1), 0, 2, def, param.WithName(fmt.Sprintf("Level %d", i+1)))
}

// New returns mixer with n inputs of port type t.
func New(n int, t graph.PortType, options ...Option) *Mixer {
	m := &Mixer{
		portType: t,
		levels:   make(param.Set, n),
	}
	for i := range m.levels {
		m.levels[i] = newLevel(i, 1)
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Level returns level parameter of input i.
func (m *Mixer) Level(i int) *param.Parameter {
	return m.levels[i]
}

// Params returns level parameters.
func (m *Mixer) Params() param.Set {
	return m.levels
}

// Kind implements graph.Node.
func (m *Mixer) Kind() graph.Kind {
	return graph.KindUtility
}

// Inputs implements graph.Node.
func (m *Mixer) Inputs() []graph.PortSpec {
	specs := make([]graph.PortSpec, len(m.levels))
	for i := range specs {
		specs[i] = graph.PortSpec{
			Name:     fmt.Sprintf("in%d", i+1),
			Type:     m.portType,
			Optional: true,
		}
	}
	return specs
}

// Outputs implements graph.Node.
func (m *Mixer) Outputs() []graph.PortSpec {
	return []graph.PortSpec{{Name: "out", Type: m.portType}}
}

// ResolveChannels returns the widest input.
func (m *Mixer) ResolveChannels(inputs []int) []int {
	channels := 1
	for _, n := range inputs {
		channels = max(channels, n)
	}
	return []int{channels}
}

// SetInputChannels implements graph.ChannelConfigurer.
func (m *Mixer) SetInputChannels([]int) {}

// Prepare allocates scratch buffer.
func (m *Mixer) Prepare(sampleRate float64, maxBlockSize int) error {
	if len(m.levels) < 1 {
		return fmt.Errorf("mixer needs at least one input: %d", len(m.levels))
	}
	m.levels.Prepare(sampleRate)
	m.scratch = make([]float64, maxBlockSize)
	return nil
}

// Process sums weighted inputs.
func (m *Mixer) Process(in, out []signal.Float64, frames int) error {
	m.levels.Smooth(frames)
	sum := out[0]
	sum.Clear(frames)
	for i, buf := range in {
		level := m.levels[i].Current()
		if level == 0 {
			continue
		}
		for c := range sum {
			signal.MixInto(sum[c], buf[c], level, m.scratch, frames)
		}
	}
	return nil
}

// Reset implements graph.Node.
func (m *Mixer) Reset() {}

// Release implements graph.Node.
func (m *Mixer) Release() error {
	m.scratch = nil
	return nil
}

// Latency implements graph.Node.
func (m *Mixer) Latency() int {
	return 0
}
