// Package mock provides mock nodes and effects and allows to execute
// integration tests.
package mock

import (
	"pipelined.dev/graph"
	"pipelined.dev/graph/param"
	"pipelined.dev/graph/signal"
)

// Hooks records lifecycle calls and allows to mock their errors.
type Hooks struct {
	Prepared int
	Resetted int
	Released int

	ErrorOnPrepare error
	ErrorOnRelease error
}

func (h *Hooks) prepare() error {
	h.Prepared++
	return h.ErrorOnPrepare
}

func (h *Hooks) reset() {
	h.Resetted++
}

func (h *Hooks) release() error {
	h.Released++
	return h.ErrorOnRelease
}

// counter counts blocks and samples.
type counter struct {
	blocks  int
	samples int
}

// advance counter's metrics.
func (c *counter) advance(size int) {
	c.blocks++
	c.samples = c.samples + size
}

// Count returns blocks and samples metrics.
func (c *counter) Count() (int, int) {
	return c.blocks, c.samples
}

func portType(channels int) graph.PortType {
	if channels == 1 {
		return graph.Mono
	}
	return graph.Stereo
}

// Source mocks a node without inputs. It writes Value into every output
// sample until Limit samples are written, silence after that. Zero
// limit means no limit.
type Source struct {
	counter
	Hooks
	Channels    int
	Value       float64
	Limit       int
	ErrorOnCall error
}

// ValueParam returns a mutator that changes the value.
func (m *Source) ValueParam(v float64) func() {
	return func() {
		m.Value = v
	}
}

// Kind implements graph.Node.
func (m *Source) Kind() graph.Kind {
	return graph.KindUtility
}

// Inputs implements graph.Node.
func (m *Source) Inputs() []graph.PortSpec {
	return nil
}

// Outputs implements graph.Node.
func (m *Source) Outputs() []graph.PortSpec {
	return []graph.PortSpec{{Name: "out", Type: portType(m.Channels)}}
}

// Prepare implements graph.Node.
func (m *Source) Prepare(float64, int) error {
	return m.prepare()
}

// Process implements graph.Node.
func (m *Source) Process(_, out []signal.Float64, frames int) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	n := frames
	if m.Limit > 0 {
		n = max(0, min(frames, m.Limit-m.samples))
	}
	for _, c := range out[0] {
		for i := 0; i < frames; i++ {
			if i < n {
				c[i] = m.Value
			} else {
				c[i] = 0
			}
		}
	}
	m.advance(n)
	return nil
}

// Reset implements graph.Node.
func (m *Source) Reset() {
	m.reset()
	m.blocks, m.samples = 0, 0
}

// Release implements graph.Node.
func (m *Source) Release() error {
	return m.release()
}

// Latency implements graph.Node.
func (m *Source) Latency() int {
	return 0
}

// Processor mocks a node that copies every input to the output with the
// same index.
type Processor struct {
	counter
	Hooks
	In          []graph.PortSpec
	Out         []graph.PortSpec
	Delay       int
	Node        graph.Kind
	ErrorOnCall error
	PanicOnCall interface{}
}

// NewProcessor returns processor with one stereo input and output.
func NewProcessor() *Processor {
	return &Processor{
		In:   []graph.PortSpec{{Name: "in", Type: graph.Stereo}},
		Out:  []graph.PortSpec{{Name: "out", Type: graph.Stereo}},
		Node: graph.KindEffect,
	}
}

// Kind implements graph.Node.
func (m *Processor) Kind() graph.Kind {
	return m.Node
}

// Inputs implements graph.Node.
func (m *Processor) Inputs() []graph.PortSpec {
	return m.In
}

// Outputs implements graph.Node.
func (m *Processor) Outputs() []graph.PortSpec {
	return m.Out
}

// Prepare implements graph.Node.
func (m *Processor) Prepare(float64, int) error {
	return m.prepare()
}

// Process implements graph.Node.
func (m *Processor) Process(in, out []signal.Float64, frames int) error {
	if m.PanicOnCall != nil {
		panic(m.PanicOnCall)
	}
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	for i := range out {
		if i < len(in) {
			signal.Transfer(out[i], in[i], frames)
		} else {
			out[i].Clear(frames)
		}
	}
	m.advance(frames)
	return nil
}

// Reset implements graph.Node.
func (m *Processor) Reset() {
	m.reset()
}

// Release implements graph.Node.
func (m *Processor) Release() error {
	return m.release()
}

// Latency implements graph.Node.
func (m *Processor) Latency() int {
	return m.Delay
}

// Sink mocks a node without outputs. It collects all received samples.
// Buffer is not thread-safe, so should not be checked while graph is
// processing.
type Sink struct {
	counter
	Hooks
	Channels    int
	Discard     bool
	ErrorOnCall error
	buffer      signal.Float64
}

// Kind implements graph.Node.
func (m *Sink) Kind() graph.Kind {
	return graph.KindUtility
}

// Inputs implements graph.Node.
func (m *Sink) Inputs() []graph.PortSpec {
	return []graph.PortSpec{{Name: "in", Type: portType(m.Channels)}}
}

// Outputs implements graph.Node.
func (m *Sink) Outputs() []graph.PortSpec {
	return nil
}

// Prepare implements graph.Node.
func (m *Sink) Prepare(float64, int) error {
	return m.prepare()
}

// Process implements graph.Node.
func (m *Sink) Process(in, _ []signal.Float64, frames int) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	if !m.Discard {
		m.buffer = m.buffer.Append(in[0].Slice(0, frames))
	}
	m.advance(frames)
	return nil
}

// Buffer returns sink's buffer.
func (m *Sink) Buffer() signal.Float64 {
	return m.buffer
}

// Reset implements graph.Node.
func (m *Sink) Reset() {
	m.reset()
	m.buffer = nil
}

// Release implements graph.Node.
func (m *Sink) Release() error {
	return m.release()
}

// Latency implements graph.Node.
func (m *Sink) Latency() int {
	return 0
}

// Effect mocks effect.Effect. It multiplies input by Gain and counts mono
// and stereo calls.
type Effect struct {
	Hooks
	Gain        float64
	Delay       int
	SinkEffect  bool
	ErrorOnCall error
	Parameters  param.Set

	MonoCalls   int
	StereoCalls int
	// Received collects left channel of every processed block.
	Received []float64
}

// Prepare implements effect.Effect.
func (m *Effect) Prepare(float64, int) error {
	return m.prepare()
}

// Process implements effect.Effect.
func (m *Effect) Process(in, out []float64, frames int) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	m.MonoCalls++
	m.Received = append(m.Received, in[:frames]...)
	for i := 0; i < frames; i++ {
		out[i] = in[i] * m.Gain
	}
	return nil
}

// ProcessStereo implements effect.Effect.
func (m *Effect) ProcessStereo(inL, inR, outL, outR []float64, frames int) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	m.StereoCalls++
	m.Received = append(m.Received, inL[:frames]...)
	for i := 0; i < frames; i++ {
		outL[i] = inL[i] * m.Gain
		outR[i] = inR[i] * m.Gain
	}
	return nil
}

// Reset implements effect.Effect.
func (m *Effect) Reset() {
	m.reset()
}

// Release implements effect.Effect.
func (m *Effect) Release() error {
	return m.release()
}

// Params implements effect.Effect.
func (m *Effect) Params() param.Set {
	return m.Parameters
}

// Latency implements effect.Effect.
func (m *Effect) Latency() int {
	return m.Delay
}

// IsSink implements effect.Sink.
func (m *Effect) IsSink() bool {
	return m.SinkEffect
}
