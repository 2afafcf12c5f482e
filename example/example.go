// Package example shows how graphs are built and processed.
package example

import (
	"context"
	"io"
	"math"

	"pipelined.dev/graph"
	"pipelined.dev/graph/effect"
	"pipelined.dev/graph/effects"
	"pipelined.dev/graph/engine"
	"pipelined.dev/graph/mixer"
	"pipelined.dev/graph/signal"
	"pipelined.dev/graph/split"
	"pipelined.dev/graph/wav"
)

const (
	sampleRate = 44100
	blockSize  = 512
)

// tone is a sine source of fixed length.
type tone struct {
	frequency float64
	frames    int
	phase     int
}

func (t *tone) Read(block signal.Float64) (int, error) {
	if t.phase >= t.frames {
		return 0, io.EOF
	}
	n := block.Size()
	if rest := t.frames - t.phase; rest < n {
		n = rest
	}
	for i := 0; i < n; i++ {
		v := 0.5 * math.Sin(2*math.Pi*t.frequency*float64(t.phase+i)/sampleRate)
		for c := range block {
			block[c][i] = v
		}
	}
	t.phase += n
	return n, nil
}

func connect(g *graph.Graph, from graph.NodeID, out int, to graph.NodeID, in int) {
	outs, err := g.Outputs(from)
	check(err)
	ins, err := g.Inputs(to)
	check(err)
	_, err = g.Connect(outs[out], ins[in])
	check(err)
}

// Example 1:
//   - generate one second of tone
//   - split it into dry and delayed paths
//   - mix paths and render into .wav file
func one(path string) {
	g, err := graph.New(graph.WithName("dry/wet"))
	check(err)
	splitter, err := g.AddNode(split.New(2, graph.Stereo))
	check(err)
	delay, err := g.AddNode(effect.New(effects.NewDelay(), effect.WithStereoMode(effect.Stereo)))
	check(err)
	mix, err := g.AddNode(mixer.New(2, graph.Stereo, mixer.WithLevels(1, 0.5)))
	check(err)

	connect(g, g.Input(), 0, splitter, 0)
	connect(g, splitter, 0, mix, 0)
	connect(g, splitter, 1, delay, 0)
	connect(g, delay, 0, mix, 1)
	connect(g, mix, 0, g.Output(), 0)
	check(g.Validate())

	sink, err := wav.Create(path, sampleRate, 2, signal.BitDepth16)
	check(err)
	e := engine.New(g)
	check(e.Start(context.Background(), sampleRate, blockSize))
	check(e.Render(context.Background(), &tone{frequency: 440, frames: sampleRate}, sink))
	check(e.Stop())
	check(sink.Close())
}

// Example 2:
//   - process blocks of tone through tremolo and gain
//   - fade gain out with mutations while processing
//   - bypass tremolo on the last block
func two() {
	g, err := graph.New()
	check(err)
	gain := effects.NewGain(0)
	tremolo, err := g.AddNode(effect.New(effects.NewTremolo()))
	check(err)
	fader, err := g.AddNode(effect.New(gain))
	check(err)
	connect(g, g.Input(), 0, tremolo, 0)
	connect(g, tremolo, 0, fader, 0)
	connect(g, fader, 0, g.Output(), 0)
	check(g.Prepare(sampleRate, blockSize))

	level, _ := gain.Params().Get("gain")
	source := &tone{frequency: 220, frames: 10 * blockSize}
	in := signal.EmptyFloat64(2, blockSize)
	out := signal.EmptyFloat64(2, blockSize)
	for i := 0; ; i++ {
		n, err := source.Read(in)
		if err == io.EOF {
			break
		}
		db := -6 * float64(i)
		m, err := g.Mutate(fader, func() { level.SetValue(db) })
		check(err)
		check(g.Push(context.Background(), m))
		if i == 9 {
			check(g.SetBypass(tremolo, true))
		}
		check(g.Process(in, out, n))
	}
	check(g.Release())
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
