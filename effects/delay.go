package effects

import (
	"fmt"
	"math"

	"pipelined.dev/graph/param"
)

const maxDelayTimeMs = 2000

// line is a circular delay line.
type line struct {
	buffer   []float64
	writePos int
}

func newLine(size int) *line {
	return &line{buffer: make([]float64, size)}
}

func (d *line) write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// read reads an integer delay in samples, delay must be in [1, len].
func (d *line) read(delay int) float64 {
	size := len(d.buffer)
	return d.buffer[(d.writePos-delay+size)%size]
}

func (d *line) reset() {
	clear(d.buffer)
	d.writePos = 0
}

// Delay is a feedback echo with dry/wet mix. Delay time is updated once
// per block.
type Delay struct {
	time     *param.Parameter
	feedback *param.Parameter
	mix      *param.Parameter

	sampleRate float64
	lines      [2]*line
}

// NewDelay returns delay with 250 ms time.
func NewDelay() *Delay {
	return &Delay{
		time:     param.New("time", 1, maxDelayTimeMs, 250, param.WithUnit("ms"), param.WithName("Time")),
		feedback: param.New("feedback", 0, 0.95, 0.35, param.WithName("Feedback")),
		mix:      param.New("mix", 0, 1, 0.25, param.WithName("Mix")),
	}
}

// Prepare allocates delay lines for the longest delay time.
func (d *Delay) Prepare(sampleRate float64, _ int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("delay sample rate must be > 0: %f", sampleRate)
	}
	d.sampleRate = sampleRate
	size := int(math.Ceil(maxDelayTimeMs*sampleRate/1000)) + 1
	for i := range d.lines {
		d.lines[i] = newLine(size)
	}
	return nil
}

func (d *Delay) delaySamples() int {
	n := int(math.Round(d.time.Current() * d.sampleRate / 1000))
	return max(1, min(n, len(d.lines[0].buffer)))
}

func (d *Delay) process(l *line, in, out []float64, delay int, frames int) {
	fb, mix := d.feedback.Current(), d.mix.Current()
	for i := 0; i < frames; i++ {
		x := in[i]
		delayed := l.read(delay)
		l.write(x + delayed*fb)
		out[i] = x*(1-mix) + delayed*mix
	}
}

// Process implements effect.Effect.
func (d *Delay) Process(in, out []float64, frames int) error {
	d.process(d.lines[0], in, out, d.delaySamples(), frames)
	return nil
}

// ProcessStereo implements effect.Effect.
func (d *Delay) ProcessStereo(inL, inR, outL, outR []float64, frames int) error {
	delay := d.delaySamples()
	d.process(d.lines[0], inL, outL, delay, frames)
	d.process(d.lines[1], inR, outR, delay, frames)
	return nil
}

// Reset clears delay lines.
func (d *Delay) Reset() {
	for _, l := range d.lines {
		if l != nil {
			l.reset()
		}
	}
}

// Release frees delay lines.
func (d *Delay) Release() error {
	d.lines = [2]*line{}
	return nil
}

// Params implements effect.Effect.
func (d *Delay) Params() param.Set {
	return param.Set{d.time, d.feedback, d.mix}
}

// Latency is zero: dry signal is not delayed.
func (d *Delay) Latency() int {
	return 0
}
