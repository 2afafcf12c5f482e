package effects

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"pipelined.dev/graph/param"
)

// Tremolo applies LFO amplitude modulation. In stereo the right channel
// LFO is shifted by the "phase" parameter, so mono input processed as
// stereo gets width.
type Tremolo struct {
	rate  *param.Parameter
	depth *param.Parameter
	phase *param.Parameter

	sampleRate float64
	lfoPhase   float64
	envL, envR []float64
}

// NewTremolo returns tremolo with 4 Hz rate and 90 degrees stereo phase.
func NewTremolo() *Tremolo {
	return &Tremolo{
		rate:  param.New("rate", 0.1, 20, 4, param.WithUnit("Hz"), param.WithName("Rate")),
		depth: param.New("depth", 0, 1, 0.6, param.WithName("Depth")),
		phase: param.New("phase", 0, 180, 90, param.WithUnit("deg"), param.WithName("Stereo phase")),
	}
}

// Prepare allocates envelope buffers.
func (t *Tremolo) Prepare(sampleRate float64, maxFrames int) error {
	t.sampleRate = sampleRate
	t.envL = make([]float64, maxFrames)
	t.envR = make([]float64, maxFrames)
	return nil
}

// envelope writes modulation of frames samples starting at LFO phase
// shifted by offset radians.
func (t *Tremolo) envelope(env []float64, offset float64) {
	depth := t.depth.Current()
	step := 2 * math.Pi * t.rate.Current() / t.sampleRate
	for i := range env {
		lfo := 0.5 * (1 + math.Sin(t.lfoPhase+offset+step*float64(i)))
		env[i] = (1 - depth) + depth*lfo
	}
}

func (t *Tremolo) advance(frames int) {
	t.lfoPhase += 2 * math.Pi * t.rate.Current() / t.sampleRate * float64(frames)
	t.lfoPhase = math.Mod(t.lfoPhase, 2*math.Pi)
}

// Process implements effect.Effect.
func (t *Tremolo) Process(in, out []float64, frames int) error {
	env := t.envL[:frames]
	t.envelope(env, 0)
	vecmath.MulBlock(out[:frames], in[:frames], env)
	t.advance(frames)
	return nil
}

// ProcessStereo implements effect.Effect.
func (t *Tremolo) ProcessStereo(inL, inR, outL, outR []float64, frames int) error {
	envL, envR := t.envL[:frames], t.envR[:frames]
	t.envelope(envL, 0)
	t.envelope(envR, t.phase.Current()*math.Pi/180)
	vecmath.MulBlock(outL[:frames], inL[:frames], envL)
	vecmath.MulBlock(outR[:frames], inR[:frames], envR)
	t.advance(frames)
	return nil
}

// Reset restarts LFO.
func (t *Tremolo) Reset() {
	t.lfoPhase = 0
}

// Release implements effect.Effect.
func (t *Tremolo) Release() error {
	t.envL, t.envR = nil, nil
	return nil
}

// Params implements effect.Effect.
func (t *Tremolo) Params() param.Set {
	return param.Set{t.rate, t.depth, t.phase}
}

// Latency implements effect.Effect.
func (t *Tremolo) Latency() int {
	return 0
}
