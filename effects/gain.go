// Package effects contains reference effects that can be wrapped into
// graph nodes with effect.New.
package effects

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"pipelined.dev/graph/effect"
	"pipelined.dev/graph/param"
)

// Effect types registered by Register.
const (
	GainType    = "gain"
	DelayType   = "delay"
	TremoloType = "tremolo"
)

// Register adds all effects of this package to the registry.
func Register(r *effect.Registry) error {
	factories := map[string]effect.Factory{
		GainType: func() (effect.Effect, error) {
			return NewGain(0), nil
		},
		DelayType: func() (effect.Effect, error) {
			return NewDelay(), nil
		},
		TremoloType: func() (effect.Effect, error) {
			return NewTremolo(), nil
		},
	}
	for _, t := range []string{GainType, DelayType, TremoloType} {
		if err := r.Register(t, factories[t]); err != nil {
			return err
		}
	}
	return nil
}

// DecibelsToLinear converts decibels to linear amplitude factor.
func DecibelsToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// Gain changes the level of the signal. The "gain" parameter is in
// decibels and is ramped per sample within a block.
type Gain struct {
	gain *param.Parameter
	ramp []float64
}

// NewGain returns gain with provided default level in decibels.
func NewGain(db float64) *Gain {
	return &Gain{
		gain: param.New("gain", -60, 12, db, param.WithUnit("dB"), param.WithName("Gain")),
	}
}

// Prepare allocates ramp buffer.
func (g *Gain) Prepare(sampleRate float64, maxFrames int) error {
	if maxFrames <= 0 {
		return fmt.Errorf("gain max frames must be > 0: %d", maxFrames)
	}
	g.ramp = make([]float64, maxFrames)
	return nil
}

// envelope returns linear gain for the block. If gain changes within the
// block, constant is false and per-sample factors are written to ramp.
func (g *Gain) envelope(frames int) (factor float64, constant bool) {
	ramp := g.ramp[:frames]
	g.gain.Ramp(ramp)
	if ramp[0] == ramp[frames-1] {
		return DecibelsToLinear(ramp[0]), true
	}
	for i := range ramp {
		ramp[i] = DecibelsToLinear(ramp[i])
	}
	return 0, false
}

func (g *Gain) apply(in, out []float64, factor float64, constant bool, frames int) {
	if constant {
		vecmath.ScaleBlock(out[:frames], in[:frames], factor)
		return
	}
	vecmath.MulBlock(out[:frames], in[:frames], g.ramp[:frames])
}

// Process implements effect.Effect.
func (g *Gain) Process(in, out []float64, frames int) error {
	factor, constant := g.envelope(frames)
	g.apply(in, out, factor, constant, frames)
	return nil
}

// ProcessStereo implements effect.Effect.
func (g *Gain) ProcessStereo(inL, inR, outL, outR []float64, frames int) error {
	factor, constant := g.envelope(frames)
	g.apply(inL, outL, factor, constant, frames)
	g.apply(inR, outR, factor, constant, frames)
	return nil
}

// Reset does nothing, gain has no state.
func (g *Gain) Reset() {}

// Release implements effect.Effect.
func (g *Gain) Release() error {
	g.ramp = nil
	return nil
}

// Params implements effect.Effect.
func (g *Gain) Params() param.Set {
	return param.Set{g.gain}
}

// Latency implements effect.Effect.
func (g *Gain) Latency() int {
	return 0
}
