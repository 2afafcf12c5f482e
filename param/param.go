// Package param provides automatable parameters for graph nodes.
//
// A Parameter holds two values. The target is written by control code with
// SetValue and is stored atomically, so it can be changed at any time from
// any goroutine. The current value belongs to the audio goroutine: it is
// advanced towards the target once per block with Smooth, which removes
// audible steps when continuous values like gain or frequency change.
package param

import (
	"fmt"
	"math"
	"sync/atomic"
)

// SmoothingTime is the time constant of the one-pole smoother in seconds.
const SmoothingTime = 0.02

// settle is the distance at which current value snaps to the target.
const settle = 1e-9

// Kind defines how parameter value is interpreted.
type Kind int

const (
	// Continuous values are smoothed.
	Continuous Kind = iota
	// Boolean values are either min or max and are not smoothed.
	Boolean
	// Choice values are whole steps in [min, max] and are not smoothed.
	Choice
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Boolean:
		return "boolean"
	case Choice:
		return "choice"
	}
	return "unknown"
}

// Parameter is a named, ranged control value.
type Parameter struct {
	ID      string
	Name    string
	Unit    string
	Kind    Kind
	Min     float64
	Max     float64
	Default float64
	// Choices are labels of choice values, index is value - Min.
	Choices []string

	target atomic.Uint64

	// fields below are owned by the audio goroutine.
	current    float64
	previous   float64
	coeff      float64
	sampleRate float64
}

// Option configures a new parameter.
type Option func(*Parameter)

// WithUnit sets the display unit.
func WithUnit(unit string) Option {
	return func(p *Parameter) {
		p.Unit = unit
	}
}

// WithName sets the display name. ID is used if name isn't provided.
func WithName(name string) Option {
	return func(p *Parameter) {
		p.Name = name
	}
}

// New creates a continuous parameter. Default is clamped into range.
func New(id string, min, max, def float64, options ...Option) *Parameter {
	return newParameter(id, Continuous, min, max, def, options...)
}

// NewBool creates a boolean parameter with values 0 and 1.
func NewBool(id string, def bool, options ...Option) *Parameter {
	var v float64
	if def {
		v = 1
	}
	return newParameter(id, Boolean, 0, 1, v, options...)
}

// NewChoice creates a parameter with one of provided choices.
func NewChoice(id string, choices []string, def int, options ...Option) *Parameter {
	p := newParameter(id, Choice, 0, float64(len(choices)-1), float64(def), options...)
	p.Choices = choices
	return p
}

func newParameter(id string, kind Kind, min, max, def float64, options ...Option) *Parameter {
	if max < min {
		min, max = max, min
	}
	p := &Parameter{
		ID:   id,
		Name: id,
		Kind: kind,
		Min:  min,
		Max:  max,
	}
	for _, option := range options {
		option(p)
	}
	p.Default = p.constrain(def)
	p.target.Store(math.Float64bits(p.Default))
	p.current = p.Default
	p.previous = p.Default
	// unprepared parameter follows the target immediately.
	p.coeff = 1
	return p
}

// constrain clamps value into range and snaps discrete values.
func (p *Parameter) constrain(v float64) float64 {
	if math.IsNaN(v) {
		return p.Default
	}
	switch p.Kind {
	case Boolean:
		if v >= (p.Min+p.Max)/2 {
			return p.Max
		}
		return p.Min
	case Choice:
		v = math.Round(v)
	}
	return math.Max(p.Min, math.Min(p.Max, v))
}

// SetValue sets new target value. It's safe to call concurrently with
// processing.
func (p *Parameter) SetValue(v float64) {
	p.target.Store(math.Float64bits(p.constrain(v)))
}

// SetNormalized sets new target value from [0, 1] range.
func (p *Parameter) SetNormalized(n float64) {
	p.SetValue(p.Min + n*(p.Max-p.Min))
}

// Value returns the target value.
func (p *Parameter) Value() float64 {
	return math.Float64frombits(p.target.Load())
}

// Normalized returns the target value mapped into [0, 1] range.
func (p *Parameter) Normalized() float64 {
	if p.Max == p.Min {
		return 0
	}
	return (p.Value() - p.Min) / (p.Max - p.Min)
}

// Bool returns target of boolean parameter.
func (p *Parameter) Bool() bool {
	return p.Value() >= (p.Min+p.Max)/2
}

// Choice returns label of the current choice.
func (p *Parameter) Choice() string {
	i := int(p.Value() - p.Min)
	if i < 0 || i >= len(p.Choices) {
		return ""
	}
	return p.Choices[i]
}

// Current returns the smoothed value. Must be called by the audio
// goroutine only.
func (p *Parameter) Current() float64 {
	return p.current
}

// Prepare recomputes smoothing coefficient for the sample rate.
func (p *Parameter) Prepare(sampleRate float64) {
	p.sampleRate = sampleRate
	if sampleRate <= 0 {
		p.coeff = 1
		return
	}
	p.coeff = 1 - math.Exp(-1/(SmoothingTime*sampleRate))
}

// Coefficient returns per-sample smoothing coefficient.
func (p *Parameter) Coefficient() float64 {
	return p.coeff
}

// Smooth advances current value towards the target by frames samples
// and returns it. A single closed-form step is applied per call.
func (p *Parameter) Smooth(frames int) float64 {
	p.previous = p.current
	target := p.Value()
	if p.Kind != Continuous || p.coeff >= 1 {
		p.current = target
		return target
	}
	if frames <= 0 {
		return p.current
	}
	diff := target - p.current
	if math.Abs(diff) <= settle {
		p.current = target
		return target
	}
	k := 1 - math.Pow(1-p.coeff, float64(frames))
	p.current += diff * k
	if math.Abs(target-p.current) <= settle {
		p.current = target
	}
	return p.current
}

// Ramp writes a linear ramp between values before and after the last
// Smooth call into dst and returns the current value. It lets DSP code
// apply a parameter per sample without per-sample smoothing.
func (p *Parameter) Ramp(dst []float64) float64 {
	start, end := p.previous, p.current
	if start == end || len(dst) == 0 {
		for i := range dst {
			dst[i] = end
		}
		return end
	}
	step := (end - start) / float64(len(dst))
	for i := range dst {
		dst[i] = start + step*float64(i+1)
	}
	return end
}

// Reset restores default as both target and current value.
func (p *Parameter) Reset() {
	p.target.Store(math.Float64bits(p.Default))
	p.current = p.Default
	p.previous = p.Default
}

func (p *Parameter) String() string {
	switch p.Kind {
	case Boolean:
		return fmt.Sprintf("%s: %t", p.Name, p.Bool())
	case Choice:
		return fmt.Sprintf("%s: %s", p.Name, p.Choice())
	}
	if p.Unit == "" {
		return fmt.Sprintf("%s: %.2f", p.Name, p.Value())
	}
	return fmt.Sprintf("%s: %.2f %s", p.Name, p.Value(), p.Unit)
}

// Set is an ordered list of parameters.
type Set []*Parameter

// Get returns parameter by id.
func (s Set) Get(id string) (*Parameter, bool) {
	for _, p := range s {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Prepare prepares all parameters in the set.
func (s Set) Prepare(sampleRate float64) {
	for _, p := range s {
		p.Prepare(sampleRate)
	}
}

// Smooth advances all parameters in the set.
func (s Set) Smooth(frames int) {
	for _, p := range s {
		p.Smooth(frames)
	}
}

// Reset resets all parameters in the set.
func (s Set) Reset() {
	for _, p := range s {
		p.Reset()
	}
}
