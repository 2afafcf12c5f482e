package metric

import (
	"math"
	"sync/atomic"

	"pipelined.dev/graph/signal"
)

// Levels holds peak absolute sample values of node outputs per channel.
// Listen is called by the processing goroutine and Peak by any other, no
// locks are involved.
type Levels struct {
	peaks []atomic.Uint64
}

// NewLevels creates meter for numChannels channels.
func NewLevels(numChannels int) *Levels {
	return &Levels{
		peaks: make([]atomic.Uint64, numChannels),
	}
}

// Listen updates peaks with the channels of every output buffer. Its
// signature matches graph listener.
func (l *Levels) Listen(_, out []signal.Float64, frames int) {
	c := 0
	for _, buf := range out {
		for _, samples := range buf {
			if c >= len(l.peaks) {
				return
			}
			l.update(c, samples[:frames])
			c++
		}
	}
}

func (l *Levels) update(c int, samples []float64) {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(s))
	}
	for {
		old := l.peaks[c].Load()
		if peak <= math.Float64frombits(old) {
			return
		}
		if l.peaks[c].CompareAndSwap(old, math.Float64bits(peak)) {
			return
		}
	}
}

// Peak returns the peak of the channel since the last reset.
func (l *Levels) Peak(channel int) float64 {
	return math.Float64frombits(l.peaks[channel].Load())
}

// Reset zeroes all peaks.
func (l *Levels) Reset() {
	for i := range l.peaks {
		l.peaks[i].Store(0)
	}
}
