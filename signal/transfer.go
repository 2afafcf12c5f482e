package signal

import (
	"github.com/cwbudde/algo-vecmath"
)

// Transfer copies first frames of src into dst. Channel layouts may
// differ: a mono source is duplicated into every destination channel, a
// multi-channel source is averaged into a mono destination. Other
// mismatches copy the common channels and zero the rest.
func Transfer(dst, src Float64, frames int) {
	switch {
	case len(src) == len(dst):
		for i := range dst {
			copy(dst[i][:frames], src[i][:frames])
		}
	case len(src) == 1:
		for i := range dst {
			copy(dst[i][:frames], src[0][:frames])
		}
	case len(dst) == 1:
		Downmix(dst[0][:frames], src, frames)
	default:
		for i := range dst {
			if i < len(src) {
				copy(dst[i][:frames], src[i][:frames])
				continue
			}
			clear(dst[i][:frames])
		}
	}
}

// Downmix averages all channels of src into dst.
func Downmix(dst []float64, src Float64, frames int) {
	if len(src) == 0 {
		clear(dst[:frames])
		return
	}
	copy(dst[:frames], src[0][:frames])
	for i := 1; i < len(src); i++ {
		vecmath.AddBlockInPlace(dst[:frames], src[i][:frames])
	}
	if len(src) > 1 {
		vecmath.ScaleBlock(dst[:frames], dst[:frames], 1/float64(len(src)))
	}
}

// Scale multiplies first frames of every channel by gain.
func Scale(floats Float64, gain float64, frames int) {
	for i := range floats {
		vecmath.ScaleBlock(floats[i][:frames], floats[i][:frames], gain)
	}
}

// MixInto adds src multiplied by gain to dst. Scratch must hold at least
// frames samples and is overwritten.
func MixInto(dst, src []float64, gain float64, scratch []float64, frames int) {
	vecmath.ScaleBlock(scratch[:frames], src[:frames], gain)
	vecmath.AddBlockInPlace(dst[:frames], scratch[:frames])
}

// Multiply multiplies first frames of dst by envelope sample by sample.
func Multiply(dst, envelope []float64, frames int) {
	vecmath.MulBlockInPlace(dst[:frames], envelope[:frames])
}

// ReadInterFloat32 deinterleaves float32 samples into floats. Number of
// channels of floats defines the stride of interleaved data.
func ReadInterFloat32(floats Float64, data []float32, frames int) {
	numChannels := len(floats)
	for c := range floats {
		for i := 0; i < frames; i++ {
			floats[c][i] = float64(data[i*numChannels+c])
		}
	}
}

// WriteInterFloat32 interleaves floats into float32 samples.
func WriteInterFloat32(data []float32, floats Float64, frames int) {
	numChannels := len(floats)
	for c := range floats {
		for i := 0; i < frames; i++ {
			data[i*numChannels+c] = float32(floats[c][i])
		}
	}
}
