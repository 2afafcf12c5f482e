// Package portaudio plays the graph in real time through the default
// PortAudio devices.
package portaudio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"pipelined.dev/graph/engine"
	"pipelined.dev/graph/signal"
)

// Host drives the engine from a duplex PortAudio callback stream.
type Host struct {
	engine *engine.Engine
	stream *portaudio.Stream
	in     signal.Float64
	out    signal.Float64
}

// NewHost returns host for the engine.
func NewHost(e *engine.Engine) *Host {
	return &Host{engine: e}
}

// Start initializes PortAudio, starts the engine and opens the default
// duplex stream with the graph channels.
func (h *Host) Start(ctx context.Context, sampleRate float64, blockSize int) error {
	inChannels, outChannels := h.engine.Graph().Channels()
	if err := h.engine.Start(ctx, sampleRate, blockSize); err != nil {
		return err
	}
	h.in = signal.EmptyFloat64(inChannels, blockSize)
	h.out = signal.EmptyFloat64(outChannels, blockSize)

	if err := portaudio.Initialize(); err != nil {
		return h.fail(fmt.Errorf("initialize portaudio: %w", err), false)
	}
	stream, err := portaudio.OpenDefaultStream(inChannels, outChannels, sampleRate, blockSize, h.process)
	if err != nil {
		return h.fail(fmt.Errorf("open stream: %w", err), true)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return h.fail(fmt.Errorf("start stream: %w", err), true)
	}
	h.stream = stream
	return nil
}

func (h *Host) fail(err error, initialized bool) error {
	if initialized {
		portaudio.Terminate()
	}
	if stopErr := h.engine.Stop(); stopErr != nil {
		return fmt.Errorf("%w, stop engine: %v", err, stopErr)
	}
	return err
}

// process is the stream callback. Buffers are interleaved.
func (h *Host) process(in, out []float32) {
	frames := len(out) / len(h.out)
	if frames > h.out.Size() {
		frames = h.out.Size()
	}
	if len(in) >= frames*len(h.in) {
		signal.ReadInterFloat32(h.in, in, frames)
	} else {
		h.in.Clear(frames)
	}
	// failures are reported by engine and block is silent.
	_ = h.engine.Process(h.in, h.out, frames)
	signal.WriteInterFloat32(out, h.out, frames)
}

// Stop stops the stream, the engine and terminates PortAudio.
func (h *Host) Stop() error {
	if h.stream == nil {
		return nil
	}
	if err := h.stream.Stop(); err != nil {
		return err
	}
	if err := h.stream.Close(); err != nil {
		return err
	}
	h.stream = nil
	if err := h.engine.Stop(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
