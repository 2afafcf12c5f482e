// Package wav reads and writes wav files. Source and Sink serve offline
// rendering, Recorder is an effect that writes its input into a file.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/graph/param"
	"pipelined.dev/graph/signal"
)

// pcm is the wav audio format code of integer samples.
const pcm = 1

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")
	// ErrInvalidFile is returned when file is not a valid wav.
	ErrInvalidFile = errors.New("wav is not valid")
)

func supported(bitDepth signal.BitDepth) bool {
	return bitDepth == signal.BitDepth16 || bitDepth == signal.BitDepth32
}

type (
	// Source reads blocks from wav file.
	Source struct {
		file     *os.File
		decoder  *wav.Decoder
		channels int
		bitDepth signal.BitDepth
		ib       *audio.IntBuffer
		buf      signal.Float64
	}

	// Sink writes blocks into wav file.
	Sink struct {
		file     *os.File
		encoder  *wav.Encoder
		channels int
		bitDepth signal.BitDepth
		ib       *audio.IntBuffer
		data     []int
	}
)

// Open opens wav file for reading.
func Open(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("%w, failed to close the file %v: %v", ErrInvalidFile, path, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, path)
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if !supported(bitDepth) {
		file.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	return &Source{
		file:     file,
		decoder:  decoder,
		channels: int(decoder.NumChans),
		bitDepth: bitDepth,
	}, nil
}

// SampleRate of the file.
func (s *Source) SampleRate() int {
	return int(s.decoder.SampleRate)
}

// Channels returns number of channels in the file.
func (s *Source) Channels() int {
	return s.channels
}

// BitDepth of the file.
func (s *Source) BitDepth() signal.BitDepth {
	return s.bitDepth
}

// Read reads the next block. File channels are mixed into the block
// layout. It returns io.EOF when all samples are read.
func (s *Source) Read(block signal.Float64) (int, error) {
	size := block.Size()
	if s.ib == nil || len(s.ib.Data) != size*s.channels {
		s.ib = &audio.IntBuffer{
			Format:         s.decoder.Format(),
			Data:           make([]int, size*s.channels),
			SourceBitDepth: int(s.bitDepth),
		}
		s.buf = signal.EmptyFloat64(s.channels, size)
	}
	read, err := s.decoder.PCMBuffer(s.ib)
	if err != nil && err != io.EOF {
		return 0, err
	}
	if read == 0 {
		return 0, io.EOF
	}
	frames := signal.InterInt{
		Data:        s.ib.Data[:read],
		NumChannels: s.channels,
		BitDepth:    s.bitDepth,
	}.ReadFloat64(s.buf)
	signal.Transfer(block, s.buf, frames)
	return frames, nil
}

// Close closes the file.
func (s *Source) Close() error {
	return s.file.Close()
}

// Create creates wav file for writing.
func Create(path string, sampleRate, channels int, bitDepth signal.BitDepth) (*Sink, error) {
	if !supported(bitDepth) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Sink{
		file:     f,
		encoder:  wav.NewEncoder(f, sampleRate, int(bitDepth), channels, pcm),
		channels: channels,
		bitDepth: bitDepth,
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// Write writes first frames of the block. Block channels are mixed into
// the file layout.
func (s *Sink) Write(block signal.Float64, frames int) error {
	if frames == 0 {
		return nil
	}
	if len(block) != s.channels {
		mixed := signal.EmptyFloat64(s.channels, frames)
		signal.Transfer(mixed, block, frames)
		block = mixed
	}
	if len(s.data) < frames*s.channels {
		s.data = make([]int, frames*s.channels)
	}
	n := block.WriteInterInt(s.data, s.bitDepth, frames)
	s.ib.Data = s.data[:n]
	return s.encoder.Write(s.ib)
}

// Close flushes encoder and closes the file.
func (s *Sink) Close() error {
	if err := s.encoder.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// Recorder is an effect that passes audio through and writes it into a
// wav file. It's a sink: recording continues while it's bypassed. Stereo
// file is written in both modes.
type Recorder struct {
	path     string
	bitDepth signal.BitDepth
	record   *param.Parameter

	sink   *Sink
	stereo signal.Float64
}

// NewRecorder returns recorder that creates file at path on Prepare.
func NewRecorder(path string, bitDepth signal.BitDepth) (*Recorder, error) {
	if !supported(bitDepth) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	return &Recorder{
		path:     path,
		bitDepth: bitDepth,
		record:   param.NewBool("record", true, param.WithName("Record")),
	}, nil
}

// IsSink implements effect.Sink.
func (r *Recorder) IsSink() bool {
	return true
}

// Prepare creates the file. Previous file is closed if recorder is
// prepared again.
func (r *Recorder) Prepare(sampleRate float64, maxFrames int) error {
	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			return err
		}
		r.sink = nil
	}
	sink, err := Create(r.path, int(sampleRate), 2, r.bitDepth)
	if err != nil {
		return err
	}
	sink.data = make([]int, maxFrames*2)
	r.sink = sink
	r.stereo = signal.EmptyFloat64(2, maxFrames)
	return nil
}

// Process implements effect.Effect.
func (r *Recorder) Process(in, out []float64, frames int) error {
	copy(out[:frames], in[:frames])
	if !r.record.Bool() {
		return nil
	}
	copy(r.stereo[0][:frames], in[:frames])
	copy(r.stereo[1][:frames], in[:frames])
	return r.sink.Write(r.stereo, frames)
}

// ProcessStereo implements effect.Effect.
func (r *Recorder) ProcessStereo(inL, inR, outL, outR []float64, frames int) error {
	copy(outL[:frames], inL[:frames])
	copy(outR[:frames], inR[:frames])
	if !r.record.Bool() {
		return nil
	}
	copy(r.stereo[0][:frames], inL[:frames])
	copy(r.stereo[1][:frames], inR[:frames])
	return r.sink.Write(r.stereo, frames)
}

// Reset implements effect.Effect.
func (r *Recorder) Reset() {}

// Release closes the file.
func (r *Recorder) Release() error {
	if r.sink == nil {
		return nil
	}
	err := r.sink.Close()
	r.sink = nil
	return err
}

// Params implements effect.Effect.
func (r *Recorder) Params() param.Set {
	return param.Set{r.record}
}

// Latency implements effect.Effect.
func (r *Recorder) Latency() int {
	return 0
}
