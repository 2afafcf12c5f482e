package wav_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/graph"
	"pipelined.dev/graph/effect"
	"pipelined.dev/graph/signal"
	"pipelined.dev/graph/wav"
)

const (
	sampleRate = 44100
	blockSize  = 64
)

func constant(channels, frames int, values ...float64) signal.Float64 {
	buf := signal.EmptyFloat64(channels, frames)
	for c := range buf {
		for i := range buf[c] {
			buf[c][i] = values[c%len(values)]
		}
	}
	return buf
}

// readAll reads the file in blocks of blockSize with channels.
func readAll(t *testing.T, path string, channels int) (signal.Float64, int) {
	t.Helper()
	source, err := wav.Open(path)
	require.NoError(t, err)
	defer source.Close()

	var (
		result signal.Float64
		blocks int
	)
	block := signal.EmptyFloat64(channels, blockSize)
	for {
		n, err := source.Read(block)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		result = result.Append(block.Slice(0, n))
		blocks++
	}
	return result, blocks
}

func TestSinkSource(t *testing.T) {
	tests := []struct {
		description   string
		fileChannels  int
		readChannels  int
		bitDepth      signal.BitDepth
		frames        int
		values        []float64
		expected      []float64
		expectedBlock int
	}{
		{
			description:   "stereo 16 bit",
			fileChannels:  2,
			readChannels:  2,
			bitDepth:      signal.BitDepth16,
			frames:        3*blockSize + 10,
			values:        []float64{0.5, -0.25},
			expected:      []float64{0.5, -0.25},
			expectedBlock: 4,
		},
		{
			description:   "stereo 32 bit",
			fileChannels:  2,
			readChannels:  2,
			bitDepth:      signal.BitDepth32,
			frames:        blockSize,
			values:        []float64{0.5, -0.25},
			expected:      []float64{0.5, -0.25},
			expectedBlock: 1,
		},
		{
			description:   "mono file into stereo",
			fileChannels:  1,
			readChannels:  2,
			bitDepth:      signal.BitDepth16,
			frames:        2 * blockSize,
			values:        []float64{0.5},
			expected:      []float64{0.5, 0.5},
			expectedBlock: 2,
		},
		{
			description:   "stereo file into mono",
			fileChannels:  2,
			readChannels:  1,
			bitDepth:      signal.BitDepth16,
			frames:        blockSize,
			values:        []float64{0.5, -0.25},
			expected:      []float64{0.125},
			expectedBlock: 1,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.wav")
			sink, err := wav.Create(path, sampleRate, test.fileChannels, test.bitDepth)
			require.NoError(t, err)
			data := constant(test.fileChannels, test.frames, test.values...)
			require.NoError(t, sink.Write(data, test.frames))
			require.NoError(t, sink.Close())

			source, err := wav.Open(path)
			require.NoError(t, err)
			assert.Equal(t, sampleRate, source.SampleRate())
			assert.Equal(t, test.fileChannels, source.Channels())
			assert.Equal(t, test.bitDepth, source.BitDepth())
			require.NoError(t, source.Close())

			result, blocks := readAll(t, path, test.readChannels)
			assert.Equal(t, test.expectedBlock, blocks)
			require.Equal(t, test.readChannels, result.NumChannels())
			assert.Equal(t, test.frames, result.Size())
			for c := range result {
				for _, v := range result[c] {
					assert.InDelta(t, test.expected[c], v, 1e-3)
				}
			}
		})
	}
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := wav.Create(filepath.Join(dir, "out.wav"), sampleRate, 2, 24)
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)
	_, err = wav.NewRecorder(filepath.Join(dir, "out.wav"), signal.BitDepth8)
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)

	_, err = wav.Open(filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	text := filepath.Join(dir, "text.wav")
	require.NoError(t, os.WriteFile(text, []byte("not a wav file at all"), 0o644))
	_, err = wav.Open(text)
	assert.ErrorIs(t, err, wav.ErrInvalidFile)
}

// record processes blocks through input -> recorder -> output graph.
func record(t *testing.T, r *wav.Recorder, blocks int, bypassAt int) {
	t.Helper()
	g, err := graph.New()
	require.NoError(t, err)
	id, err := g.AddNode(effect.New(r))
	require.NoError(t, err)
	in, _ := g.Outputs(g.Input())
	out, _ := g.Inputs(g.Output())
	rIn, _ := g.Inputs(id)
	rOut, _ := g.Outputs(id)
	_, err = g.Connect(in[0], rIn[0])
	require.NoError(t, err)
	_, err = g.Connect(rOut[0], out[0])
	require.NoError(t, err)
	require.NoError(t, g.Prepare(sampleRate, blockSize))

	input := constant(2, blockSize, 0.5, -0.5)
	output := signal.EmptyFloat64(2, blockSize)
	for i := 0; i < blocks; i++ {
		if i == bypassAt {
			require.NoError(t, g.SetBypass(id, true))
		}
		require.NoError(t, g.Process(input, output, blockSize))
		assert.Equal(t, input, output)
	}
	require.NoError(t, g.Release())
}

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.wav")
	r, err := wav.NewRecorder(path, signal.BitDepth16)
	require.NoError(t, err)
	assert.True(t, r.IsSink())
	// sink keeps recording when bypassed.
	record(t, r, 4, 2)

	result, _ := readAll(t, path, 2)
	assert.Equal(t, 4*blockSize, result.Size())
	for _, v := range result[0] {
		assert.InDelta(t, 0.5, v, 1e-3)
	}
	for _, v := range result[1] {
		assert.InDelta(t, -0.5, v, 1e-3)
	}
}

func TestRecorderDisarmed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.wav")
	r, err := wav.NewRecorder(path, signal.BitDepth16)
	require.NoError(t, err)
	p, ok := r.Params().Get("record")
	require.True(t, ok)
	p.SetValue(0)
	record(t, r, 2, -1)

	result, blocks := readAll(t, path, 2)
	assert.Equal(t, 0, blocks)
	assert.Equal(t, 0, result.Size())
}
