package mock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/graph/mock"
	"pipelined.dev/graph/signal"
)

func TestSourceLimit(t *testing.T) {
	var tests = []struct {
		channels int
		limit    int
		value    float64
		blocks   int
		samples  int
	}{
		{
			channels: 1,
			limit:    25,
			value:    0.5,
			blocks:   3,
			samples:  25,
		},
		{
			channels: 2,
			limit:    0,
			value:    0.7,
			blocks:   3,
			samples:  30,
		},
	}
	for _, test := range tests {
		source := &mock.Source{
			Channels: test.channels,
			Limit:    test.limit,
			Value:    test.value,
		}
		sink := &mock.Sink{Channels: test.channels}
		out := []signal.Float64{signal.EmptyFloat64(test.channels, 10)}
		for i := 0; i < test.blocks; i++ {
			assert.NoError(t, source.Process(nil, out, 10))
			assert.NoError(t, sink.Process(out, nil, 10))
		}
		_, samples := source.Count()
		assert.Equal(t, test.samples, samples)
		blocks, _ := sink.Count()
		assert.Equal(t, test.blocks, blocks)
		assert.Equal(t, test.channels, sink.Buffer().NumChannels())
		assert.Equal(t, 10*test.blocks, sink.Buffer().Size())
		assert.Equal(t, test.value, sink.Buffer()[0][0])
	}
}

func TestEffect(t *testing.T) {
	e := &mock.Effect{Gain: 2}
	out := make([]float64, 2)
	assert.NoError(t, e.Process([]float64{1, 2}, out, 2))
	assert.Equal(t, []float64{2, 4}, out)
	assert.Equal(t, 1, e.MonoCalls)
	assert.Equal(t, []float64{1, 2}, e.Received)
}
