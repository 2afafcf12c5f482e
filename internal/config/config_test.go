package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/graph/internal/config"
	"pipelined.dev/graph/rig"
)

const rigYAML = `
sample_rate: 48000
block_size: 256
channels:
  in: 1
log:
  level: debug
rig:
  nodes:
    - id: split
      type: splitter
    - id: dry
      type: gain
      params:
        gain: -6
    - id: wet
      type: delay
      mode: stereo
      bypass: true
    - id: mix
      type: mixer
      ports: 2
  connections:
    - from: input
      to: split
    - from: split.out2
      to: wet
    - from: mix
      to: output
`

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(write(t, rigYAML))
	require.NoError(t, err)
	assert.Equal(t, 48000.0, cfg.SampleRate)
	assert.Equal(t, 256, cfg.BlockSize)
	assert.Equal(t, config.ChannelsConfig{In: 1, Out: 2}, cfg.Channels)
	assert.Equal(t, 16, cfg.Report)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.Empty(t, cfg.Warnings())

	require.Len(t, cfg.Rig.Nodes, 4)
	assert.Equal(t, rig.Node{ID: "dry", Type: "gain", Params: map[string]float64{"gain": -6}}, cfg.Rig.Nodes[1])
	assert.Equal(t, rig.Node{ID: "wet", Type: "delay", Mode: "stereo", Bypass: true}, cfg.Rig.Nodes[2])
	assert.Equal(t, 2, cfg.Rig.Nodes[3].Ports)
	assert.Equal(t, []rig.Connection{
		{From: "input", To: "split"},
		{From: "split.out2", To: "wet"},
		{From: "mix", To: "output"},
	}, cfg.Rig.Connections)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 44100.0, cfg.SampleRate)
	assert.Equal(t, 512, cfg.BlockSize)
	assert.Equal(t, config.ChannelsConfig{In: 2, Out: 2}, cfg.Channels)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.Len(t, cfg.Warnings(), 1)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("GRAPH_BLOCK_SIZE", "100")
	t.Setenv("GRAPH_CHANNELS_OUT", "1")
	cfg, err := config.Load(write(t, rigYAML))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.BlockSize)
	assert.Equal(t, 1, cfg.Channels.Out)
	assert.Equal(t, []string{"block_size 100 is not a power of two"}, cfg.Warnings())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		description string
		content     string
	}{
		{
			description: "zero block size",
			content:     "block_size: 0",
		},
		{
			description: "negative sample rate",
			content:     "sample_rate: -1",
		},
		{
			description: "too many channels",
			content:     "channels:\n  out: 6",
		},
		{
			description: "unknown log level",
			content:     "log:\n  level: loud",
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			_, err := config.Load(write(t, test.content))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
