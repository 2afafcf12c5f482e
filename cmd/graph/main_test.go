package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirupsen/logrus"

	"pipelined.dev/graph"
	"pipelined.dev/graph/effect"
	"pipelined.dev/graph/internal/config"
	"pipelined.dev/graph/log"
	"pipelined.dev/graph/mock"
	"pipelined.dev/graph/rig"
	"pipelined.dev/graph/signal"
	"pipelined.dev/graph/wav"
)

const gainRig = `
block_size: 64
rig:
  nodes:
    - id: gain
      type: gain
      params:
        gain: -6
    - id: rec
      type: recorder
  connections:
    - from: input
      to: gain
    - from: gain
      to: rec
    - from: rec
      to: output
`

func TestInit(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range newRootCmd().Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"render", "play", "effects"}, names)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEffects(t *testing.T) {
	out, err := execute(t, "effects")
	require.NoError(t, err)
	assert.Contains(t, out, "gain")
	assert.Contains(t, out, "splitter")
	assert.NotContains(t, out, RecorderType)

	out, err = execute(t, "effects", "--record", "out.wav")
	require.NoError(t, err)
	assert.Contains(t, out, RecorderType)
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")
	record := filepath.Join(dir, "record.wav")
	config := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(config, []byte(gainRig), 0o644))

	frames := 1000
	sink, err := wav.Create(in, 44100, 2, signal.BitDepth16)
	require.NoError(t, err)
	data := signal.EmptyFloat64(2, frames)
	for c := range data {
		for i := range data[c] {
			data[c][i] = 0.5
		}
	}
	require.NoError(t, sink.Write(data, frames))
	require.NoError(t, sink.Close())

	stdout, err := execute(t, "render", "--config", config, "--in", in, "--out", out, "--record", record)
	require.NoError(t, err)
	assert.Contains(t, stdout, "16 blocks")

	for _, path := range []string{out, record} {
		source, err := wav.Open(path)
		require.NoError(t, err)
		block := signal.EmptyFloat64(2, frames)
		n, err := source.Read(block)
		require.NoError(t, err)
		assert.Equal(t, frames, n)
		for _, v := range block[0] {
			assert.InDelta(t, 0.5*0.501187, v, 1e-3)
		}
		require.NoError(t, source.Close())
	}
}

func TestRenderErrors(t *testing.T) {
	dir := t.TempDir()
	passthrough := filepath.Join(dir, "passthrough.yaml")
	require.NoError(t, os.WriteFile(passthrough, []byte("rig:\n  connections:\n    - from: input\n      to: output\n"), 0o644))
	_, err := execute(t, "render", "--config", passthrough, "--in", filepath.Join(dir, "missing.wav"), "--out", filepath.Join(dir, "out.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// output is not connected.
	_, err = execute(t, "render", "--in", filepath.Join(dir, "missing.wav"), "--out", filepath.Join(dir, "out.wav"))
	var validation *graph.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = execute(t, "render", "--in", "in.wav")
	assert.Error(t, err)

	config := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(config, []byte(gainRig), 0o644))
	// recorder type is unknown without record flag.
	_, err = execute(t, "render", "--config", config, "--in", "in.wav", "--out", "out.wav")
	assert.Error(t, err)
}

func TestBuildReleasesGraph(t *testing.T) {
	errRelease := errors.New("release failed")
	tests := []struct {
		description string
		rig         rig.Rig
		err         error
	}{
		{
			description: "unknown node",
			rig: rig.Rig{
				Nodes:       []rig.Node{{ID: "mock", Type: "mock"}},
				Connections: []rig.Connection{{From: "mock", To: "chorus"}},
			},
			err: rig.ErrUnknownNode,
		},
		{
			description: "unconnected output",
			rig: rig.Rig{
				Nodes:       []rig.Node{{ID: "mock", Type: "mock"}},
				Connections: []rig.Connection{{From: rig.Input, To: "mock"}},
			},
			err: &graph.ValidationError{},
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			m := &mock.Effect{Hooks: mock.Hooks{ErrorOnRelease: errRelease}}
			registry := effect.NewRegistry()
			require.NoError(t, registry.Register("mock", func() (effect.Effect, error) {
				return m, nil
			}))
			cfg := &config.Config{
				Channels: config.ChannelsConfig{In: 2, Out: 2},
				Rig:      test.rig,
			}
			g, err := build("test", cfg, log.New(logrus.WarnLevel), registry)
			assert.Nil(t, g)
			if verr, ok := test.err.(*graph.ValidationError); ok {
				assert.ErrorAs(t, err, &verr)
			} else {
				assert.ErrorIs(t, err, test.err)
			}
			assert.ErrorIs(t, err, errRelease)
			assert.Equal(t, 1, m.Released)
		})
	}
}
