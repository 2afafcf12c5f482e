package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pipelined.dev/graph"
	"pipelined.dev/graph/effect"
	"pipelined.dev/graph/effects"
	"pipelined.dev/graph/internal/config"
	"pipelined.dev/graph/log"
	"pipelined.dev/graph/rig"
	"pipelined.dev/graph/signal"
	"pipelined.dev/graph/wav"
)

// RecorderType is the rig node type of wav recorder, available when
// record flag is set.
const RecorderType = "recorder"

var (
	successExitCode = 0
	errorExitCode   = 1
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(errorExitCode)
	}
	os.Exit(successExitCode)
}

// options are shared by commands that build the graph.
type options struct {
	config string
	record string
	bits   int
}

func (o *options) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.config, "config", "", "Config file path")
	cmd.Flags().StringVar(&o.record, "record", "", "Enable recorder nodes writing to the wav file")
	cmd.Flags().IntVar(&o.bits, "bits", 16, "Bit depth of written wav files: 16 or 32")
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "graph",
		Short:        "Real-time audio signal graph host",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newRenderCmd(), newPlayCmd(), newEffectsCmd())
	return rootCmd
}

// setup loads configuration and builds the graph described by its rig.
func (o *options) setup() (*config.Config, *logrus.Logger, *graph.Graph, error) {
	cfg, err := config.Load(o.config)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := log.New(cfg.Level())
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	registry, err := o.registry()
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := build(o.config, cfg, logger, registry)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, g, nil
}

// build creates the graph of the rig. Graph is released if rig can't be
// built or validated.
func build(name string, cfg *config.Config, logger *logrus.Logger, registry *effect.Registry) (*graph.Graph, error) {
	g, err := graph.New(
		graph.WithName(name),
		graph.WithChannels(cfg.Channels.In, cfg.Channels.Out),
		graph.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	nodes, err := rig.Build(g, registry, cfg.Rig)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("build rig: %w", err), g.Release())
	}
	if err := g.Validate(); err != nil {
		return nil, errors.Join(err, g.Release())
	}
	logger.WithFields(logrus.Fields{
		"graph":   g.UID(),
		"nodes":   len(nodes),
		"latency": g.Latency(),
	}).Info("graph built")
	return g, nil
}

func (o *options) registry() (*effect.Registry, error) {
	registry := effect.NewRegistry()
	if err := effects.Register(registry); err != nil {
		return nil, err
	}
	if o.record == "" {
		return registry, nil
	}
	bitDepth := signal.BitDepth(o.bits)
	err := registry.Register(RecorderType, func() (effect.Effect, error) {
		return wav.NewRecorder(o.record, bitDepth)
	})
	return registry, err
}

// interrupt returns context cancelled on SIGINT or SIGTERM.
func interrupt() (context.Context, context.CancelFunc) {
	return ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
