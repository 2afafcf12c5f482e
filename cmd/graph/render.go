package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pipelined.dev/graph/engine"
	"pipelined.dev/graph/signal"
	"pipelined.dev/graph/wav"
)

type renderCommand struct {
	options
	in  string
	out string
}

func newRenderCmd() *cobra.Command {
	c := &renderCommand{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Process wav file through the graph offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd)
		},
	}
	c.register(cmd)
	cmd.Flags().StringVar(&c.in, "in", "", "Input wav file")
	cmd.Flags().StringVar(&c.out, "out", "", "Output wav file")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (c *renderCommand) run(cmd *cobra.Command) error {
	cfg, logger, g, err := c.setup()
	if err != nil {
		return err
	}
	source, err := wav.Open(c.in)
	if err != nil {
		return err
	}
	defer source.Close()

	_, outChannels := g.Channels()
	sink, err := wav.Create(c.out, source.SampleRate(), outChannels, signal.BitDepth(c.bits))
	if err != nil {
		return err
	}

	ctx, cancel := interrupt()
	defer cancel()
	e := engine.New(g, engine.WithLogger(logger), engine.WithReportBuffer(cfg.Report))
	// file sample rate wins over configured one.
	if err := e.Start(ctx, float64(source.SampleRate()), cfg.BlockSize); err != nil {
		sink.Close()
		return err
	}
	renderErr := e.Render(ctx, source, sink)
	stopErr := e.Stop()
	closeErr := sink.Close()
	switch {
	case renderErr != nil:
		return fmt.Errorf("render %s: %w", c.in, renderErr)
	case stopErr != nil:
		return stopErr
	case closeErr != nil:
		return closeErr
	}

	stats := e.Stats()
	logger.WithFields(logrus.Fields{
		"blocks":   stats.Blocks,
		"failures": stats.Failures,
		"overruns": stats.Overruns,
		"dropped":  stats.Dropped,
	}).Info("rendered")
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %d blocks\n", c.in, c.out, stats.Blocks)
	return nil
}
