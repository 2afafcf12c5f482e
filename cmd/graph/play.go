package main

import (
	"github.com/spf13/cobra"

	"pipelined.dev/graph/engine"
	"pipelined.dev/graph/portaudio"
)

type playCommand struct {
	options
}

func newPlayCmd() *cobra.Command {
	c := &playCommand{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Run the graph in real time on default audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run()
		},
	}
	c.register(cmd)
	return cmd
}

func (c *playCommand) run() error {
	cfg, logger, g, err := c.setup()
	if err != nil {
		return err
	}
	ctx, cancel := interrupt()
	defer cancel()

	e := engine.New(g, engine.WithLogger(logger), engine.WithReportBuffer(cfg.Report))
	host := portaudio.NewHost(e)
	if err := host.Start(ctx, cfg.SampleRate, cfg.BlockSize); err != nil {
		return err
	}
	logger.Info("playing, interrupt to stop")
	<-ctx.Done()
	if err := host.Stop(); err != nil {
		return err
	}
	stats := e.Stats()
	logger.WithField("overruns", stats.Overruns).
		WithField("failures", stats.Failures).
		Infof("stopped after %d blocks", stats.Blocks)
	return nil
}
