package graph

import (
	"fmt"

	"github.com/rs/xid"
)

// Option provides a way to set functional parameters to graph.
type Option func(g *Graph) error

// Logger is a global interface for graph loggers.
type Logger interface {
	Debug(...interface{})
	Info(...interface{})
}

// WithLogger sets logger to Graph. If this option is not provided, silent
// logger is used.
func WithLogger(logger Logger) Option {
	return func(g *Graph) error {
		g.log = logger
		return nil
	}
}

// WithName sets name to Graph.
func WithName(n string) Option {
	return func(g *Graph) error {
		g.name = n
		return nil
	}
}

// WithMetric enables expvar meters for every node.
func WithMetric() Option {
	return func(g *Graph) error {
		g.metric = true
		return nil
	}
}

// WithChannels sets number of channels of input and output sentinels.
// Only mono and stereo are supported. Default is stereo for both.
func WithChannels(in, out int) Option {
	return func(g *Graph) error {
		if !validChannels(in) || !validChannels(out) {
			return fmt.Errorf("%w: in %d out %d", ErrChannelMismatch, in, out)
		}
		g.inChannels, g.outChannels = in, out
		return nil
	}
}

func validChannels(n int) bool {
	return n == 1 || n == 2
}

func portType(channels int) PortType {
	if channels == 1 {
		return Mono
	}
	return Stereo
}

// newUID returns new unique id value.
func newUID() string {
	return xid.New().String()
}

type silentLogger struct{}

func (silentLogger) Debug(args ...interface{}) {}

func (silentLogger) Info(args ...interface{}) {}

var defaultLogger silentLogger
