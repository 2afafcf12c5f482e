// Package rig builds a graph from a declarative description of nodes and
// connections. It uses public graph API only.
package rig

import (
	"errors"
	"fmt"
	"strings"

	"pipelined.dev/graph"
	"pipelined.dev/graph/effect"
	"pipelined.dev/graph/mixer"
	"pipelined.dev/graph/param"
	"pipelined.dev/graph/split"
)

const (
	// Input is the reserved id of the graph input.
	Input = "input"
	// Output is the reserved id of the graph output.
	Output = "output"
	// SplitterType is the node type of split.Splitter.
	SplitterType = "splitter"
	// MixerType is the node type of mixer.Mixer.
	MixerType = "mixer"
)

var (
	// ErrDuplicateNode is returned when node id is used twice.
	ErrDuplicateNode = errors.New("duplicate node id")
	// ErrUnknownNode is returned when connection refers to unknown node.
	ErrUnknownNode = errors.New("unknown node id")
	// ErrUnknownPort is returned when connection refers to unknown port.
	ErrUnknownPort = errors.New("unknown port")
	// ErrUnknownParam is returned when node has no such parameter.
	ErrUnknownParam = errors.New("unknown parameter")
)

type (
	// Rig describes the graph.
	Rig struct {
		Nodes       []Node       `mapstructure:"nodes"`
		Connections []Connection `mapstructure:"connections"`
	}

	// Node describes a node. Type is either an effect type from registry,
	// "splitter" or "mixer".
	Node struct {
		ID     string             `mapstructure:"id"`
		Type   string             `mapstructure:"type"`
		Mode   string             `mapstructure:"mode"`
		Bypass bool               `mapstructure:"bypass"`
		Ports  int                `mapstructure:"ports"`
		Params map[string]float64 `mapstructure:"params"`
	}

	// Connection connects two endpoints. Endpoint is "node" for the first
	// port of the node or "node.port" for the named port.
	Connection struct {
		From string `mapstructure:"from"`
		To   string `mapstructure:"to"`
	}

	// Nodes maps rig node ids to graph node ids.
	Nodes map[string]graph.NodeID
)

// Build adds nodes and connections of the rig to the graph. If any step
// fails, every node added by Build is removed and errors of the removal
// are joined to the returned error.
func Build(g *graph.Graph, registry *effect.Registry, r Rig) (nodes Nodes, err error) {
	nodes = Nodes{
		Input:  g.Input(),
		Output: g.Output(),
	}
	defer func() {
		if err == nil {
			return
		}
		for id, n := range nodes {
			if id == Input || id == Output {
				continue
			}
			if rerr := g.RemoveNode(n); rerr != nil {
				err = errors.Join(err, fmt.Errorf("remove node %q: %w", id, rerr))
			}
		}
		nodes = nil
	}()

	for _, n := range r.Nodes {
		if _, ok := nodes[n.ID]; ok || n.ID == "" {
			return nodes, fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID)
		}
		node, err := newNode(registry, n)
		if err != nil {
			return nodes, fmt.Errorf("node %q: %w", n.ID, err)
		}
		id, err := g.AddNode(node)
		if err != nil {
			return nodes, fmt.Errorf("add node %q: %w", n.ID, err)
		}
		nodes[n.ID] = id
		if n.Bypass {
			if err := g.SetBypass(id, true); err != nil {
				return nodes, err
			}
		}
	}

	for _, c := range r.Connections {
		from, err := nodes.port(g, c.From, graph.Out)
		if err != nil {
			return nodes, err
		}
		to, err := nodes.port(g, c.To, graph.In)
		if err != nil {
			return nodes, err
		}
		if _, err := g.Connect(from, to); err != nil {
			return nodes, fmt.Errorf("connect %s to %s: %w", c.From, c.To, err)
		}
	}
	return nodes, nil
}

func newNode(registry *effect.Registry, n Node) (graph.Node, error) {
	var (
		node   graph.Node
		params param.Set
	)
	switch n.Type {
	case SplitterType:
		node = split.New(ports(n), graph.Stereo)
	case MixerType:
		m := mixer.New(ports(n), graph.Stereo)
		node, params = m, m.Params()
	default:
		e, err := registry.New(n.Type)
		if err != nil {
			return nil, err
		}
		mode, err := effect.ParseStereoMode(n.Mode)
		if err != nil {
			return nil, err
		}
		en := effect.New(e, effect.WithStereoMode(mode), effect.WithName(n.ID))
		node, params = en, en.Params()
	}
	for id, v := range n.Params {
		p, ok := params.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParam, id)
		}
		p.SetValue(v)
		// start from the configured value.
		p.Smooth(0)
	}
	return node, nil
}

func ports(n Node) int {
	if n.Ports > 0 {
		return n.Ports
	}
	return 2
}

// port resolves endpoint to the port id.
func (nodes Nodes) port(g *graph.Graph, endpoint string, d graph.Direction) (graph.PortID, error) {
	name, portName, named := strings.Cut(endpoint, ".")
	id, ok := nodes[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	var (
		ports []graph.PortID
		err   error
	)
	if d == graph.In {
		ports, err = g.Inputs(id)
	} else {
		ports, err = g.Outputs(id)
	}
	if err != nil {
		return 0, err
	}
	if len(ports) == 0 {
		return 0, fmt.Errorf("%w: %q has no %v ports", ErrUnknownPort, name, d)
	}
	if !named {
		return ports[0], nil
	}
	for _, pid := range ports {
		p, err := g.Port(pid)
		if err != nil {
			return 0, err
		}
		if p.Name == portName {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPort, endpoint)
}
