package graph

import (
	"pipelined.dev/graph/signal"
)

// PortID identifies a port within a graph.
type PortID int

// PortType is a semantic type of the port.
type PortType int

const (
	// Mono audio, one channel.
	Mono PortType = iota
	// Stereo audio, two channels.
	Stereo
	// Control is a single channel scalar stream.
	Control
	// Trigger is a single channel gate stream.
	Trigger
)

// Channels returns number of channels of the port buffer.
func (t PortType) Channels() int {
	if t == Stereo {
		return 2
	}
	return 1
}

func (t PortType) audio() bool {
	return t == Mono || t == Stereo
}

func (t PortType) String() string {
	switch t {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	case Control:
		return "control"
	case Trigger:
		return "trigger"
	}
	return "unknown"
}

// compatible returns true if output of type from can feed input of type
// to. Audio ports connect to audio ports with up/downmix, control and
// trigger ports connect to each other.
func compatible(from, to PortType) bool {
	return from.audio() == to.audio()
}

// Direction of the port.
type Direction int

const (
	// In is the input port direction.
	In Direction = iota
	// Out is the output port direction.
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// Port is a read-only view of the port.
type Port struct {
	ID        PortID
	Name      string
	Direction Direction
	Type      PortType
	Node      NodeID
	// Index of the port in the node's inputs or outputs.
	Index    int
	Optional bool
}

const noConnection ConnectionID = -1

type port struct {
	Port
	buffer signal.Float64
	// incoming connection of input port.
	connection ConnectionID
	// outgoing connections of output port.
	outgoing []ConnectionID
}

func (p *port) allocate(blockSize int) {
	p.buffer = signal.EmptyFloat64(p.Type.Channels(), blockSize)
}

func (p *port) connected() bool {
	if p.Direction == In {
		return p.connection != noConnection
	}
	return len(p.outgoing) > 0
}
