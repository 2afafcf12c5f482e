package graph

import (
	"fmt"
	"slices"

	"pipelined.dev/graph/internal/dag"
)

// ConnectionID identifies a connection within a graph.
type ConnectionID int

// Connection is a directed edge from output port to input port.
type Connection struct {
	ID   ConnectionID
	From PortID
	To   PortID
}

func (g *Graph) port(id PortID) (*port, error) {
	if id < 0 || int(id) >= len(g.ports) || g.ports[id] == nil {
		return nil, fmt.Errorf("%w: %d", ErrPortNotFound, id)
	}
	return g.ports[id], nil
}

// Port returns port by id.
func (g *Graph) Port(id PortID) (Port, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, err := g.port(id)
	if err != nil {
		return Port{}, err
	}
	return p.Port, nil
}

// Connect connects output port from to input port to. Graph is left
// unchanged if any check fails.
func (g *Graph) Connect(from, to PortID) (ConnectionID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released.Load() {
		return 0, ErrReleased
	}
	src, err := g.port(from)
	if err != nil {
		return 0, err
	}
	dst, err := g.port(to)
	if err != nil {
		return 0, err
	}
	if src.Direction != Out || dst.Direction != In {
		return 0, fmt.Errorf("connect %d to %d: %w", from, to, ErrDirection)
	}
	if src.Node == dst.Node {
		return 0, fmt.Errorf("connect node %d: %w", src.Node, ErrSelfLoop)
	}
	if !compatible(src.Type, dst.Type) {
		return 0, fmt.Errorf("connect %v to %v: %w", src.Type, dst.Type, ErrTypeMismatch)
	}
	if dst.connection != noConnection {
		return 0, fmt.Errorf("connect to port %d: %w", to, ErrInputConnected)
	}
	if dag.Reachable(int(dst.Node), int(src.Node), g.successors) {
		return 0, fmt.Errorf("connect node %d to %d: %w", src.Node, dst.Node, ErrCycle)
	}

	c := &Connection{
		ID:   ConnectionID(len(g.connections)),
		From: from,
		To:   to,
	}
	g.connections = append(g.connections, c)
	src.outgoing = append(src.outgoing, c.ID)
	dst.connection = c.ID
	g.dirty.Store(true)
	g.log.Debug(fmt.Sprintf("graph %s: connected %d.%s to %d.%s", g.uid, src.Node, src.Name, dst.Node, dst.Name))
	return c.ID, nil
}

// Disconnect removes the connection.
func (g *Graph) Disconnect(id ConnectionID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released.Load() {
		return ErrReleased
	}
	c, err := g.connection(id)
	if err != nil {
		return err
	}
	g.disconnect(c)
	g.dirty.Store(true)
	return nil
}

func (g *Graph) disconnect(c *Connection) {
	src, dst := g.ports[c.From], g.ports[c.To]
	src.outgoing = slices.DeleteFunc(src.outgoing, func(id ConnectionID) bool {
		return id == c.ID
	})
	dst.connection = noConnection
	g.connections[c.ID] = nil
}

func (g *Graph) connection(id ConnectionID) (*Connection, error) {
	if id < 0 || int(id) >= len(g.connections) || g.connections[id] == nil {
		return nil, fmt.Errorf("%w: %d", ErrConnectionNotFound, id)
	}
	return g.connections[id], nil
}

// Connection returns connection by id.
func (g *Graph) Connection(id ConnectionID) (Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, err := g.connection(id)
	if err != nil {
		return Connection{}, err
	}
	return *c, nil
}

// ConnectionTo returns connection of the input port.
func (g *Graph) ConnectionTo(to PortID) (Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, err := g.port(to)
	if err != nil {
		return Connection{}, err
	}
	if p.Direction != In || p.connection == noConnection {
		return Connection{}, fmt.Errorf("port %d: %w", to, ErrConnectionNotFound)
	}
	return *g.connections[p.connection], nil
}

// Connections returns all connections ordered by id.
func (g *Graph) Connections() []Connection {
	g.mu.Lock()
	defer g.mu.Unlock()
	cs := make([]Connection, 0, len(g.connections))
	for _, c := range g.connections {
		if c != nil {
			cs = append(cs, *c)
		}
	}
	return cs
}
