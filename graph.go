package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"pipelined.dev/graph/internal/dag"
	"pipelined.dev/graph/metric"
	"pipelined.dev/graph/mutable"
)

// Graph owns nodes, ports and connections and processes them block by
// block in topological order.
//
// Topology methods are safe for concurrent use and may be called while
// another goroutine runs Process. Prepare and Release must not overlap
// with Process.
//
// Push and Reset don't hold the graph lock while they wait for the
// processing goroutine, so other control calls stay responsive.
type Graph struct {
	uid         string
	name        string
	log         Logger
	metric      bool
	inChannels  int
	outChannels int
	input       NodeID
	output      NodeID

	// control plane, guarded by mu.
	mu          sync.Mutex
	nodes       []*entry
	ports       []*port
	connections []*Connection
	order       []NodeID
	prepared    bool
	sampleRate  float64
	blockSize   int
	generation  uint64
	retired     []retiree
	pusher      mutable.Pusher
	listenerID  int

	dirty       atomic.Bool
	released    atomic.Bool
	schedule    atomic.Pointer[schedule]
	adopted     atomic.Uint64
	destination mutable.Destination

	// pushing serialises delivery of staged batches.
	pushing chan struct{}
	life    context.Context
	kill    context.CancelFunc

	// owned by the processing goroutine.
	current *schedule
	pending mutable.Mutations
}

// retiree is a removed node that might still be referenced by the
// schedule used by the processing goroutine.
type retiree struct {
	*entry
	after uint64
}

// New creates a graph with input and output sentinels.
func New(options ...Option) (*Graph, error) {
	g := &Graph{
		uid:         newUID(),
		log:         defaultLogger,
		inChannels:  2,
		outChannels: 2,
		pusher:      mutable.NewPusher(),
		destination: mutable.NewDestination(),
		pushing:     make(chan struct{}, 1),
	}
	g.life, g.kill = context.WithCancel(context.Background())
	for _, option := range options {
		if err := option(g); err != nil {
			return nil, err
		}
	}
	g.input = g.add(sentinel{
		kind: KindInput,
		port: PortSpec{Name: "in", Type: portType(g.inChannels), Optional: true},
	}, true)
	g.output = g.add(sentinel{
		kind: KindOutput,
		port: PortSpec{Name: "out", Type: portType(g.outChannels)},
	}, true)
	g.dirty.Store(true)
	return g, nil
}

// UID returns unique id of the graph.
func (g *Graph) UID() string {
	return g.uid
}

// Name returns name of the graph.
func (g *Graph) Name() string {
	return g.name
}

// Input returns id of the input sentinel.
func (g *Graph) Input() NodeID {
	return g.input
}

// Output returns id of the output sentinel.
func (g *Graph) Output() NodeID {
	return g.output
}

// Channels returns number of input and output channels.
func (g *Graph) Channels() (in, out int) {
	return g.inChannels, g.outChannels
}

// add registers the node and its ports without any checks.
func (g *Graph) add(n Node, protected bool) NodeID {
	e := &entry{
		id:        NodeID(len(g.nodes)),
		node:      n,
		protected: protected,
		ctx:       mutable.Mutable(),
		listeners: make(map[int]Listener),
	}
	e.inputs = g.addPorts(e.id, In, n.Inputs())
	e.outputs = g.addPorts(e.id, Out, n.Outputs())
	g.nodes = append(g.nodes, e)
	g.pusher.AddDestination(e.ctx, g.destination)
	return e.id
}

func (g *Graph) addPorts(id NodeID, d Direction, specs []PortSpec) []PortID {
	ids := make([]PortID, 0, len(specs))
	for i, spec := range specs {
		p := &port{
			Port: Port{
				ID:        PortID(len(g.ports)),
				Name:      spec.Name,
				Direction: d,
				Type:      spec.Type,
				Node:      id,
				Index:     i,
				Optional:  spec.Optional,
			},
			connection: noConnection,
		}
		if g.prepared {
			p.allocate(g.blockSize)
		}
		g.ports = append(g.ports, p)
		ids = append(ids, p.ID)
	}
	return ids
}

// AddNode adds node to the graph. If graph is prepared, node is prepared
// before it's added.
func (g *Graph) AddNode(n Node) (NodeID, error) {
	if n == nil {
		return 0, errors.New("node is nil")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released.Load() {
		return 0, ErrReleased
	}
	g.collect()
	if g.prepared {
		if err := n.Prepare(g.sampleRate, g.blockSize); err != nil {
			return 0, fmt.Errorf("prepare %v node: %w", n.Kind(), err)
		}
	}
	id := g.add(n, false)
	if g.prepared {
		e := g.nodes[id]
		e.state = prepared
		if g.metric {
			e.measure = metric.Meter(n, g.sampleRate)()
		}
	}
	g.dirty.Store(true)
	g.log.Debug(fmt.Sprintf("graph %s: added %v node %d", g.uid, n.Kind(), id))
	return id, nil
}

// RemoveNode removes node and every connection that touches it. If graph
// is prepared, node is released by the first control call made after the
// processing goroutine stops using it.
func (g *Graph) RemoveNode(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released.Load() {
		return ErrReleased
	}
	e, err := g.entry(id)
	if err != nil {
		return err
	}
	if e.protected {
		return fmt.Errorf("remove node %d: %w", id, ErrProtectedNode)
	}
	for _, pid := range append(append([]PortID{}, e.inputs...), e.outputs...) {
		p := g.ports[pid]
		if p.connection != noConnection {
			g.disconnect(g.connections[p.connection])
		}
		for len(p.outgoing) > 0 {
			g.disconnect(g.connections[p.outgoing[0]])
		}
		g.ports[pid] = nil
	}
	g.nodes[id] = nil
	g.pusher.RemoveDestination(e.ctx)
	g.dirty.Store(true)
	g.log.Debug(fmt.Sprintf("graph %s: removed node %d", g.uid, id))
	if !g.prepared {
		return e.release()
	}
	g.retired = append(g.retired, retiree{entry: e, after: g.generation + 1})
	g.collect()
	return nil
}

// collect releases retired nodes that are not referenced by the schedule
// used by the processing goroutine anymore.
func (g *Graph) collect() {
	if len(g.retired) == 0 {
		return
	}
	adopted := g.adopted.Load()
	kept := g.retired[:0]
	for _, r := range g.retired {
		if !g.prepared || adopted >= r.after {
			if err := r.release(); err != nil {
				g.log.Info(fmt.Sprintf("graph %s: release node %d: %v", g.uid, r.id, err))
			}
			continue
		}
		kept = append(kept, r)
	}
	g.retired = kept
}

func (g *Graph) entry(id NodeID) (*entry, error) {
	if id < 0 || int(id) >= len(g.nodes) || g.nodes[id] == nil {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return g.nodes[id], nil
}

// Node returns the node by id.
func (g *Graph) Node(id NodeID) (Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, err := g.entry(id)
	if err != nil {
		return nil, err
	}
	return e.node, nil
}

// Nodes returns ids of all nodes in the order they were added.
func (g *Graph) Nodes() []NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]NodeID, 0, len(g.nodes))
	for _, e := range g.nodes {
		if e != nil {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// Inputs returns input ports of the node.
func (g *Graph) Inputs(id NodeID) ([]PortID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, err := g.entry(id)
	if err != nil {
		return nil, err
	}
	return append([]PortID{}, e.inputs...), nil
}

// Outputs returns output ports of the node.
func (g *Graph) Outputs(id NodeID) ([]PortID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, err := g.entry(id)
	if err != nil {
		return nil, err
	}
	return append([]PortID{}, e.outputs...), nil
}

// SetBypass toggles bypass of the node. It takes effect at the next
// block.
func (g *Graph) SetBypass(id NodeID, bypass bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, err := g.entry(id)
	if err != nil {
		return err
	}
	if e.protected {
		return fmt.Errorf("bypass node %d: %w", id, ErrProtectedNode)
	}
	e.bypass.Store(bypass)
	return nil
}

// Bypassed returns true if node is bypassed.
func (g *Graph) Bypassed(id NodeID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, err := g.entry(id)
	if err != nil {
		return false, err
	}
	return e.bypass.Load(), nil
}

// successors returns nodes connected to outputs of node n.
func (g *Graph) successors(n int) []int {
	e := g.nodes[n]
	var s []int
	for _, pid := range e.outputs {
		for _, cid := range g.ports[pid].outgoing {
			s = append(s, int(g.ports[g.connections[cid].To].Node))
		}
	}
	return s
}

// rebuild recomputes processing order and publishes new schedule if graph
// is prepared. Must be called with mu held.
func (g *Graph) rebuild() error {
	ids := make([]int, 0, len(g.nodes))
	for _, e := range g.nodes {
		if e != nil {
			ids = append(ids, int(e.id))
		}
	}
	order, err := dag.Order(ids, g.successors)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCycle, err)
	}
	g.order = g.order[:0]
	for _, n := range order {
		g.order = append(g.order, NodeID(n))
	}
	if g.prepared {
		g.publish()
	}
	g.dirty.Store(false)
	return nil
}

func (g *Graph) ensureOrder() error {
	if !g.dirty.Load() {
		return nil
	}
	return g.rebuild()
}

// Order returns node ids in processing order: every node precedes all
// nodes connected to its outputs.
func (g *Graph) Order() ([]NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureOrder(); err != nil {
		return nil, err
	}
	g.collect()
	return append([]NodeID{}, g.order...), nil
}

// Validate checks that graph is acyclic and every required port is
// connected.
func (g *Graph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureOrder(); err != nil {
		return err
	}
	g.collect()
	var unconnected []Port
	for _, e := range g.nodes {
		if e == nil {
			continue
		}
		for _, pid := range append(append([]PortID{}, e.inputs...), e.outputs...) {
			p := g.ports[pid]
			if !p.Optional && !p.connected() {
				unconnected = append(unconnected, p.Port)
			}
		}
	}
	if len(unconnected) > 0 {
		return &ValidationError{Ports: unconnected}
	}
	return nil
}

// Latency returns the longest sum of node latencies on any path from input
// to output sentinel. Bypassed nodes don't contribute. It's 0 if output is
// not reachable from input.
func (g *Graph) Latency() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureOrder(); err != nil {
		return 0
	}
	g.collect()
	order := make([]int, len(g.order))
	for i, id := range g.order {
		order[i] = int(id)
	}
	weight := func(n int) int {
		e := g.nodes[n]
		if e.bypass.Load() {
			return 0
		}
		return e.node.Latency()
	}
	l, ok := dag.LongestPath(order, g.successors, weight, int(g.input), int(g.output))
	if !ok {
		return 0
	}
	return l
}

// Prepare prepares every node and allocates port buffers of blockSize
// frames. Graph can be prepared again to change sample rate or block size.
// If any node fails, graph keeps previous buffers and settings.
func (g *Graph) Prepare(sampleRate float64, blockSize int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %v", ErrSampleRate, sampleRate)
	}
	if blockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released.Load() {
		return ErrReleased
	}
	for i, e := range g.nodes {
		if e == nil {
			continue
		}
		if err := e.prepare(sampleRate, blockSize, g.metric); err != nil {
			err = fmt.Errorf("prepare node %d: %w", e.id, err)
			if g.prepared {
				err = errors.Join(err, g.restore(g.nodes[:i]))
			}
			return err
		}
	}
	for _, p := range g.ports {
		if p != nil {
			p.allocate(blockSize)
		}
	}
	g.sampleRate = sampleRate
	g.blockSize = blockSize
	g.prepared = true
	g.log.Debug(fmt.Sprintf("graph %s: prepared sample rate %v block size %d", g.uid, sampleRate, blockSize))
	return g.rebuild()
}

// restore prepares nodes with current settings after failed Prepare.
func (g *Graph) restore(nodes []*entry) error {
	var errs []error
	for _, e := range nodes {
		if e == nil {
			continue
		}
		if err := e.prepare(g.sampleRate, g.blockSize, g.metric); err != nil {
			errs = append(errs, fmt.Errorf("restore node %d: %w", e.id, err))
		}
	}
	return errors.Join(errs...)
}

// Reset clears state of every node. If graph is prepared, nodes are reset
// by the processing goroutine at the next block.
func (g *Graph) Reset(ctx context.Context) error {
	return g.reset(ctx, func() ([]*entry, error) {
		nodes := make([]*entry, 0, len(g.nodes))
		for _, e := range g.nodes {
			if e != nil {
				nodes = append(nodes, e)
			}
		}
		return nodes, nil
	})
}

// ResetNode clears state of a single node.
func (g *Graph) ResetNode(ctx context.Context, id NodeID) error {
	return g.reset(ctx, func() ([]*entry, error) {
		e, err := g.entry(id)
		if err != nil {
			return nil, err
		}
		return []*entry{e}, nil
	})
}

func (g *Graph) reset(ctx context.Context, nodes func() ([]*entry, error)) error {
	b, err := g.stage(func() ([]mutable.Mutation, error) {
		entries, err := nodes()
		if err != nil {
			return nil, err
		}
		if !g.prepared {
			for _, e := range entries {
				e.node.Reset()
			}
			return nil, nil
		}
		ms := make([]mutable.Mutation, 0, len(entries))
		for _, e := range entries {
			ms = append(ms, e.ctx.Mutate(e.node.Reset))
		}
		return ms, nil
	})
	if err != nil || len(b) == 0 {
		return err
	}
	return g.send(ctx, b)
}

// Mutate binds fn to the node. Returned mutation is applied by the
// processing goroutine right before the node is processed, once it's
// pushed with Push.
func (g *Graph) Mutate(id NodeID, fn func()) (mutable.Mutation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, err := g.entry(id)
	if err != nil {
		return mutable.Mutation{}, err
	}
	return e.ctx.Mutate(fn), nil
}

// Push sends mutations to the processing goroutine. If previous batch is
// not received yet, Push blocks until it is, ctx is done or graph is
// released. Mutations that were not delivered are dropped.
func (g *Graph) Push(ctx context.Context, mutations ...mutable.Mutation) error {
	b, err := g.stage(func() ([]mutable.Mutation, error) {
		return mutations, nil
	})
	if err != nil {
		return err
	}
	return g.send(ctx, b)
}

// stage groups mutations by destination under the graph lock.
func (g *Graph) stage(mutations func() ([]mutable.Mutation, error)) (mutable.Batch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released.Load() {
		return nil, ErrReleased
	}
	g.collect()
	ms, err := mutations()
	if err != nil {
		return nil, err
	}
	b, err := g.pusher.Stage(ms...)
	if err != nil {
		if errors.Is(err, mutable.ErrUnknownContext) {
			return nil, fmt.Errorf("push mutations: %w", ErrNodeNotFound)
		}
		return nil, err
	}
	return b, nil
}

// send delivers the batch without holding the graph lock.
func (g *Graph) send(ctx context.Context, b mutable.Batch) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(g.life, func() { cancel(ErrReleased) })
	defer stop()

	select {
	case g.pushing <- struct{}{}:
		defer func() { <-g.pushing }()
	case <-ctx.Done():
		return context.Cause(ctx)
	}
	if g.released.Load() {
		return ErrReleased
	}
	if err := b.Push(ctx); err != nil {
		return context.Cause(ctx)
	}
	return nil
}

// Listen registers listener on the node. Returned function removes the
// listener.
func (g *Graph) Listen(id NodeID, l Listener) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, err := g.entry(id)
	if err != nil {
		return nil, err
	}
	g.listenerID++
	lid := g.listenerID
	e.listeners[lid] = l
	g.dirty.Store(true)
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if _, ok := e.listeners[lid]; ok {
			delete(e.listeners, lid)
			g.dirty.Store(true)
		}
	}, nil
}

// Release releases every node. Pending Push and Reset calls return
// ErrReleased. Graph can't be used after release.
func (g *Graph) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released.Swap(true) {
		return ErrReleased
	}
	g.kill()
	var errs execErrors
	for _, e := range g.nodes {
		if e == nil {
			continue
		}
		if err := e.release(); err != nil {
			errs = append(errs, fmt.Errorf("release node %d: %w", e.id, err))
		}
	}
	for _, r := range g.retired {
		if err := r.release(); err != nil {
			errs = append(errs, fmt.Errorf("release node %d: %w", r.id, err))
		}
	}
	g.retired = nil
	g.schedule.Store(nil)
	g.log.Debug(fmt.Sprintf("graph %s: released", g.uid))
	return errs.ret()
}
