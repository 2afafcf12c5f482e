// Package graph allows to build and process real-time audio signal graphs.
//
// # Concept
//
// A graph is a set of nodes connected by typed ports. Every node has input
// and output ports of one of the following types:
//
//   - Mono: single channel of audio
//   - Stereo: two channels of audio
//   - Control: single channel scalar stream
//   - Trigger: single channel gate stream
//
// A connection always goes from an output port to an input port. An input
// port accepts at most one connection, an output port can feed any number of
// inputs. Connections that would create a cycle are rejected, so the graph
// is always a directed acyclic graph. Two protected sentinel nodes, input
// and output, are created with every graph:
//
//	g, err := graph.New(graph.WithChannels(1, 2))
//
// # Nodes
//
// Node is anything that implements Node interface. The package effect wraps
// simple effects into nodes, packages split and mixer provide utility nodes
// to create parallel paths:
//
//	id, err := g.AddNode(effect.New(effects.NewGain(-6)))
//	out, _ := g.Outputs(g.Input())
//	in, _ := g.Inputs(id)
//	c, err := g.Connect(out[0], in[0])
//
// Nodes may implement optional ChannelConfigurer and Bypasser interfaces to
// take part in channel resolution and bypass.
//
// # Processing
//
// Once graph is built, it is prepared with sample rate and maximum block
// size. Then Process is called by the audio goroutine for every block:
//
//	err := g.Prepare(44100, 512)
//	err = g.Process(in, out, 512)
//
// Process does not allocate and does not block. Edits made by control
// goroutines are picked up at the start of the next block. Nodes removed
// while the graph is running are released by the first control call made
// after the audio goroutine stops using them.
//
// # Mutations
//
// Parameters of nodes are changed by mutations. Mutation is executed by the
// audio goroutine right before the node processes the next block:
//
//	m, err := g.Mutate(id, func() { gain.SetValue(-12) })
//	err = g.Push(ctx, m)
//
// Push waits while the previous batch is not received. It doesn't block
// other control calls, and mutations it failed to deliver are dropped.
//
// For real-time hosting and offline rendering refer to engine package
// documentation.
package graph
