// Package dag provides ordering and reachability for directed graphs
// whose nodes are dense integer indices.
package dag

import "errors"

// ErrCycle is returned when ordering finds a node reachable from itself.
var ErrCycle = errors.New("graph contains a cycle")

// Successors returns nodes that directly depend on node n.
type Successors func(n int) []int

const (
	unvisited = iota
	visiting
	done
)

// Order returns nodes in topological order: every node precedes all of its
// successors. Nodes are visited depth-first, each is appended on exit and
// the result is reversed. Nodes are traversed in the provided order, so the
// result is deterministic.
func Order(nodes []int, successors Successors) ([]int, error) {
	state := make(map[int]int, len(nodes))
	order := make([]int, 0, len(nodes))
	var visit func(n int) error
	visit = func(n int) error {
		switch state[n] {
		case visiting:
			return ErrCycle
		case done:
			return nil
		}
		state[n] = visiting
		for _, s := range successors(n) {
			if err := visit(s); err != nil {
				return err
			}
		}
		state[n] = done
		order = append(order, n)
		return nil
	}
	for _, n := range nodes {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// Reachable returns true if to can be reached from from. Every node is
// reachable from itself.
func Reachable(from, to int, successors Successors) bool {
	visited := make(map[int]struct{})
	var visit func(n int) bool
	visit = func(n int) bool {
		if n == to {
			return true
		}
		if _, ok := visited[n]; ok {
			return false
		}
		visited[n] = struct{}{}
		for _, s := range successors(n) {
			if visit(s) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

// LongestPath returns the maximum sum of weights along any path from
// source to sink, counting both ends. Order must be topological. The
// second result is false if sink is not reachable from source.
func LongestPath(order []int, successors Successors, weight func(int) int, source, sink int) (int, bool) {
	dist := make(map[int]int, len(order))
	dist[source] = weight(source)
	for _, n := range order {
		d, ok := dist[n]
		if !ok {
			continue
		}
		for _, s := range successors(n) {
			candidate := d + weight(s)
			if current, ok := dist[s]; !ok || candidate > current {
				dist[s] = candidate
			}
		}
	}
	d, ok := dist[sink]
	return d, ok
}
