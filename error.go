package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycle is returned when connection would make a node reachable
	// from itself.
	ErrCycle = errors.New("connection creates a cycle")
	// ErrTypeMismatch is returned when port types can't be connected.
	ErrTypeMismatch = errors.New("incompatible port types")
	// ErrDirection is returned when connection is not from output to input.
	ErrDirection = errors.New("connection must go from output to input")
	// ErrInputConnected is returned when input port already has a
	// connection.
	ErrInputConnected = errors.New("input port already connected")
	// ErrSelfLoop is returned when node is connected to itself.
	ErrSelfLoop = errors.New("node connected to itself")
	// ErrProtectedNode is returned for operations that are not allowed on
	// input and output sentinels.
	ErrProtectedNode = errors.New("protected node")
	// ErrNodeNotFound is returned when node doesn't exist.
	ErrNodeNotFound = errors.New("node not found")
	// ErrPortNotFound is returned when port doesn't exist.
	ErrPortNotFound = errors.New("port not found")
	// ErrConnectionNotFound is returned when connection doesn't exist.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrNotPrepared is returned when graph is processed before Prepare.
	ErrNotPrepared = errors.New("graph not prepared")
	// ErrReleased is returned when released graph or node is used.
	ErrReleased = errors.New("released")
	// ErrChannelMismatch is returned when number of channels doesn't match
	// the graph configuration.
	ErrChannelMismatch = errors.New("channel mismatch")
	// ErrBlockSize is returned when block size is out of range.
	ErrBlockSize = errors.New("invalid block size")
	// ErrSampleRate is returned when sample rate is not positive.
	ErrSampleRate = errors.New("invalid sample rate")
)

// ProcessError is returned when node fails to process a block. The rest
// of the block is not processed.
type ProcessError struct {
	Node NodeID
	Err  error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("node %d: %v", e.Node, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ValidationError lists required ports that are not connected.
type ValidationError struct {
	Ports []Port
}

func (e *ValidationError) Error() string {
	s := make([]string, 0, len(e.Ports))
	for _, p := range e.Ports {
		s = append(s, fmt.Sprintf("node %d %s %q", p.Node, p.Direction, p.Name))
	}
	return "unconnected required ports: " + strings.Join(s, ", ")
}

// execErrors wraps errors that might occure when multiple nodes
// are failing.
type execErrors []error

func (e execErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Is checks if any of errors match provided sentinel error.
func (e execErrors) Is(err error) bool {
	for _, se := range e {
		if errors.Is(se, err) {
			return true
		}
	}
	return false
}

// ret returns untyped nil if error is list is empty.
func (e execErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
