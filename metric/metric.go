// Package metric exposes per-node processing counters through expvar and
// provides a peak level listener.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/graph/signal"
)

const nodesLabel = "graph.nodes"

const (
	// BlockCounter measures number of processed blocks.
	BlockCounter = "Blocks"
	// SampleCounter measures number of samples.
	SampleCounter = "Samples"
	// LatencyCounter measures latency between processing calls.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of signal.
	DurationCounter = "Duration"
	// NodeCounter counts number of metered nodes.
	NodeCounter = "Nodes"
)

var (
	nodes = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		BlockCounter,
		SampleCounter,
		LatencyCounter,
		DurationCounter,
		NodeCounter,
	}
)

// Get metrics values for provided node type.
func Get(node interface{}) map[string]string {
	return getCounters(getType(node))
}

// GetAll returns counters for all measured node types.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	nodes.Lock()
	defer nodes.Unlock()
	for nodeType := range nodes.m {
		m[nodeType] = getCounters(nodeType)
	}
	return m
}

func getCounters(nodeType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(nodeType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// ResetFunc returns new Measure closure. This closure is needed to postpone metrics
// capture until node is actually processing.
type ResetFunc func() MeasureFunc

// MeasureFunc captures metrics when block is processed. It doesn't
// allocate and can be called by the processing goroutine.
type MeasureFunc func(frames int64)

// Meter creates new meter closure to capture node counters. Counters are
// aggregated by the dynamic type of the node.
func Meter(node interface{}, sampleRate float64) ResetFunc {
	t := getType(node)
	metric := nodes.get(t)
	metric.nodes.Add(1)
	return func() MeasureFunc {
		calledAt := time.Now()
		var (
			blockSize     int64
			blockDuration time.Duration
		)
		return func(s int64) {
			metric.latency.set(time.Since(calledAt))
			metric.blocks.Add(1)
			metric.samples.Add(s)
			// recalculate block duration only when block size has changed
			if blockSize != s {
				blockSize = s
				blockDuration = signal.DurationOf(sampleRate, s)
			}
			metric.duration.add(blockDuration)
			calledAt = time.Now()
		}
	}
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(nodeType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[nodeType]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(nodeType)
	m.m[nodeType] = metric
	return metric
}

type metric struct {
	nodes    *expvar.Int
	blocks   *expvar.Int
	samples  *expvar.Int
	latency  *duration
	duration *duration
}

func newMetric(nodeType string) metric {
	m := metric{
		nodes:    expvar.NewInt(key(nodeType, NodeCounter)),
		blocks:   expvar.NewInt(key(nodeType, BlockCounter)),
		samples:  expvar.NewInt(key(nodeType, SampleCounter)),
		latency:  &duration{},
		duration: &duration{},
	}
	expvar.Publish(key(nodeType, LatencyCounter), m.latency)
	expvar.Publish(key(nodeType, DurationCounter), m.duration)
	return m
}

func key(nodeType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", nodesLabel, nodeType, counter)
}

func getType(node interface{}) string {
	rv := reflect.ValueOf(node)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d atomic.Int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(v.d.Load()).String())
}

func (v *duration) add(delta time.Duration) {
	v.d.Add(int64(delta))
}

func (v *duration) set(value time.Duration) {
	v.d.Store(int64(value))
}
