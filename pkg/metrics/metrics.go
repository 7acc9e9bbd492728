// Package metrics defines the server metrics interface and two
// implementations: a no-op collector (zero overhead when metrics are off)
// and an atomic in-memory collector used by the periodic metrics log and by
// tests asserting on dispatcher behavior.
package metrics

import "sync/atomic"

// ServerMetrics receives counters from the dispatcher and the per-connection
// state machine. Implementations must be safe for concurrent use.
type ServerMetrics interface {
	// RecordConnectionAccepted is called when a connection is enqueued.
	RecordConnectionAccepted()

	// RecordConnectionRejected is called when a connection is shed with a
	// 503 (queue full or accept rate exceeded).
	RecordConnectionRejected()

	// RecordConnectionClosed is called when a worker finishes a connection.
	RecordConnectionClosed()

	// RecordRequest is called once per response with the status code sent.
	RecordRequest(status int)
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) RecordConnectionAccepted() {}
func (Noop) RecordConnectionRejected() {}
func (Noop) RecordConnectionClosed()   {}
func (Noop) RecordRequest(status int)  {}

// Counters is an in-memory ServerMetrics backed by atomics.
type Counters struct {
	accepted atomic.Int64
	rejected atomic.Int64
	closed   atomic.Int64

	requests  atomic.Int64
	responses [6]atomic.Int64 // indexed by status/100
}

// NewCounters returns an empty collector.
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) RecordConnectionAccepted() { c.accepted.Add(1) }
func (c *Counters) RecordConnectionRejected() { c.rejected.Add(1) }
func (c *Counters) RecordConnectionClosed()   { c.closed.Add(1) }

func (c *Counters) RecordRequest(status int) {
	c.requests.Add(1)
	if class := status / 100; class >= 1 && class <= 5 {
		c.responses[class].Add(1)
	}
}

// Accepted returns the number of connections handed to the queue.
func (c *Counters) Accepted() int64 { return c.accepted.Load() }

// Rejected returns the number of connections shed with a 503.
func (c *Counters) Rejected() int64 { return c.rejected.Load() }

// Closed returns the number of connections fully served.
func (c *Counters) Closed() int64 { return c.closed.Load() }

// Requests returns the total number of responses sent.
func (c *Counters) Requests() int64 { return c.requests.Load() }

// ResponsesByClass returns the response count for a status class (2 -> 2xx).
func (c *Counters) ResponsesByClass(class int) int64 {
	if class < 1 || class > 5 {
		return 0
	}
	return c.responses[class].Load()
}
