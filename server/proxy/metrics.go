package proxy

import (
	"errors"
	"sync"
)

// Counters holds the counters of a single channel and action pair.
type Counters struct {
	Sent      uint64
	Received  uint64
	Rejected  uint64
	Oversized uint64
}

type metricKey struct {
	channel, action string
}

// Metrics tracks per-channel and per-action message counters for
// observability. A nil *Metrics discards every update.
type Metrics struct {
	mu       sync.Mutex
	counters map[metricKey]*Counters
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[metricKey]*Counters)}
}

func (m *Metrics) update(channel, action string, f func(c *Counters)) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metricKey{channel: channel, action: action}
	c, ok := m.counters[key]
	if !ok {
		c = &Counters{}
		m.counters[key] = c
	}
	f(c)
}

// IncSent increments the sent counter of an action.
func (m *Metrics) IncSent(channel, action string) {
	m.update(channel, action, func(c *Counters) { c.Sent++ })
}

// IncReceived increments the received counter of an action.
func (m *Metrics) IncReceived(channel, action string) {
	m.update(channel, action, func(c *Counters) { c.Received++ })
}

// IncRejected increments the rejected counter of an action. Messages are
// rejected when they fail to encode, decode or be handled.
func (m *Metrics) IncRejected(channel, action string) {
	m.update(channel, action, func(c *Counters) { c.Rejected++ })
}

// IncOversized increments the oversized counter of an action.
func (m *Metrics) IncOversized(channel, action string) {
	m.update(channel, action, func(c *Counters) { c.Oversized++ })
}

func (m *Metrics) record(channel, action string, err error) {
	if errors.Is(err, ErrOversized) {
		m.IncOversized(channel, action)
		return
	}
	m.IncRejected(channel, action)
}

// Snapshot returns a copy of the counters of the channel and action passed.
func (m *Metrics) Snapshot(channel, action string) Counters {
	if m == nil {
		return Counters{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[metricKey{channel: channel, action: action}]; ok {
		return *c
	}
	return Counters{}
}

// Channel sums the counters of every action of a channel.
func (m *Metrics) Channel(channel string) Counters {
	if m == nil {
		return Counters{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var total Counters
	for key, c := range m.counters {
		if key.channel != channel {
			continue
		}
		total.Sent += c.Sent
		total.Received += c.Received
		total.Rejected += c.Rejected
		total.Oversized += c.Oversized
	}
	return total
}
