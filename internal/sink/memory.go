package sink

import (
	"context"
	"sync"
)

// Memory keeps every accepted batch in memory. Useful for embedding and tests.
type Memory struct {
	mu      sync.Mutex
	batches []Batch
	notify  chan struct{}
}

func NewMemory() *Memory {
	return &Memory{notify: make(chan struct{}, 1)}
}

func (m *Memory) Accept(_ context.Context, b Batch) error {
	m.mu.Lock()
	m.batches = append(m.batches, b)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Batches returns a copy of the accepted batches in arrival order.
func (m *Memory) Batches() []Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Batch(nil), m.batches...)
}

// Len returns the number of accepted batches.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// Records returns every accepted record body in arrival order.
func (m *Memory) Records() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, b := range m.batches {
		for _, r := range b.Records {
			out = append(out, string(r.Body))
		}
	}
	return out
}

// Notify is signalled (non-blocking, coalesced) after each accepted batch.
func (m *Memory) Notify() <-chan struct{} { return m.notify }
