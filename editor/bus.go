package editor

import (
	"sync"

	"github.com/meikuraledutech/eventgraph"
)

// EventType names a graph change published on a Bus.
type EventType string

const (
	NodeAdded     EventType = "node_added"
	NodeUpdated   EventType = "node_updated"
	NodeRemoved   EventType = "node_removed"
	EdgeAdded     EventType = "edge_added"
	EdgeRemoved   EventType = "edge_removed"
	GraphReplaced EventType = "graph_replaced"
)

// Event describes one change. NodeID is set for node events, Edge for edge
// events.
type Event struct {
	Type   EventType
	NodeID string
	Edge   *eventgraph.Edge
}

// Bus fans graph changes out to the components that render or react to
// them. The zero value is ready to use.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = map[int]func(Event){}
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers ev to every subscriber in subscription order. It is
// safe to call on a nil Bus.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for id := 0; id < b.next; id++ {
		if fn, ok := b.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
