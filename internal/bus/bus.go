// Package bus fans contact state changes out to in-process listeners such as
// SSE streams and the NATS forwarder.
package bus

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/capitalize-ai/stylemirror/internal/model"
)

// Bus is an in-process publish/subscribe bus with event-type prefix filtering.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	next    int
	dropped atomic.Int64
}

type subscription struct {
	prefix string
	ch     chan model.ContactEvent
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Type.
func (b *Bus) Publish(evt model.ContactEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(string(evt.Type), sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of events whose type starts with prefix and a
// function that unsubscribes and closes the channel. The empty prefix
// matches everything.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan model.ContactEvent, func()) {
	ch := make(chan model.ContactEvent, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{prefix: prefix, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
