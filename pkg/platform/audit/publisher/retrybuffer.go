package publisher

import (
	"sync"

	audit "actiongate/pkg/platform/audit"
)

// retryBuffer is a bounded FIFO of events whose write failed. When full, the
// oldest event is evicted and handed to onEvict so it can be logged.
type retryBuffer struct {
	mu       sync.Mutex
	events   []audit.Event
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int
	onEvict  func(audit.Event)
}

func newRetryBuffer(capacity int, onEvict func(audit.Event)) *retryBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &retryBuffer{
		events:   make([]audit.Event, capacity),
		capacity: capacity,
		onEvict:  onEvict,
	}
}

// Enqueue adds an event, evicting the oldest if necessary.
func (b *retryBuffer) Enqueue(event audit.Event) {
	var evicted *audit.Event

	b.mu.Lock()
	if b.count >= b.capacity {
		old := b.events[b.tail]
		evicted = &old
		b.tail = (b.tail + 1) % b.capacity
		b.count--
	}
	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	b.mu.Unlock()

	if evicted != nil && b.onEvict != nil {
		b.onEvict(*evicted)
	}
}

// PushFront returns an event to the head of the queue after a failed retry so
// ordering is preserved. Evicts from the back when full.
func (b *retryBuffer) PushFront(event audit.Event) {
	var evicted *audit.Event

	b.mu.Lock()
	if b.count >= b.capacity {
		b.head = (b.head - 1 + b.capacity) % b.capacity
		last := b.events[b.head]
		evicted = &last
		b.count--
	}
	b.tail = (b.tail - 1 + b.capacity) % b.capacity
	b.events[b.tail] = event
	b.count++
	b.mu.Unlock()

	if evicted != nil && b.onEvict != nil {
		b.onEvict(*evicted)
	}
}

// DequeueBatch removes up to n events from the front.
func (b *retryBuffer) DequeueBatch(n int) []audit.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	out := make([]audit.Event, n)
	for i := 0; i < n; i++ {
		out[i] = b.events[b.tail]
		b.events[b.tail] = audit.Event{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

func (b *retryBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
