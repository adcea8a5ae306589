// Package memory is an in-process bus used in development and tests.
// Publish delivers synchronously to every current subscriber of the topic.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"actiongate/internal/platform/bus"
)

type subscription struct {
	topics  map[string]struct{}
	handler bus.Handler
}

type Bus struct {
	mu        sync.RWMutex
	subs      map[int]*subscription
	nextID    int
	published []bus.Message
	failNext  error
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[int]*subscription),
		logger: logger,
	}
}

// Publish records the message and hands it to subscribers.
func (b *Bus) Publish(ctx context.Context, msg *bus.Message) error {
	b.mu.Lock()
	if err := b.failNext; err != nil {
		b.failNext = nil
		b.mu.Unlock()
		return err
	}
	b.published = append(b.published, cloneMessage(msg))
	var handlers []bus.Handler
	for _, s := range b.subs {
		if _, ok := s.topics[msg.Topic]; ok {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		delivered := cloneMessage(msg)
		if err := h.Handle(ctx, &delivered); err != nil {
			b.logger.WarnContext(ctx, "bus handler failed",
				"topic", msg.Topic,
				"key", string(msg.Key),
				"error", err,
			)
		}
	}
	return nil
}

// Subscribe blocks until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, topics []string, handler bus.Handler) error {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}

	b.mu.Lock()
	subID := b.nextID
	b.nextID++
	b.subs[subID] = &subscription{topics: set, handler: handler}
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.subs, subID)
	b.mu.Unlock()
	return nil
}

// Subscribed reports whether any subscriber listens on topic.
func (b *Bus) Subscribed(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if _, ok := s.topics[topic]; ok {
			return true
		}
	}
	return false
}

// Published returns messages published on topic, oldest first.
func (b *Bus) Published(topic string) []bus.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []bus.Message
	for _, m := range b.published {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// FailNext makes the next Publish return err.
func (b *Bus) FailNext(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = err
}

func (b *Bus) Close() error { return nil }

func cloneMessage(msg *bus.Message) bus.Message {
	out := bus.Message{
		Topic: msg.Topic,
		Key:   append([]byte(nil), msg.Key...),
		Value: append([]byte(nil), msg.Value...),
	}
	if msg.Headers != nil {
		out.Headers = make(map[string]string, len(msg.Headers))
		for k, v := range msg.Headers {
			out.Headers[k] = v
		}
	}
	return out
}
