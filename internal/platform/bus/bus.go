// Package bus abstracts publish/subscribe by topic so the outbox relay,
// result consumer and policy invalidation do not depend on a broker.
package bus

import (
	"context"
	"log/slog"
)

// Topics used by the service.
const (
	TopicPolicyChanged      = "policy.changed"
	TopicIntegrationResults = "integration.results"
	integrationTopicPrefix  = "integration."
)

// IntegrationTopic returns the topic executed actions for target are relayed to.
func IntegrationTopic(target string) string {
	return integrationTopicPrefix + target
}

// Message is one record on the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Handler processes a delivered message. Returning an error does not block
// the subscription; implementations log it and move on.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// Subscriber delivers messages for topics to handler until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, topics []string, handler Handler) error
}

// Bus is a broker connection that can both publish and subscribe.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Router dispatches messages to topic-specific handlers.
type Router struct {
	handlers map[string]Handler
	fallback Handler
	logger   *slog.Logger
}

// NewRouter creates a topic router with an optional fallback handler.
func NewRouter(logger *slog.Logger, fallback Handler) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[string]Handler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a handler for a specific topic.
func (r *Router) Register(topic string, handler Handler) {
	r.handlers[topic] = handler
}

// Topics lists the registered topics.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	return topics
}

// Handle routes the message to the appropriate topic handler.
func (r *Router) Handle(ctx context.Context, msg *Message) error {
	handler, ok := r.handlers[msg.Topic]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, msg)
		}
		r.logger.Warn("no handler for topic, skipping message",
			"topic", msg.Topic,
			"key", string(msg.Key),
		)
		return nil // commit to avoid redelivery
	}
	return handler.Handle(ctx, msg)
}
