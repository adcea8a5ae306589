// Package nats implements the message bus on NATS core subjects. Topics map
// to subjects one to one; subscriptions join a queue group so replicas share
// the load.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"actiongate/internal/platform/bus"
)

// keyHeader carries the message key, which NATS has no native slot for.
const keyHeader = "X-Message-Key"

type Config struct {
	URL        string
	QueueGroup string
	Name       string
}

type Bus struct {
	conn   *natsgo.Conn
	queue  string
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Bus, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats: url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "actiongate"
	}
	conn, err := natsgo.Connect(cfg.URL,
		natsgo.Name(name),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{conn: conn, queue: cfg.QueueGroup, logger: logger}, nil
}

func (b *Bus) Publish(ctx context.Context, msg *bus.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := natsgo.NewMsg(msg.Topic)
	out.Data = msg.Value
	if len(msg.Key) > 0 {
		out.Header.Set(keyHeader, string(msg.Key))
	}
	for k, v := range msg.Headers {
		out.Header.Set(k, v)
	}
	if err := b.conn.PublishMsg(out); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}
	return nil
}

// Subscribe attaches a queue subscription per topic and blocks until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, topics []string, handler bus.Handler) error {
	subs := make([]*natsgo.Subscription, 0, len(topics))
	defer func() {
		for _, s := range subs {
			_ = s.Drain()
		}
	}()

	for _, topic := range topics {
		sub, err := b.conn.QueueSubscribe(topic, b.queue, func(m *natsgo.Msg) {
			msg := toMessage(m)
			if err := handler.Handle(ctx, msg); err != nil {
				b.logger.ErrorContext(ctx, "nats handler failed",
					"topic", m.Subject,
					"key", string(msg.Key),
					"error", err,
				)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}

	b.logger.Info("nats subscriber started", "queue", b.queue, "topics", topics)
	<-ctx.Done()
	return nil
}

func (b *Bus) Close() error {
	return b.conn.Drain()
}

func toMessage(m *natsgo.Msg) *bus.Message {
	msg := &bus.Message{Topic: m.Subject, Value: m.Data}
	if len(m.Header) > 0 {
		msg.Headers = make(map[string]string, len(m.Header))
		for k := range m.Header {
			if k == keyHeader {
				msg.Key = []byte(m.Header.Get(k))
				continue
			}
			msg.Headers[k] = m.Header.Get(k)
		}
	}
	return msg
}
