// Package kafka implements the message bus on Kafka (or Redpanda) with
// franz-go. One producer client is shared; each Subscribe call joins the
// configured consumer group with its own client.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"actiongate/internal/platform/bus"
)

type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string
}

type Bus struct {
	cfg      Config
	producer *kgo.Client
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Bus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	producer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID(cfg)),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Bus{cfg: cfg, producer: producer, logger: logger}, nil
}

// EnsureTopics creates topics that do not exist yet.
func (b *Bus) EnsureTopics(ctx context.Context, partitions int32, replicationFactor int16, topics ...string) error {
	admin := kadm.NewClient(b.producer)
	resp, err := admin.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Publish produces the message synchronously and waits for acknowledgement.
func (b *Bus) Publish(ctx context.Context, msg *bus.Message) error {
	record := &kgo.Record{
		Topic: msg.Topic,
		Key:   msg.Key,
		Value: msg.Value,
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// Subscribe consumes topics as part of the consumer group until ctx is done.
// Offsets are committed after each polled batch has been handled.
func (b *Bus) Subscribe(ctx context.Context, topics []string, handler bus.Handler) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(b.cfg.Brokers...),
		kgo.ClientID(clientID(b.cfg)),
		kgo.ConsumerGroup(b.cfg.ConsumerGroup),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer client.Close()

	b.logger.Info("kafka consumer started",
		"group", b.cfg.ConsumerGroup,
		"topics", topics,
	)

	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			b.logger.Warn("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			msg := toMessage(r)
			if err := handler.Handle(ctx, msg); err != nil {
				b.logger.ErrorContext(ctx, "kafka handler failed",
					"topic", r.Topic,
					"partition", r.Partition,
					"offset", r.Offset,
					"key", string(r.Key),
					"error", err,
				)
			}
		})
		if err := client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			b.logger.Warn("kafka offset commit failed", "error", err)
		}
	}
}

func (b *Bus) Close() error {
	b.producer.Close()
	return nil
}

func toMessage(r *kgo.Record) *bus.Message {
	msg := &bus.Message{
		Topic: r.Topic,
		Key:   r.Key,
		Value: r.Value,
	}
	if len(r.Headers) > 0 {
		msg.Headers = make(map[string]string, len(r.Headers))
		for _, h := range r.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}

func clientID(cfg Config) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "actiongate"
}
