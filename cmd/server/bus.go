package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"actiongate/internal/platform/bus"
	"actiongate/internal/platform/bus/kafka"
	"actiongate/internal/platform/bus/memory"
	"actiongate/internal/platform/bus/nats"
	"actiongate/internal/platform/config"
)

// buses separates the two delivery modes the process needs. shared is one
// consumer group for the whole deployment (integration results are applied
// once); broadcast reaches every replica (policy invalidation).
type buses struct {
	shared    bus.Bus
	broadcast bus.Subscriber
	closers   []func() error
}

func (b *buses) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openBuses(ctx context.Context, cfg config.Config, log *slog.Logger) (*buses, error) {
	instance := uuid.NewString()

	switch cfg.Bus.Driver {
	case "kafka":
		shared, err := kafka.New(kafka.Config{
			Brokers:       cfg.Bus.Brokers,
			ConsumerGroup: cfg.Bus.ConsumerGroup,
			ClientID:      cfg.Bus.ClientID,
		}, log)
		if err != nil {
			return nil, err
		}
		topics := []string{
			bus.TopicPolicyChanged,
			bus.TopicIntegrationResults,
			bus.IntegrationTopic(cfg.Relay.TargetSystem),
		}
		if err := shared.EnsureTopics(ctx, cfg.Bus.Partitions, cfg.Bus.ReplicationFactor, topics...); err != nil {
			_ = shared.Close()
			return nil, err
		}
		broadcast, err := kafka.New(kafka.Config{
			Brokers:       cfg.Bus.Brokers,
			ConsumerGroup: fmt.Sprintf("%s-policy-%s", cfg.Bus.ConsumerGroup, instance),
			ClientID:      cfg.Bus.ClientID,
		}, log)
		if err != nil {
			_ = shared.Close()
			return nil, err
		}
		return &buses{shared: shared, broadcast: broadcast, closers: []func() error{shared.Close, broadcast.Close}}, nil

	case "nats":
		shared, err := nats.New(nats.Config{
			URL:        cfg.Bus.NATSURL,
			QueueGroup: cfg.Bus.ConsumerGroup,
			Name:       cfg.Bus.ClientID,
		}, log)
		if err != nil {
			return nil, err
		}
		// an empty queue group is a plain subscription: every replica receives
		broadcast, err := nats.New(nats.Config{
			URL:  cfg.Bus.NATSURL,
			Name: cfg.Bus.ClientID + "-" + instance,
		}, log)
		if err != nil {
			_ = shared.Close()
			return nil, err
		}
		return &buses{shared: shared, broadcast: broadcast, closers: []func() error{shared.Close, broadcast.Close}}, nil

	default:
		b := memory.New(log)
		return &buses{shared: b, broadcast: b, closers: []func() error{b.Close}}, nil
	}
}
