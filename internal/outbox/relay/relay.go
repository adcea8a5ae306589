// Package relay publishes outbox messages to the message bus. Delivery is at
// least once: a published message is published again when no result arrives
// before its redelivery deadline, and consumers de-duplicate on the event key.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"actiongate/internal/outbox/models"
	"actiongate/internal/outbox/service"
	"actiongate/internal/platform/bus"
	audit "actiongate/pkg/platform/audit"
	"actiongate/pkg/platform/circuit"
	"actiongate/pkg/requestcontext"
)

// Claimer leases deliverable messages.
type Claimer interface {
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit, maxRetries int) ([]*models.Message, error)
}

// Recorder writes delivery bookkeeping back to the outbox.
type Recorder interface {
	UpdateResult(ctx context.Context, in service.ResultInput) (*service.ResultOutcome, error)
	MarkDispatched(ctx context.Context, m *models.Message, redeliverAfter time.Duration) error
	MaxRetries() int
}

const relayActorID = "outbox-relay"

type Config struct {
	Interval       time.Duration
	BatchSize      int
	Lease          time.Duration
	RedeliverAfter time.Duration
	Concurrency    int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Lease <= 0 {
		c.Lease = 30 * time.Second
	}
	if c.RedeliverAfter <= 0 {
		c.RedeliverAfter = 5 * time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	return c
}

type Relay struct {
	claimer   Claimer
	recorder  Recorder
	publisher bus.Publisher
	cfg       Config
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

func New(claimer Claimer, recorder Recorder, publisher bus.Publisher, cfg Config, opts ...Option) *Relay {
	r := &Relay{
		claimer:   claimer,
		recorder:  recorder,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		logger:    slog.Default(),
		now:       time.Now,
		breakers:  make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// RelayOnce claims one batch and publishes it. It returns how many messages
// were published successfully.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	now := r.now()
	batch, err := r.claimer.Claim(ctx, now, r.cfg.Lease, r.cfg.BatchSize, r.recorder.MaxRetries())
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}
	r.metrics.observeBatch(len(batch))

	var (
		mu        sync.Mutex
		published int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, m := range batch {
		g.Go(func() error {
			if r.deliver(requestcontext.WithTime(gctx, r.now()), m) {
				mu.Lock()
				published++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return published, nil
}

func (r *Relay) deliver(ctx context.Context, m *models.Message) bool {
	breaker := r.breaker(m.TargetSystem)
	if !breaker.Allow() {
		// the claim lease keeps the message hidden until the breaker cools down
		r.metrics.incSkipped(m.TargetSystem)
		return false
	}

	value, err := json.Marshal(models.Envelope{
		OutboxID:  m.ID.String(),
		TenantID:  m.TenantID.String(),
		EventType: m.EventType,
		EventKey:  m.EventKey,
		Payload:   m.Payload,
	})
	if err != nil {
		r.recordFailure(ctx, m, "encode envelope: "+err.Error())
		return false
	}

	err = r.publisher.Publish(ctx, &bus.Message{
		Topic: bus.IntegrationTopic(m.TargetSystem),
		Key:   []byte(m.EventKey),
		Value: value,
		Headers: map[string]string{
			"outbox_id":  m.ID.String(),
			"tenant_id":  m.TenantID.String(),
			"event_type": m.EventType,
		},
	})
	if err != nil {
		if _, change := breaker.RecordFailure(); change.Opened {
			r.logger.WarnContext(ctx, "outbox target circuit opened", "target_system", m.TargetSystem)
		}
		r.metrics.incPublished(m.TargetSystem, false)
		r.recordFailure(ctx, m, err.Error())
		return false
	}
	if _, change := breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "outbox target circuit closed", "target_system", m.TargetSystem)
	}
	r.metrics.incPublished(m.TargetSystem, true)

	if err := r.recorder.MarkDispatched(ctx, m, r.cfg.RedeliverAfter); err != nil {
		// the message went out; a lost bookkeeping write only means an
		// earlier redelivery, which consumers absorb by event key
		r.logger.WarnContext(ctx, "failed to mark outbox message dispatched",
			"outbox_id", m.ID.String(),
			"error", err,
		)
	}
	return true
}

func (r *Relay) recordFailure(ctx context.Context, m *models.Message, reason string) {
	r.logger.WarnContext(ctx, "outbox publish failed",
		"tenant_id", m.TenantID.String(),
		"outbox_id", m.ID.String(),
		"target_system", m.TargetSystem,
		"retry_count", m.RetryCount,
		"error", reason,
	)
	_, err := r.recorder.UpdateResult(ctx, service.ResultInput{
		TenantID:      m.TenantID,
		OutboxID:      m.ID,
		Status:        models.StatusFailed,
		ResultMessage: reason,
		Actor:         service.Actor{Type: audit.ActorSystem, ID: relayActorID, Channel: audit.ChannelRelay},
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to record outbox publish failure",
			"outbox_id", m.ID.String(),
			"error", err,
		)
	}
}

func (r *Relay) breaker(target string) *circuit.Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[target]
	if !ok {
		b = circuit.New("outbox_"+target,
			circuit.WithFailureThreshold(5),
			circuit.WithCooldown(r.cfg.Lease),
			circuit.WithClock(r.now),
		)
		r.breakers[target] = b
	}
	return b
}
