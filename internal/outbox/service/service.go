// Package service records integration outbox messages and their delivery
// results. Delivery itself belongs to the relay; this package only keeps the
// status history honest.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"actiongate/internal/outbox/models"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	audit "actiongate/pkg/platform/audit"
	"actiongate/pkg/platform/sentinel"
	"actiongate/pkg/platform/tx"
	"actiongate/pkg/requestcontext"
)

// Store persists outbox messages.
type Store interface {
	Create(ctx context.Context, m *models.Message) error
	Get(ctx context.Context, tenantID id.TenantID, outboxID id.OutboxID) (*models.Message, error)
	Update(ctx context.Context, m *models.Message) error
}

const (
	defaultInitialBackoff = 5 * time.Second
	defaultMaxBackoff     = 10 * time.Minute
	maxResultMessageLen   = 2000
	maxUpdateAttempts     = 3
)

// Actor names who caused an outbox write, for the audit trail.
type Actor struct {
	Type    audit.ActorType
	ID      string
	Channel audit.Channel
}

type EnqueueInput struct {
	TenantID     id.TenantID
	TargetSystem string
	EventType    string
	EventKey     string
	Payload      json.RawMessage
	Actor        Actor
}

func (in EnqueueInput) Validate() error {
	if in.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}
	if strings.TrimSpace(in.TargetSystem) == "" {
		return dErrors.New(dErrors.CodeValidation, "targetSystem is required")
	}
	if strings.TrimSpace(in.EventType) == "" {
		return dErrors.New(dErrors.CodeValidation, "eventType is required")
	}
	if strings.TrimSpace(in.EventKey) == "" {
		return dErrors.New(dErrors.CodeValidation, "eventKey is required")
	}
	if len(in.Payload) > 0 && !json.Valid(in.Payload) {
		return dErrors.New(dErrors.CodeValidation, "payload must be valid JSON")
	}
	return nil
}

type ResultInput struct {
	TenantID      id.TenantID
	OutboxID      id.OutboxID
	Status        models.Status
	ResultMessage string
	Actor         Actor
}

// ResultOutcome is the row after UpdateResult. AlreadyProcessed marks a
// replayed PROCESSED result that changed nothing.
type ResultOutcome struct {
	Message          *models.Message
	AlreadyProcessed bool
}

// Service enqueues outbox messages and applies delivery results.
type Service struct {
	store      Store
	audit      audit.Writer
	logger     *slog.Logger
	metrics    *Metrics
	maxRetries int
	newBackoff func() backoff.BackOff
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRetryPolicy sets how many failed deliveries are retried and the
// exponential backoff between them.
func WithRetryPolicy(maxRetries int, initial, maxInterval time.Duration) Option {
	return func(s *Service) {
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
		s.newBackoff = exponential(initial, maxInterval)
	}
}

func New(store Store, auditor audit.Writer, opts ...Option) *Service {
	s := &Service{
		store:      store,
		audit:      auditor,
		logger:     slog.Default(),
		maxRetries: 5,
		newBackoff: exponential(defaultInitialBackoff, defaultMaxBackoff),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxRetries is the number of failed deliveries after which a message is
// no longer claimed.
func (s *Service) MaxRetries() int { return s.maxRetries }

// Enqueue creates a PENDING message. Each call creates a new row; consumers
// de-duplicate on EventKey. When ctx carries a transaction the row joins it
// and the audit event is written only after commit.
func (s *Service) Enqueue(ctx context.Context, in EnqueueInput) (*models.Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	payload := in.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	m := &models.Message{
		ID:           id.OutboxID(uuid.New()),
		TenantID:     in.TenantID,
		TargetSystem: strings.TrimSpace(in.TargetSystem),
		EventType:    strings.TrimSpace(in.EventType),
		EventKey:     strings.TrimSpace(in.EventKey),
		Payload:      payload,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue outbox message",
			"tenant_id", in.TenantID.String(),
			"target_system", m.TargetSystem,
			"event_key", m.EventKey,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue outbox message")
	}

	tx.AfterCommit(ctx, func() {
		s.metrics.IncEnqueued(m.TargetSystem)
		s.audit.Log(ctx, audit.Event{
			TenantID:     m.TenantID,
			Type:         audit.EventOutboxEnqueue,
			ResourceType: audit.ResourceOutboxMessage,
			ResourceID:   m.ID.String(),
			ActorType:    in.Actor.Type,
			ActorID:      in.Actor.ID,
			Channel:      in.Actor.Channel,
			Outcome:      audit.OutcomeSuccess,
			After:        audit.MarshalSnapshot(statusSnapshot(m)),
			Evidence: map[string]any{
				"target_system": m.TargetSystem,
				"event_type":    m.EventType,
				"event_key":     m.EventKey,
			},
		})
	})
	return m, nil
}

// UpdateResult records a delivery result. Unknown ids fail with NotFound and
// touch nothing; a PROCESSED row never changes again.
func (s *Service) UpdateResult(ctx context.Context, in ResultInput) (*ResultOutcome, error) {
	if in.Status != models.StatusProcessed && in.Status != models.StatusFailed {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be PROCESSED or FAILED")
	}
	msg := truncate(in.ResultMessage, maxResultMessageLen)

	for attempt := 1; ; attempt++ {
		cur, err := s.get(ctx, in.TenantID, in.OutboxID)
		if err != nil {
			return nil, err
		}
		before := statusSnapshot(cur)

		if cur.Status == models.StatusProcessed {
			if in.Status == models.StatusProcessed {
				s.metrics.IncReplay()
				s.logResult(ctx, in, cur, before, audit.OutcomeNoop)
				return &ResultOutcome{Message: cur, AlreadyProcessed: true}, nil
			}
			s.logger.WarnContext(ctx, "rejected outbox status regression",
				"tenant_id", in.TenantID.String(),
				"outbox_id", in.OutboxID.String(),
				"requested_status", in.Status,
			)
			return nil, dErrors.New(dErrors.CodeInvalidState, "outbox message is already PROCESSED")
		}
		if !cur.Status.CanTransitionTo(in.Status) {
			return nil, dErrors.New(dErrors.CodeInvalidState,
				"outbox message cannot move from "+string(cur.Status)+" to "+string(in.Status))
		}

		next := s.apply(ctx, cur, in.Status, msg)
		err = s.store.Update(ctx, next)
		if err == nil {
			s.metrics.IncResult(string(next.Status))
			s.logResult(ctx, in, next, before, audit.OutcomeSuccess)
			return &ResultOutcome{Message: next}, nil
		}
		if errors.Is(err, sentinel.ErrConflict) && attempt < maxUpdateAttempts {
			continue
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "outbox message not found")
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "outbox message changed concurrently, retry")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update outbox message")
	}
}

// MarkDispatched records a successful publish and sets the deadline after
// which the relay publishes again if no result has arrived.
func (s *Service) MarkDispatched(ctx context.Context, m *models.Message, redeliverAfter time.Duration) error {
	now := requestcontext.Now(ctx)
	next := m.Clone()
	next.DispatchedAt = &now
	redeliver := now.Add(redeliverAfter)
	next.NextAttemptAt = &redeliver
	next.UpdatedAt = now
	if err := s.store.Update(ctx, next); err != nil {
		return err
	}
	*m = *next
	return nil
}

func (s *Service) Get(ctx context.Context, tenantID id.TenantID, outboxID id.OutboxID) (*models.Message, error) {
	return s.get(ctx, tenantID, outboxID)
}

func (s *Service) get(ctx context.Context, tenantID id.TenantID, outboxID id.OutboxID) (*models.Message, error) {
	m, err := s.store.Get(ctx, tenantID, outboxID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "outbox message not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load outbox message")
	}
	return m, nil
}

func (s *Service) apply(ctx context.Context, cur *models.Message, status models.Status, msg string) *models.Message {
	now := requestcontext.Now(ctx)
	next := cur.Clone()
	next.Status = status
	next.UpdatedAt = now
	switch status {
	case models.StatusProcessed:
		next.ResultMessage = msg
		next.NextAttemptAt = nil
	case models.StatusFailed:
		next.RetryCount++
		next.LastError = msg
		if next.RetryCount < s.maxRetries {
			at := now.Add(s.retryDelay(next.RetryCount))
			next.NextAttemptAt = &at
		} else {
			next.NextAttemptAt = nil
			s.metrics.IncExhausted(next.TargetSystem)
			s.logger.ErrorContext(ctx, "outbox message exhausted its retries",
				"tenant_id", next.TenantID.String(),
				"outbox_id", next.ID.String(),
				"target_system", next.TargetSystem,
				"retry_count", next.RetryCount,
				"last_error", next.LastError,
			)
		}
	}
	return next
}

// retryDelay is the backoff before attempt n+1.
func (s *Service) retryDelay(n int) time.Duration {
	b := s.newBackoff()
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < n; i++ {
		next := b.NextBackOff()
		if next == backoff.Stop {
			break
		}
		d = next
	}
	return d
}

func (s *Service) logResult(ctx context.Context, in ResultInput, m *models.Message, before map[string]any, outcome audit.Outcome) {
	evidence := map[string]any{
		"target_system": m.TargetSystem,
		"event_key":     m.EventKey,
		"retry_count":   m.RetryCount,
	}
	if in.ResultMessage != "" {
		evidence["result_message"] = truncate(in.ResultMessage, maxResultMessageLen)
	}
	s.audit.Log(ctx, audit.Event{
		TenantID:     m.TenantID,
		Type:         audit.EventResultUpdate,
		ResourceType: audit.ResourceOutboxMessage,
		ResourceID:   m.ID.String(),
		ActorType:    in.Actor.Type,
		ActorID:      in.Actor.ID,
		Channel:      in.Actor.Channel,
		Outcome:      outcome,
		Before:       audit.MarshalSnapshot(before),
		After:        audit.MarshalSnapshot(statusSnapshot(m)),
		Evidence:     evidence,
	})
}

func statusSnapshot(m *models.Message) map[string]any {
	return map[string]any{"status": m.Status, "retry_count": m.RetryCount}
}

func exponential(initial, maxInterval time.Duration) func() backoff.BackOff {
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	if maxInterval <= 0 {
		maxInterval = defaultMaxBackoff
	}
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = maxInterval
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		return b
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
