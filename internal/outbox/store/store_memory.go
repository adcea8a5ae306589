package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"actiongate/internal/outbox/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
	"actiongate/pkg/platform/tx"
)

// InMemory is the outbox for single-process runs and tests. It implements
// both the service store and the relay claimer.
type InMemory struct {
	mu       sync.Mutex
	messages map[id.OutboxID]*models.Message
	failNext error
}

func NewInMemory() *InMemory {
	return &InMemory{messages: make(map[id.OutboxID]*models.Message)}
}

// FailNextCreate makes the next Create return err. Tests use it to exercise
// enqueue failures inside a transaction.
func (s *InMemory) FailNextCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *InMemory) Create(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	if _, exists := s.messages[m.ID]; exists {
		return sentinel.ErrConflict
	}
	s.messages[m.ID] = m.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.messages, m.ID)
	})
	return nil
}

func (s *InMemory) Get(_ context.Context, tenantID id.TenantID, outboxID id.OutboxID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[outboxID]
	if !ok || m.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return m.Clone(), nil
}

// Update stores m if the stored version equals m.Version, then bumps it.
func (s *InMemory) Update(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.messages[m.ID]
	if !ok || cur.TenantID != m.TenantID {
		return sentinel.ErrNotFound
	}
	if cur.Version != m.Version {
		return sentinel.ErrConflict
	}
	m.Version++
	s.messages[m.ID] = m.Clone()
	return nil
}

// Claim leases up to limit deliverable messages, oldest first.
func (s *InMemory) Claim(_ context.Context, now time.Time, lease time.Duration, limit, maxRetries int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []*models.Message
	for _, m := range s.messages {
		if m.Deliverable(now, maxRetries) {
			ready = append(ready, m)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].CreatedAt.Before(ready[j].CreatedAt) })
	if len(ready) > limit {
		ready = ready[:limit]
	}

	until := now.Add(lease)
	out := make([]*models.Message, 0, len(ready))
	for _, m := range ready {
		m.NextAttemptAt = &until
		m.Version++
		out = append(out, m.Clone())
	}
	return out, nil
}
