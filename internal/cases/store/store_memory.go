package store

import (
	"context"
	"sync"
	"time"

	"actiongate/internal/cases/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
	"actiongate/pkg/platform/tx"
)

type caseKey struct {
	tenant id.TenantID
	id     id.CaseID
}

// InMemory keeps cases in a map. UpdateState registers an undo step so a
// rolled back in-memory transaction restores the previous document.
type InMemory struct {
	mu    sync.RWMutex
	cases map[caseKey]models.Case
}

func NewInMemory() *InMemory {
	return &InMemory{cases: make(map[caseKey]models.Case)}
}

func (s *InMemory) Put(_ context.Context, c models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.State = c.State.Clone()
	s.cases[caseKey{c.TenantID, c.ID}] = c
	return nil
}

func (s *InMemory) Get(_ context.Context, tenantID id.TenantID, caseID id.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseKey{tenantID, caseID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c.State = c.State.Clone()
	return &c, nil
}

func (s *InMemory) UpdateState(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, state models.State, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := caseKey{tenantID, caseID}
	prev, ok := s.cases[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := prev
	next.State = state.Clone()
	next.UpdatedAt = updatedAt
	s.cases[key] = next

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cases[key] = prev
	})
	return nil
}
