package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"actiongate/internal/action/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
	"actiongate/pkg/platform/tx"
)

// InMemory keeps actions in a map guarded by one mutex. Writes made inside a
// journaled transaction are undone on rollback.
type InMemory struct {
	mu      sync.RWMutex
	actions map[id.ActionID]*models.Action
}

func NewInMemory() *InMemory {
	return &InMemory{actions: make(map[id.ActionID]*models.Action)}
}

func (s *InMemory) Create(ctx context.Context, a *models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.actions[a.ID]; exists {
		return sentinel.ErrConflict
	}
	s.actions[a.ID] = a.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.actions, a.ID)
	})
	return nil
}

func (s *InMemory) Get(_ context.Context, tenantID id.TenantID, actionID id.ActionID) (*models.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[actionID]
	if !ok || a.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return a.Clone(), nil
}

// Update replaces the stored action when its status still equals expected.
func (s *InMemory) Update(ctx context.Context, a *models.Action, expected models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.actions[a.ID]
	if !ok || prev.TenantID != a.TenantID {
		return sentinel.ErrNotFound
	}
	if prev.Status != expected {
		return sentinel.ErrInvalidState
	}
	s.actions[a.ID] = a.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.actions[a.ID] = prev
	})
	return nil
}

// ListStale returns actions of every tenant resting in status since before
// updatedBefore, oldest first.
func (s *InMemory) ListStale(_ context.Context, status models.Status, updatedBefore time.Time, limit int) ([]*models.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Action
	for _, a := range s.actions {
		if a.Status == status && a.UpdatedAt.Before(updatedBefore) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
