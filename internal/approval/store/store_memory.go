package store

import (
	"context"
	"sync"

	"actiongate/internal/approval/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
)

// InMemory keeps approval requests in a map guarded by one mutex, which
// serializes every compare-and-decide.
type InMemory struct {
	mu       sync.Mutex
	requests map[id.ApprovalRequestID]*models.Request
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.ApprovalRequestID]*models.Request)}
}

func (s *InMemory) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = r.Clone()
	return nil
}

func (s *InMemory) Get(_ context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok || r.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// CompareAndDecide applies d when the request is still PENDING. It returns
// applied=false with the stored request when another decision won.
func (s *InMemory) CompareAndDecide(_ context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID, d models.Decision) (*models.Request, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok || r.TenantID != tenantID {
		return nil, false, sentinel.ErrNotFound
	}
	if r.Status.IsTerminal() {
		return r.Clone(), false, nil
	}
	if r.IsExpired(d.DecidedAt) {
		return nil, false, sentinel.ErrExpired
	}
	if err := r.Decide(d); err != nil {
		return nil, false, err
	}
	return r.Clone(), true, nil
}
