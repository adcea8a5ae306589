package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actiongate/internal/approval/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
)

func newRequest(now time.Time, expiresIn time.Duration) *models.Request {
	r := &models.Request{
		ID:            id.ApprovalRequestID(uuid.New()),
		TenantID:      id.TenantID(uuid.New()),
		ActionID:      id.ActionID(uuid.New()),
		OwnerUserID:   id.UserID(uuid.New()),
		RequiredLevel: 1,
		Status:        models.StatusPending,
		CreatedAt:     now,
	}
	if expiresIn > 0 {
		at := now.Add(expiresIn)
		r.ExpiresAt = &at
	}
	return r
}

func TestInMemory_CreateAndGet(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	r := newRequest(time.Now(), time.Hour)

	require.NoError(t, s.Create(ctx, r))
	assert.ErrorIs(t, s.Create(ctx, r), sentinel.ErrConflict)

	got, err := s.Get(ctx, r.TenantID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	_, err = s.Get(ctx, id.TenantID(uuid.New()), r.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemory_CompareAndDecide(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	approver := id.UserID(uuid.New())

	t.Run("first decision wins and later ones echo it", func(t *testing.T) {
		s := NewInMemory()
		r := newRequest(now, time.Hour)
		require.NoError(t, s.Create(ctx, r))

		got, applied, err := s.CompareAndDecide(ctx, r.TenantID, r.ID, models.Decision{
			Status: models.StatusApproved, DecidedBy: approver, DecidedAt: now,
		})
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, models.StatusApproved, got.Status)

		got, applied, err = s.CompareAndDecide(ctx, r.TenantID, r.ID, models.Decision{
			Status: models.StatusRejected, DecidedBy: approver, Reason: "late", DecidedAt: now,
		})
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, models.StatusApproved, got.Status)
		assert.Empty(t, got.Reason)
	})

	t.Run("expired pending request", func(t *testing.T) {
		s := NewInMemory()
		r := newRequest(now, time.Minute)
		require.NoError(t, s.Create(ctx, r))

		_, _, err := s.CompareAndDecide(ctx, r.TenantID, r.ID, models.Decision{
			Status: models.StatusApproved, DecidedBy: approver, DecidedAt: now.Add(time.Minute),
		})
		assert.ErrorIs(t, err, sentinel.ErrExpired)

		stored, err := s.Get(ctx, r.TenantID, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, stored.Status)
	})

	t.Run("other tenant", func(t *testing.T) {
		s := NewInMemory()
		r := newRequest(now, 0)
		require.NoError(t, s.Create(ctx, r))
		_, _, err := s.CompareAndDecide(ctx, id.TenantID(uuid.New()), r.ID, models.Decision{
			Status: models.StatusApproved, DecidedBy: approver, DecidedAt: now,
		})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("concurrent approve and reject", func(t *testing.T) {
		s := NewInMemory()
		r := newRequest(now, 0)
		require.NoError(t, s.Create(ctx, r))

		var wg sync.WaitGroup
		var wins atomic.Int32
		for i := 0; i < 32; i++ {
			status := models.StatusApproved
			if i%2 == 1 {
				status = models.StatusRejected
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, applied, err := s.CompareAndDecide(ctx, r.TenantID, r.ID, models.Decision{
					Status: status, DecidedBy: approver, DecidedAt: now,
				})
				assert.NoError(t, err)
				if applied {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
