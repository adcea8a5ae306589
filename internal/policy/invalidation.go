// Package policy wires policy-change notifications. Profile and rule writes
// happen in the administration service; this side only reacts to them.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"actiongate/internal/platform/bus"
	"actiongate/internal/policy/models"
	id "actiongate/pkg/domain"
)

// Invalidator drops cached policy data. A nil profileID means every profile
// of the tenant.
type Invalidator interface {
	Invalidate(tenantID id.TenantID, profileID *id.ProfileID)
}

// InvalidationHandler applies policy.changed messages to local caches.
type InvalidationHandler struct {
	invalidators []Invalidator
	logger       *slog.Logger
}

func NewInvalidationHandler(logger *slog.Logger, invalidators ...Invalidator) *InvalidationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidationHandler{invalidators: invalidators, logger: logger}
}

// Handle decodes the change and invalidates. Malformed messages are logged
// and skipped so they are not redelivered forever.
func (h *InvalidationHandler) Handle(ctx context.Context, msg *bus.Message) error {
	var change models.Changed
	if err := json.Unmarshal(msg.Value, &change); err != nil {
		h.logger.WarnContext(ctx, "malformed policy change message",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	if change.TenantID.IsNil() {
		h.logger.WarnContext(ctx, "policy change without tenant", "key", string(msg.Key))
		return nil
	}
	h.Apply(change)
	h.logger.InfoContext(ctx, "policy caches invalidated",
		"tenant_id", change.TenantID.String(),
		"profile_id", profileString(change.ProfileID),
	)
	return nil
}

// Apply invalidates every registered cache for the change.
func (h *InvalidationHandler) Apply(change models.Changed) {
	for _, inv := range h.invalidators {
		inv.Invalidate(change.TenantID, change.ProfileID)
	}
}

// Notify publishes a policy change for all replicas, including this one.
func Notify(ctx context.Context, pub bus.Publisher, change models.Changed) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode policy change: %w", err)
	}
	return pub.Publish(ctx, &bus.Message{
		Topic: bus.TopicPolicyChanged,
		Key:   []byte(change.TenantID.String()),
		Value: payload,
	})
}

func profileString(p *id.ProfileID) string {
	if p == nil {
		return "*"
	}
	return p.String()
}
