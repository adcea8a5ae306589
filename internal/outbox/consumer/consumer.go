// Package consumer applies delivery results that downstream systems publish
// on integration.results.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"actiongate/internal/outbox/models"
	"actiongate/internal/outbox/service"
	"actiongate/internal/platform/bus"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	audit "actiongate/pkg/platform/audit"
)

// ResultRecorder applies one delivery result.
type ResultRecorder interface {
	UpdateResult(ctx context.Context, in service.ResultInput) (*service.ResultOutcome, error)
}

const consumerActorID = "integration-results"

// ResultHandler decodes result messages. Messages that can never succeed,
// malformed or for unknown rows, are logged and acknowledged so they do not
// block the partition.
type ResultHandler struct {
	recorder ResultRecorder
	logger   *slog.Logger
}

func NewResultHandler(recorder ResultRecorder, logger *slog.Logger) *ResultHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultHandler{recorder: recorder, logger: logger}
}

func (h *ResultHandler) Handle(ctx context.Context, msg *bus.Message) error {
	var result models.Result
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		h.logger.WarnContext(ctx, "dropping malformed integration result",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	tenantID, err := id.ParseTenantID(result.TenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "dropping integration result without tenant", "outbox_id", result.OutboxID)
		return nil
	}
	outboxID, err := id.ParseOutboxID(result.OutboxID)
	if err != nil {
		h.logger.WarnContext(ctx, "dropping integration result without outbox id", "tenant_id", result.TenantID)
		return nil
	}

	out, err := h.recorder.UpdateResult(ctx, service.ResultInput{
		TenantID:      tenantID,
		OutboxID:      outboxID,
		Status:        result.Status,
		ResultMessage: result.ResultMessage,
		Actor:         service.Actor{Type: audit.ActorSystem, ID: consumerActorID, Channel: audit.ChannelConsumer},
	})
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "integration result applied",
			"tenant_id", tenantID.String(),
			"outbox_id", outboxID.String(),
			"status", out.Message.Status,
			"already_processed", out.AlreadyProcessed,
		)
		return nil
	case dErrors.HasCode(err, dErrors.CodeNotFound),
		dErrors.HasCode(err, dErrors.CodeValidation),
		dErrors.HasCode(err, dErrors.CodeInvalidState):
		h.logger.WarnContext(ctx, "integration result rejected",
			"tenant_id", tenantID.String(),
			"outbox_id", outboxID.String(),
			"status", result.Status,
			"error", err,
		)
		return nil
	default:
		return err
	}
}
