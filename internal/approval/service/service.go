// Package service coordinates human approval of actions the guardrail held
// back. Each request takes exactly one decision; every later call echoes it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"actiongate/internal/approval/models"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	audit "actiongate/pkg/platform/audit"
	"actiongate/pkg/platform/sentinel"
	"actiongate/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,ActionResumer

// Store persists approval requests. CompareAndDecide must apply a decision
// atomically and only to a PENDING, unexpired request; otherwise it returns
// the stored request with applied=false, or sentinel.ErrExpired.
type Store interface {
	Create(ctx context.Context, r *models.Request) error
	Get(ctx context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID) (*models.Request, error)
	CompareAndDecide(ctx context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID, d models.Decision) (*models.Request, bool, error)
}

// ActionResumer continues the action once a decision is recorded. Both calls
// return an InvalidState error when the action no longer awaits approval.
type ActionResumer interface {
	ResumeApproved(ctx context.Context, tenantID id.TenantID, actionID id.ActionID, approver id.UserID) error
	ResumeRejected(ctx context.Context, tenantID id.TenantID, actionID id.ActionID, approver id.UserID, reason string) error
}

const (
	// DefaultTTL is how long a request stays decidable.
	DefaultTTL   = 72 * time.Hour
	maxReasonLen = 500
)

type OpenInput struct {
	RequestID     id.ApprovalRequestID
	TenantID      id.TenantID
	ActionID      id.ActionID
	OwnerUserID   id.UserID
	RequiredLevel int
}

func (in OpenInput) Validate() error {
	switch {
	case in.RequestID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "request id is required")
	case in.TenantID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "tenant id is required")
	case in.ActionID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "action id is required")
	}
	return nil
}

// DecideCommand carries the identity the caller claims in headers next to the
// identity verified from the bearer credential. They must match.
type DecideCommand struct {
	RequestID        id.ApprovalRequestID
	CallerTenantID   id.TenantID
	CallerUserID     id.UserID
	VerifiedTenantID id.TenantID
	VerifiedUserID   id.UserID
	Reason           string
}

// DecisionResult is the stored request after approve or reject.
// AlreadyProcessed marks an echo of an earlier decision.
type DecisionResult struct {
	Request          *models.Request
	AlreadyProcessed bool
}

type Service struct {
	store   Store
	actions ActionResumer
	audit   audit.Writer
	logger  *slog.Logger
	metrics *Metrics
	ttl     time.Duration
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

// WithTTL sets how long new requests stay decidable. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.ttl = d
		}
	}
}

func New(store Store, actions ActionResumer, auditor audit.Writer, opts ...Option) *Service {
	s := &Service{
		store:   store,
		actions: actions,
		audit:   auditor,
		logger:  slog.Default(),
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a PENDING request for an action awaiting approval.
func (s *Service) Open(ctx context.Context, in OpenInput) (*models.Request, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	r := &models.Request{
		ID:            in.RequestID,
		TenantID:      in.TenantID,
		ActionID:      in.ActionID,
		OwnerUserID:   in.OwnerUserID,
		RequiredLevel: in.RequiredLevel,
		Status:        models.StatusPending,
		CreatedAt:     now,
	}
	if s.ttl > 0 {
		at := now.Add(s.ttl)
		r.ExpiresAt = &at
	}
	if err := s.store.Create(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "approval request already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create approval request")
	}
	s.metrics.IncOpened()
	s.logger.InfoContext(ctx, "approval request opened",
		"tenant_id", r.TenantID.String(),
		"request_id", r.ID.String(),
		"action_id", r.ActionID.String(),
		"required_level", r.RequiredLevel,
	)
	return r, nil
}

// Approve records an APPROVED decision and executes the action.
func (s *Service) Approve(ctx context.Context, cmd DecideCommand) (*DecisionResult, error) {
	return s.decide(ctx, cmd, models.StatusApproved)
}

// Reject records a REJECTED decision and cancels the action.
func (s *Service) Reject(ctx context.Context, cmd DecideCommand) (*DecisionResult, error) {
	return s.decide(ctx, cmd, models.StatusRejected)
}

func (s *Service) Get(ctx context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID) (*models.Request, error) {
	r, err := s.store.Get(ctx, tenantID, requestID)
	if err != nil {
		return nil, storeError(err)
	}
	return r, nil
}

func (s *Service) decide(ctx context.Context, cmd DecideCommand, status models.Status) (*DecisionResult, error) {
	if err := s.verifyIdentity(ctx, cmd); err != nil {
		return nil, err
	}

	tenantID, approver := cmd.VerifiedTenantID, cmd.VerifiedUserID
	r, applied, err := s.store.CompareAndDecide(ctx, tenantID, cmd.RequestID, models.Decision{
		Status:    status,
		DecidedBy: approver,
		Reason:    truncate(strings.TrimSpace(cmd.Reason), maxReasonLen),
		DecidedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, storeError(err)
	}

	if !applied {
		s.metrics.IncReplay(string(r.Status))
		s.logger.InfoContext(ctx, "approval decision replayed",
			"tenant_id", tenantID.String(),
			"request_id", r.ID.String(),
			"stored_status", r.Status,
			"requested_status", status,
		)
		// an earlier call may have recorded the decision without reaching the action
		if err := s.resume(ctx, r); err != nil {
			return nil, err
		}
		return &DecisionResult{Request: r, AlreadyProcessed: true}, nil
	}

	s.metrics.IncDecision(string(r.Status))
	s.logDecision(ctx, r)
	s.logger.InfoContext(ctx, "approval decision recorded",
		"tenant_id", tenantID.String(),
		"request_id", r.ID.String(),
		"action_id", r.ActionID.String(),
		"status", r.Status,
		"decided_by", approver.String(),
	)
	if err := s.resume(ctx, r); err != nil {
		return nil, err
	}
	return &DecisionResult{Request: r}, nil
}

// verifyIdentity rejects calls whose claimed tenant or user differs from the
// verified credential. Nothing is read or written before it passes.
func (s *Service) verifyIdentity(ctx context.Context, cmd DecideCommand) error {
	if cmd.VerifiedTenantID.IsNil() || cmd.VerifiedUserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "verified identity is required")
	}
	if cmd.CallerTenantID == cmd.VerifiedTenantID && cmd.CallerUserID == cmd.VerifiedUserID {
		return nil
	}
	s.metrics.IncIdentityMismatch()
	s.logger.WarnContext(ctx, "approval identity mismatch",
		"request_id", cmd.RequestID.String(),
		"caller_tenant_id", cmd.CallerTenantID.String(),
		"caller_user_id", cmd.CallerUserID.String(),
		"verified_tenant_id", cmd.VerifiedTenantID.String(),
		"verified_user_id", cmd.VerifiedUserID.String(),
	)
	return dErrors.New(dErrors.CodeIdentityMismatch, "caller identity does not match credential")
}

// resume hands the decision to the action lifecycle. An action that no longer
// awaits approval was already resumed or was canceled meanwhile; that is
// logged, not returned.
func (s *Service) resume(ctx context.Context, r *models.Request) error {
	var approver id.UserID
	if r.DecidedBy != nil {
		approver = *r.DecidedBy
	}
	var err error
	switch r.Status {
	case models.StatusApproved:
		err = s.actions.ResumeApproved(ctx, r.TenantID, r.ActionID, approver)
	case models.StatusRejected:
		err = s.actions.ResumeRejected(ctx, r.TenantID, r.ActionID, approver, r.Reason)
	default:
		return nil
	}
	if err == nil {
		return nil
	}
	if dErrors.HasCode(err, dErrors.CodeInvalidState) {
		s.logger.InfoContext(ctx, "action not awaiting approval, decision not applied",
			"tenant_id", r.TenantID.String(),
			"request_id", r.ID.String(),
			"action_id", r.ActionID.String(),
			"status", r.Status,
			"error", err,
		)
		return nil
	}
	s.metrics.IncResumeFailure(string(dErrors.CodeOf(err)))
	s.logger.ErrorContext(ctx, "failed to resume action after approval decision",
		"tenant_id", r.TenantID.String(),
		"request_id", r.ID.String(),
		"action_id", r.ActionID.String(),
		"status", r.Status,
		"error", err,
	)
	return err
}

func (s *Service) logDecision(ctx context.Context, r *models.Request) {
	eventType, outcome := audit.EventApprovalApproved, audit.OutcomeSuccess
	if r.Status == models.StatusRejected {
		eventType, outcome = audit.EventApprovalRejected, audit.OutcomeDenied
	}
	evidence := map[string]any{
		"action_id":      r.ActionID.String(),
		"required_level": r.RequiredLevel,
	}
	if r.Reason != "" {
		evidence["reason"] = r.Reason
	}
	var actorID string
	if r.DecidedBy != nil {
		actorID = r.DecidedBy.String()
	}
	s.audit.Log(ctx, audit.Event{
		TenantID:     r.TenantID,
		Type:         eventType,
		ResourceType: audit.ResourceApprovalRequest,
		ResourceID:   r.ID.String(),
		ActorType:    audit.ActorHuman,
		ActorID:      actorID,
		Channel:      audit.ChannelAPI,
		Outcome:      outcome,
		Before:       audit.MarshalSnapshot(map[string]any{"status": models.StatusPending}),
		After:        audit.MarshalSnapshot(map[string]any{"status": r.Status}),
		Evidence:     evidence,
	})
}

func storeError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "approval request not found")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.New(dErrors.CodeNotFound, "approval request expired")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "approval store failure")
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
