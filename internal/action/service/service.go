// Package service runs the action lifecycle: propose, simulate, execute and
// cancel, plus the resume hooks the approval coordinator calls. Every state
// change goes through the model's transition table and produces exactly one
// audit event once its transaction commits.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"actiongate/internal/action/effects"
	"actiongate/internal/action/metrics"
	"actiongate/internal/action/models"
	casemodels "actiongate/internal/cases/models"
	"actiongate/internal/guardrail"
	outboxmodels "actiongate/internal/outbox/models"
	outboxservice "actiongate/internal/outbox/service"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/money"
	audit "actiongate/pkg/platform/audit"
	codetable "actiongate/pkg/platform/codes"
	"actiongate/pkg/platform/sentinel"
	"actiongate/pkg/platform/tx"
	"actiongate/pkg/requestcontext"
)

// Store persists actions. Update is a compare-and-set on the stored status.
type Store interface {
	Create(ctx context.Context, a *models.Action) error
	Get(ctx context.Context, tenantID id.TenantID, actionID id.ActionID) (*models.Action, error)
	Update(ctx context.Context, a *models.Action, expected models.Status) error
	// ListStale returns actions of every tenant that have rested in status
	// since before updatedBefore, oldest first.
	ListStale(ctx context.Context, status models.Status, updatedBefore time.Time, limit int) ([]*models.Action, error)
}

// CaseStore reads cases and rewrites their state when an effect executes.
type CaseStore interface {
	Get(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) (*casemodels.Case, error)
	UpdateState(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, state casemodels.State, updatedAt time.Time) error
}

type Guardrail interface {
	Evaluate(ctx context.Context, in guardrail.Input) (*guardrail.Result, error)
}

// ApprovalOpening asks the approval coordinator for a pending request. The
// request id is chosen here so the action references it from its first write.
type ApprovalOpening struct {
	RequestID     id.ApprovalRequestID
	TenantID      id.TenantID
	ActionID      id.ActionID
	OwnerUserID   id.UserID
	RequiredLevel int
}

type ApprovalGate interface {
	Open(ctx context.Context, in ApprovalOpening) error
}

// Outbox enqueues integration messages. Enqueue joins the transaction on ctx.
type Outbox interface {
	Enqueue(ctx context.Context, in outboxservice.EnqueueInput) (*outboxmodels.Message, error)
}

// Actor names who caused a transition.
type Actor struct {
	Type    audit.ActorType
	ID      string
	Channel audit.Channel
}

const (
	defaultTargetSystem = "erp"
	executedEventType   = "ACTION_EXECUTED"
	systemActorID       = "action-lifecycle"
	maxReasonLen        = 500
)

var tracer = otel.Tracer("actiongate/action")

var errEnqueueFailed = errors.New("integration outbox enqueue failed")

// Service implements the action lifecycle.
type Service struct {
	store     Store
	cases     CaseStore
	guardrail Guardrail
	approvals ApprovalGate
	outbox    Outbox
	audit     audit.Writer
	tx        tx.Runner

	logger       *slog.Logger
	metrics      *metrics.Metrics
	targetSystem string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTx sets the transaction runner. The default serializes per action in
// memory and fits the in-memory stores only.
func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

// WithTargetSystem names the downstream system executed actions are relayed to.
func WithTargetSystem(target string) Option {
	return func(s *Service) {
		if target = strings.TrimSpace(target); target != "" {
			s.targetSystem = target
		}
	}
}

func New(store Store, cases CaseStore, gr Guardrail, approvals ApprovalGate, outbox Outbox, auditor audit.Writer, opts ...Option) *Service {
	s := &Service{
		store:        store,
		cases:        cases,
		guardrail:    gr,
		approvals:    approvals,
		outbox:       outbox,
		audit:        auditor,
		tx:           NewShardedTx(),
		logger:       slog.Default(),
		targetSystem: defaultTargetSystem,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ProposeCommand struct {
	TenantID   id.TenantID
	ProposedBy id.UserID
	CaseID     id.CaseID
	ActionType string
	Payload    json.RawMessage
}

func (c ProposeCommand) Validate() error {
	if c.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}
	if c.CaseID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "caseId is required")
	}
	if strings.TrimSpace(c.ActionType) == "" {
		return dErrors.New(dErrors.CodeValidation, "actionType is required")
	}
	return nil
}

// ProposeResult is the action after propose returned, with the verdict that
// routed it.
type ProposeResult struct {
	Action           *models.Action
	Guardrail        guardrail.Result
	RequiresApproval bool
}

type SimulateCommand struct {
	TenantID   id.TenantID
	CaseID     id.CaseID
	ActionType string
	Payload    json.RawMessage
}

// SimulateResult previews an action without persisting anything.
type SimulateResult struct {
	BeforePreview    casemodels.State
	AfterPreview     casemodels.State
	ValidationErrors []string
	PredictedImpact  Impact
}

// Impact summarizes what a proposal would do.
type Impact struct {
	Amount                string
	Currency              string
	CompanyCode           string
	ChangedFields         []string
	Verdict               guardrail.Verdict
	RequiredApprovalLevel int
	ViolatedRules         []string
	OutOfScope            bool
}

type CancelCommand struct {
	TenantID id.TenantID
	ActionID id.ActionID
	ActorID  id.UserID
	Reason   string
}

// facts are the guardrail inputs of a proposal: payload values first, then
// the case's own company code and currency.
type facts struct {
	Amount      money.Amount
	Currency    string
	CompanyCode string
}

func factsFor(p models.Params, c *casemodels.Case) facts {
	f := facts{Amount: p.Amount, Currency: codetable.Code(p.Currency), CompanyCode: codetable.Code(p.CompanyCode)}
	if f.Currency == "" {
		f.Currency = codetable.Code(c.Currency)
	}
	if f.CompanyCode == "" {
		f.CompanyCode = codetable.Code(c.CompanyCode)
	}
	return f
}

// Propose creates an action, evaluates it and routes it: ALLOWED actions
// execute before Propose returns, APPROVAL_REQUIRED ones wait on an approval
// request, DENIED ones are canceled. Out-of-scope proposals create no action;
// they are audited synchronously and rejected with CodeOutOfScope.
func (s *Service) Propose(ctx context.Context, cmd ProposeCommand) (*ProposeResult, error) {
	ctx, span := tracer.Start(ctx, "action.Propose")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", cmd.TenantID.String()),
		attribute.String("action.type", cmd.ActionType),
	)
	start := time.Now()
	defer func() { s.metrics.ObserveProposeLatency(time.Since(start)) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	actionType := strings.TrimSpace(cmd.ActionType)
	effect, ok := effects.Lookup(actionType)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported actionType "+actionType)
	}
	params, err := models.ParsePayload(cmd.Payload)
	if err != nil {
		return nil, err
	}
	if effect.Validate != nil {
		if problems := effect.Validate(params); len(problems) > 0 {
			return nil, dErrors.New(dErrors.CodeValidation, strings.Join(problems, "; "))
		}
	}

	c, err := s.loadCase(ctx, cmd.TenantID, cmd.CaseID)
	if err != nil {
		return nil, err
	}
	f := factsFor(params, c)
	verdict, err := s.guardrail.Evaluate(ctx, guardrail.Input{
		TenantID:    cmd.TenantID,
		ProfileID:   c.ProfileID,
		CaseType:    c.CaseType,
		ActionType:  actionType,
		Amount:      f.Amount,
		Currency:    f.Currency,
		CompanyCode: f.CompanyCode,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "guardrail evaluation failed")
		s.logger.ErrorContext(ctx, "guardrail evaluation failed",
			"tenant_id", cmd.TenantID.String(),
			"case_id", cmd.CaseID.String(),
			"action_type", actionType,
			"error", err,
		)
		return nil, err
	}

	actor := Actor{Type: audit.ActorAgent, ID: cmd.ProposedBy.String(), Channel: audit.ChannelAPI}
	if verdict.OutOfScope {
		return nil, s.denyScope(ctx, cmd.TenantID, c, actionType, f, verdict, actor)
	}

	now := requestcontext.Now(ctx)
	a := &models.Action{
		ID:         id.ActionID(uuid.New()),
		TenantID:   cmd.TenantID,
		CaseID:     cmd.CaseID,
		ActionType: actionType,
		Payload:    normalizePayload(cmd.Payload),
		Status:     models.StatusProposed,
		ProposedBy: actor.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if verdict.RequiresApproval() {
		requestID := id.ApprovalRequestID(uuid.New())
		a.ApprovalRequestID = &requestID
	}
	span.SetAttributes(
		attribute.String("action.id", a.ID.String()),
		attribute.String("guardrail.verdict", string(verdict.Verdict)),
	)

	ctx = withActionKey(ctx, a.ID)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, a); err != nil {
			return storeError(err, "failed to create action")
		}
		s.recordTransition(ctx, a, "", actor, change{
			outcome:  audit.OutcomeSuccess,
			evidence: map[string]any{"case_id": a.CaseID.String(), "action_type": a.ActionType},
		})

		evidence := verdictEvidence(verdict)
		switch verdict.Verdict {
		case guardrail.VerdictAllowed:
			if err := s.transition(ctx, a, models.StatusAllowed, actor, change{evidence: evidence}); err != nil {
				return err
			}
			return s.transition(ctx, a, models.StatusExecuting, actor, change{})
		case guardrail.VerdictApprovalRequired:
			if err := s.transition(ctx, a, models.StatusApprovalRequired, actor, change{evidence: evidence}); err != nil {
				return err
			}
			return s.transition(ctx, a, models.StatusPendingApproval, actor, change{
				evidence: map[string]any{"approval_request_id": a.ApprovalRequestID.String()},
			})
		default:
			if err := s.transition(ctx, a, models.StatusDenied, actor, change{outcome: audit.OutcomeDenied, evidence: evidence}); err != nil {
				return err
			}
			return s.transition(ctx, a, models.StatusCanceled, actor, change{
				outcome:  audit.OutcomeDenied,
				evidence: map[string]any{"reason": "denied by guardrail"},
			})
		}
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.IncrementProposal(string(verdict.Verdict), actionType)

	switch a.Status {
	case models.StatusExecuting:
		executed, err := s.execute(ctx, a, actor)
		if err != nil {
			return nil, err
		}
		a = executed
	case models.StatusPendingApproval:
		err := s.approvals.Open(ctx, ApprovalOpening{
			RequestID:     *a.ApprovalRequestID,
			TenantID:      a.TenantID,
			ActionID:      a.ID,
			OwnerUserID:   cmd.ProposedBy,
			RequiredLevel: verdict.RequiredApprovalLevel,
		})
		if err != nil {
			s.abandon(ctx, a, actor, err)
			return nil, dErrors.Wrap(err, dErrors.CodeExternalDependency, "failed to open approval request")
		}
	}

	s.logger.InfoContext(ctx, "action proposed",
		"tenant_id", a.TenantID.String(),
		"action_id", a.ID.String(),
		"action_type", a.ActionType,
		"verdict", verdict.Verdict,
		"status", a.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &ProposeResult{Action: a, Guardrail: *verdict, RequiresApproval: verdict.RequiresApproval()}, nil
}

// Simulate previews the effect and the predicted verdict. Payload problems
// are reported in ValidationErrors; nothing is persisted or audited.
func (s *Service) Simulate(ctx context.Context, cmd SimulateCommand) (*SimulateResult, error) {
	ctx, span := tracer.Start(ctx, "action.Simulate")
	defer span.End()

	if cmd.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}
	if cmd.CaseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "caseId is required")
	}
	c, err := s.loadCase(ctx, cmd.TenantID, cmd.CaseID)
	if err != nil {
		return nil, err
	}

	res := &SimulateResult{BeforePreview: c.State.Clone(), ValidationErrors: []string{}}
	actionType := strings.ToUpper(strings.TrimSpace(cmd.ActionType))
	effect, known := effects.Lookup(actionType)
	switch {
	case actionType == "":
		res.ValidationErrors = append(res.ValidationErrors, "actionType is required")
	case !known:
		res.ValidationErrors = append(res.ValidationErrors, "unsupported actionType "+actionType)
	}
	params, perr := models.ParsePayload(cmd.Payload)
	if perr != nil {
		res.ValidationErrors = append(res.ValidationErrors, dErrors.MessageOf(perr))
	}

	f := factsFor(params, c)
	res.PredictedImpact = Impact{Currency: f.Currency, CompanyCode: f.CompanyCode, ChangedFields: []string{}}
	if !f.Amount.IsZero() {
		res.PredictedImpact.Amount = f.Amount.String()
	}
	if !known || perr != nil {
		return res, nil
	}

	after, problems := effects.Preview(effect, params, c.State)
	res.ValidationErrors = append(res.ValidationErrors, problems...)
	if after != nil {
		res.AfterPreview = after
		res.PredictedImpact.ChangedFields = effects.ChangedFields(effects.Diff(c.State, after))
	}

	verdict, err := s.guardrail.Evaluate(ctx, guardrail.Input{
		TenantID:    cmd.TenantID,
		ProfileID:   c.ProfileID,
		CaseType:    c.CaseType,
		ActionType:  actionType,
		Amount:      f.Amount,
		Currency:    f.Currency,
		CompanyCode: f.CompanyCode,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res.PredictedImpact.Verdict = verdict.Verdict
	res.PredictedImpact.RequiredApprovalLevel = verdict.RequiredApprovalLevel
	res.PredictedImpact.ViolatedRules = verdict.ViolatedRules
	res.PredictedImpact.OutOfScope = verdict.OutOfScope
	return res, nil
}

// Execute finishes an action resting in EXECUTING, which happens when the
// process stops between the commit that entered EXECUTING and the effect.
// Effect failures are recorded as FAILED and returned as a result, not an
// error.
func (s *Service) Execute(ctx context.Context, tenantID id.TenantID, actionID id.ActionID) (*models.Action, error) {
	actor := Actor{Type: audit.ActorSystem, ID: systemActorID, Channel: audit.ChannelInternal}
	ctx = withActionKey(ctx, actionID)

	cur, err := s.get(ctx, tenantID, actionID)
	if err != nil {
		return nil, err
	}
	if cur.Status != models.StatusExecuting {
		return nil, dErrors.New(dErrors.CodeInvalidState, "action in status "+string(cur.Status)+" cannot be executed")
	}
	return s.execute(ctx, cur, actor)
}

// RecoverStale executes up to limit actions that have been EXECUTING for
// longer than staleAfter and reports how many were finished.
func (s *Service) RecoverStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-staleAfter)
	stale, err := s.store.ListStale(ctx, models.StatusExecuting, cutoff, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stale actions")
	}

	finished := 0
	for _, a := range stale {
		done, err := s.Execute(ctx, a.TenantID, a.ID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvalidState) {
				// finished by another instance since the listing
				continue
			}
			s.logger.WarnContext(ctx, "stale action recovery failed",
				"tenant_id", a.TenantID.String(),
				"action_id", a.ID.String(),
				"error", err,
			)
			continue
		}
		finished++
		s.logger.InfoContext(ctx, "stale action recovered",
			"tenant_id", done.TenantID.String(),
			"action_id", done.ID.String(),
			"status", string(done.Status),
		)
	}
	return finished, nil
}

// RunRecovery calls RecoverStale every interval until ctx is done.
func (s *Service) RunRecovery(ctx context.Context, interval, staleAfter time.Duration, limit int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.RecoverStale(ctx, staleAfter, limit); err != nil {
				s.logger.ErrorContext(ctx, "stale action sweep failed", "error", err)
			}
		}
	}
}

// Cancel cancels a PROPOSED or PENDING_APPROVAL action on behalf of a user.
// A user cancel is a decision, not a fault, so it is audited with outcome
// NOOP whatever the reason; cancels caused by a system failure go through
// abandon and are audited FAILED.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*models.Action, error) {
	if cmd.TenantID.IsNil() || cmd.ActionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant id and action id are required")
	}
	actor := Actor{Type: audit.ActorHuman, ID: cmd.ActorID.String(), Channel: audit.ChannelAPI}
	reason := truncate(strings.TrimSpace(cmd.Reason), maxReasonLen)
	ctx = withActionKey(ctx, cmd.ActionID)

	var a *models.Action
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.get(ctx, cmd.TenantID, cmd.ActionID)
		if err != nil {
			return err
		}
		if !cur.Status.IsCancelable() {
			return dErrors.New(dErrors.CodeInvalidState, "action in status "+string(cur.Status)+" cannot be canceled")
		}
		if err := s.transition(ctx, cur, models.StatusCanceled, actor, change{
			outcome:  audit.OutcomeNoop,
			evidence: map[string]any{"reason": reason},
		}); err != nil {
			return err
		}
		a = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "action canceled",
		"tenant_id", a.TenantID.String(),
		"action_id", a.ID.String(),
		"actor_id", actor.ID,
	)
	return a, nil
}

// ResumeApproved moves a PENDING_APPROVAL action to EXECUTING on behalf of
// approver and executes it.
func (s *Service) ResumeApproved(ctx context.Context, tenantID id.TenantID, actionID id.ActionID, approver id.UserID) error {
	actor := Actor{Type: audit.ActorHuman, ID: approver.String(), Channel: audit.ChannelAPI}
	ctx = withActionKey(ctx, actionID)

	var a *models.Action
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.get(ctx, tenantID, actionID)
		if err != nil {
			return err
		}
		if cur.Status != models.StatusPendingApproval {
			return dErrors.New(dErrors.CodeInvalidState, "action in status "+string(cur.Status)+" is not awaiting approval")
		}
		if err := s.transition(ctx, cur, models.StatusExecuting, actor, change{
			evidence: approvalEvidence(cur),
		}); err != nil {
			return err
		}
		a = cur
		return nil
	})
	if err != nil {
		return err
	}
	_, err = s.execute(ctx, a, actor)
	return err
}

// ResumeRejected cancels a PENDING_APPROVAL action after a rejection.
func (s *Service) ResumeRejected(ctx context.Context, tenantID id.TenantID, actionID id.ActionID, approver id.UserID, reason string) error {
	actor := Actor{Type: audit.ActorHuman, ID: approver.String(), Channel: audit.ChannelAPI}
	ctx = withActionKey(ctx, actionID)

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.get(ctx, tenantID, actionID)
		if err != nil {
			return err
		}
		if cur.Status != models.StatusPendingApproval {
			return dErrors.New(dErrors.CodeInvalidState, "action in status "+string(cur.Status)+" is not awaiting approval")
		}
		evidence := approvalEvidence(cur)
		evidence["reason"] = truncate(reason, maxReasonLen)
		return s.transition(ctx, cur, models.StatusCanceled, actor, change{
			outcome:  audit.OutcomeNoop,
			evidence: evidence,
		})
	})
}

func (s *Service) Get(ctx context.Context, tenantID id.TenantID, actionID id.ActionID) (*models.Action, error) {
	return s.get(ctx, tenantID, actionID)
}

// execute applies the effect of an EXECUTING action. The case state write,
// the EXECUTED transition and the outbox row share one transaction; if any
// of them fails the action is marked FAILED in a separate one.
func (s *Service) execute(ctx context.Context, a *models.Action, actor Actor) (*models.Action, error) {
	ctx, span := tracer.Start(ctx, "action.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("action.id", a.ID.String()),
		attribute.String("action.type", a.ActionType),
	)

	var (
		result *models.Action
		reason string
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.get(ctx, a.TenantID, a.ID)
		if err != nil {
			return err
		}
		if cur.Status != models.StatusExecuting {
			return dErrors.New(dErrors.CodeInvalidState, "action is no longer executing")
		}
		c, err := s.loadCase(ctx, cur.TenantID, cur.CaseID)
		if err != nil {
			return err
		}

		effect, ok := effects.Lookup(cur.ActionType)
		if !ok {
			reason = "unsupported action type " + cur.ActionType
			return dErrors.New(dErrors.CodeValidation, reason)
		}
		params, err := models.ParsePayload(cur.Payload)
		if err != nil {
			reason = dErrors.MessageOf(err)
			return err
		}
		after, err := effect.Apply(params, c.State)
		if err != nil {
			reason = err.Error()
			return err
		}
		diff := effects.Diff(c.State, after)

		now := requestcontext.Now(ctx)
		if err := s.cases.UpdateState(ctx, cur.TenantID, cur.CaseID, after, now); err != nil {
			return storeError(err, "failed to update case state")
		}
		cur.Before = audit.MarshalSnapshot(c.State)
		cur.After = audit.MarshalSnapshot(after)
		cur.Diff = audit.MarshalSnapshot(diff)
		cur.ExecutedAt = &now
		if err := s.transition(ctx, cur, models.StatusExecuted, actor, change{
			before:   cur.Before,
			after:    cur.After,
			diff:     cur.Diff,
			evidence: map[string]any{"case_id": cur.CaseID.String(), "changed_fields": effects.ChangedFields(diff)},
		}); err != nil {
			return err
		}

		if _, err := s.outbox.Enqueue(ctx, outboxservice.EnqueueInput{
			TenantID:     cur.TenantID,
			TargetSystem: s.targetSystem,
			EventType:    executedEventType,
			EventKey:     cur.ID.String() + ":EXECUTED",
			Payload:      executedPayload(cur, after, diff),
			Actor:        outboxservice.Actor{Type: actor.Type, ID: actor.ID, Channel: actor.Channel},
		}); err != nil {
			reason = errEnqueueFailed.Error()
			return errors.Join(errEnqueueFailed, err)
		}
		result = cur
		return nil
	})
	if err == nil {
		s.metrics.IncrementExecution(result.ActionType, string(models.StatusExecuted))
		return result, nil
	}
	span.RecordError(err)
	if dErrors.HasCode(err, dErrors.CodeInvalidState) {
		return nil, err
	}
	if reason == "" {
		reason = "execution failed: " + dErrors.MessageOf(err)
	}
	s.logger.WarnContext(ctx, "action execution failed",
		"tenant_id", a.TenantID.String(),
		"action_id", a.ID.String(),
		"action_type", a.ActionType,
		"reason", reason,
		"error", err,
	)
	return s.fail(ctx, a, actor, reason)
}

// fail moves an EXECUTING action to FAILED.
func (s *Service) fail(ctx context.Context, a *models.Action, actor Actor, reason string) (*models.Action, error) {
	var failed *models.Action
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.get(ctx, a.TenantID, a.ID)
		if err != nil {
			return err
		}
		if cur.Status != models.StatusExecuting {
			return dErrors.New(dErrors.CodeInvalidState, "action is no longer executing")
		}
		cur.FailureReason = truncate(reason, maxReasonLen)
		if err := s.transition(ctx, cur, models.StatusFailed, actor, change{
			outcome:  audit.OutcomeFailed,
			evidence: map[string]any{"failure_reason": cur.FailureReason},
		}); err != nil {
			return err
		}
		failed = cur
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: failed to record action failure",
			"tenant_id", a.TenantID.String(),
			"action_id", a.ID.String(),
			"reason", reason,
			"error", err,
		)
		return nil, err
	}
	s.metrics.IncrementExecution(failed.ActionType, string(models.StatusFailed))
	return failed, nil
}

// abandon cancels a PENDING_APPROVAL action whose approval request could not
// be opened, so nothing waits on a request that does not exist.
func (s *Service) abandon(ctx context.Context, a *models.Action, actor Actor, cause error) {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.get(ctx, a.TenantID, a.ID)
		if err != nil {
			return err
		}
		cur.FailureReason = "approval request could not be opened"
		if err := s.transition(ctx, cur, models.StatusCanceled, actor, change{
			outcome:  audit.OutcomeFailed,
			evidence: map[string]any{"reason": cur.FailureReason},
		}); err != nil {
			return err
		}
		*a = *cur
		return nil
	})
	s.logger.ErrorContext(ctx, "failed to open approval request",
		"tenant_id", a.TenantID.String(),
		"action_id", a.ID.String(),
		"error", cause,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: action left pending without an approval request",
			"tenant_id", a.TenantID.String(),
			"action_id", a.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) denyScope(ctx context.Context, tenantID id.TenantID, c *casemodels.Case, actionType string, f facts, verdict *guardrail.Result, actor Actor) error {
	s.metrics.IncrementScopeDenial(actionType)
	err := s.audit.LogScopeDenied(ctx, audit.ScopeDenial{
		TenantID:     tenantID,
		ResourceType: audit.ResourceCase,
		ResourceID:   c.ID.String(),
		ActorType:    actor.Type,
		ActorID:      actor.ID,
		Channel:      actor.Channel,
		CompanyCode:  f.CompanyCode,
		Currency:     f.Currency,
		ProfileID:    verdict.ProfileID.String(),
		ActionType:   actionType,
	})
	if err != nil {
		return err
	}
	return dErrors.New(dErrors.CodeOutOfScope, "company code or currency is outside the enabled scope")
}

// change carries the audit details of one transition. A zero outcome means
// SUCCESS.
type change struct {
	outcome  audit.Outcome
	before   json.RawMessage
	after    json.RawMessage
	diff     json.RawMessage
	evidence map[string]any
}

// transition moves a to next, persists it with a status compare-and-set and
// schedules the audit event for commit.
func (s *Service) transition(ctx context.Context, a *models.Action, next models.Status, actor Actor, ch change) error {
	prev := a.Status
	if err := a.TransitionTo(next, requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.store.Update(ctx, a, prev); err != nil {
		a.Status = prev
		return storeError(err, "failed to update action")
	}
	s.recordTransition(ctx, a, prev, actor, ch)
	return nil
}

func (s *Service) recordTransition(ctx context.Context, a *models.Action, prev models.Status, actor Actor, ch change) {
	outcome := ch.outcome
	if outcome == "" {
		outcome = audit.OutcomeSuccess
	}
	before, after := ch.before, ch.after
	if before == nil && prev != "" {
		before = audit.MarshalSnapshot(map[string]any{"status": prev})
	}
	if after == nil {
		after = audit.MarshalSnapshot(map[string]any{"status": a.Status})
	}
	event := audit.Event{
		TenantID:     a.TenantID,
		Type:         eventTypes[a.Status],
		ResourceType: audit.ResourceAction,
		ResourceID:   a.ID.String(),
		ActorType:    actor.Type,
		ActorID:      actor.ID,
		Channel:      actor.Channel,
		Outcome:      outcome,
		Before:       before,
		After:        after,
		Diff:         ch.diff,
		Evidence:     ch.evidence,
	}
	status := string(a.Status)
	tx.AfterCommit(ctx, func() {
		s.metrics.IncrementTransition(status)
		s.audit.Log(ctx, event)
	})
}

var eventTypes = map[models.Status]audit.EventType{
	models.StatusProposed:         audit.EventActionProposed,
	models.StatusAllowed:          audit.EventActionAllowed,
	models.StatusApprovalRequired: audit.EventActionApprovalRequired,
	models.StatusDenied:           audit.EventActionDenied,
	models.StatusPendingApproval:  audit.EventActionPendingApproval,
	models.StatusExecuting:        audit.EventActionExecuting,
	models.StatusExecuted:         audit.EventActionExecuted,
	models.StatusFailed:           audit.EventActionFailed,
	models.StatusCanceled:         audit.EventActionCanceled,
}

func (s *Service) get(ctx context.Context, tenantID id.TenantID, actionID id.ActionID) (*models.Action, error) {
	a, err := s.store.Get(ctx, tenantID, actionID)
	if err != nil {
		return nil, storeError(err, "failed to load action")
	}
	return a, nil
}

func (s *Service) loadCase(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) (*casemodels.Case, error) {
	c, err := s.cases.Get(ctx, tenantID, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case")
	}
	return c, nil
}

func storeError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "action not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState, "action changed concurrently")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func verdictEvidence(r *guardrail.Result) map[string]any {
	evidence := map[string]any{
		"verdict":         r.Verdict,
		"violated_rules":  r.ViolatedRules,
		"profile_id":      r.ProfileID.String(),
		"rules_evaluated": r.RulesEvaluated,
	}
	if r.RequiredApprovalLevel > 0 {
		evidence["required_approval_level"] = r.RequiredApprovalLevel
	}
	if r.NoRulesConfigured {
		evidence["no_rules_configured"] = true
	}
	return evidence
}

func approvalEvidence(a *models.Action) map[string]any {
	evidence := map[string]any{}
	if a.ApprovalRequestID != nil {
		evidence["approval_request_id"] = a.ApprovalRequestID.String()
	}
	return evidence
}

func executedPayload(a *models.Action, after casemodels.State, diff map[string]effects.Change) json.RawMessage {
	return audit.MarshalSnapshot(map[string]any{
		"actionId":   a.ID.String(),
		"tenantId":   a.TenantID.String(),
		"caseId":     a.CaseID.String(),
		"actionType": a.ActionType,
		"payload":    a.Payload,
		"after":      after,
		"diff":       diff,
		"executedAt": a.ExecutedAt,
	})
}

func normalizePayload(raw json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(trimmed)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
