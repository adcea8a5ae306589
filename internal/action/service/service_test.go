package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"actiongate/internal/action/effects"
	"actiongate/internal/action/models"
	"actiongate/internal/action/service"
	"actiongate/internal/action/service/mocks"
	actionstore "actiongate/internal/action/store"
	casemodels "actiongate/internal/cases/models"
	casestore "actiongate/internal/cases/store"
	"actiongate/internal/guardrail"
	outboxmodels "actiongate/internal/outbox/models"
	outboxservice "actiongate/internal/outbox/service"
	outboxstore "actiongate/internal/outbox/store"
	policymodels "actiongate/internal/policy/models"
	policystore "actiongate/internal/policy/store"
	"actiongate/internal/scope"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/money"
	audit "actiongate/pkg/platform/audit"
	"actiongate/pkg/platform/audit/publisher"
	auditmemory "actiongate/pkg/platform/audit/store/memory"
	"actiongate/pkg/requestcontext"
	"actiongate/pkg/testutil"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,CaseStore,Guardrail,ApprovalGate,Outbox

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingGate struct {
	mu       sync.Mutex
	openings []service.ApprovalOpening
	err      error
}

func (g *recordingGate) Open(_ context.Context, in service.ApprovalOpening) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.openings = append(g.openings, in)
	return nil
}

type LifecycleSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	tenantID id.TenantID
	userID   id.UserID
	caseID   id.CaseID

	actions *actionstore.InMemory
	cases   *casestore.InMemory
	outbox  *outboxstore.InMemory
	audits  *auditmemory.InMemoryStore
	pub     *publisher.Publisher
	gate    *recordingGate
	service *service.Service
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.now = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.tenantID = id.TenantID(uuid.New())
	s.userID = id.UserID(uuid.New())
	s.caseID = id.CaseID(uuid.New())

	policies := policystore.NewInMemory()
	profileID := id.ProfileID(uuid.New())
	s.Require().NoError(policies.PutProfile(s.ctx, policymodels.Profile{
		ID: profileID, TenantID: s.tenantID, Name: "default", IsDefault: true,
		CompanyCodes: []string{"1000", "2000"}, Currencies: []string{"KRW", "USD"},
	}))
	s.Require().NoError(policies.PutRule(s.ctx, policymodels.Rule{
		ID: id.RuleID(uuid.New()), TenantID: s.tenantID, ProfileID: profileID,
		Name: "payment-block-over-10k-krw", CaseType: policymodels.AnyCaseType, ActionType: effects.PaymentBlock,
		Condition: policymodels.Condition{Kind: policymodels.KindAmountCeiling, Max: money.FromInt(10000), Currency: "KRW"},
		Effect:    policymodels.EffectRequireApproval, ApprovalLevel: 1, Enabled: true,
	}))
	s.Require().NoError(policies.PutRule(s.ctx, policymodels.Rule{
		ID: id.RuleID(uuid.New()), TenantID: s.tenantID, ProfileID: profileID,
		Name: "invoice-hold-krw-only", CaseType: policymodels.AnyCaseType, ActionType: effects.InvoiceHold,
		Condition: policymodels.Condition{Kind: policymodels.KindCurrencyAllowlist, Values: []string{"KRW"}},
		Effect:    policymodels.EffectDeny, Enabled: true,
	}))
	resolver, err := scope.NewResolver(policies, policies, scope.WithLogger(discard))
	s.Require().NoError(err)
	gr, err := guardrail.NewService(resolver, policies, guardrail.WithLogger(discard))
	s.Require().NoError(err)

	s.cases = casestore.NewInMemory()
	s.Require().NoError(s.cases.Put(s.ctx, casemodels.Case{
		ID: s.caseID, TenantID: s.tenantID, CaseType: "DUPLICATE_INVOICE",
		CompanyCode: "1000", Currency: "KRW", State: casemodels.State{},
	}))

	s.actions = actionstore.NewInMemory()
	s.outbox = outboxstore.NewInMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.pub = publisher.NewPublisher(s.audits, publisher.WithLogger(discard))
	s.gate = &recordingGate{}
	s.service = service.New(s.actions, s.cases, gr, s.gate,
		outboxservice.New(s.outbox, s.pub, outboxservice.WithLogger(discard)),
		s.pub, service.WithLogger(discard))
}

func (s *LifecycleSuite) TearDownTest() {
	s.pub.Close()
}

func (s *LifecycleSuite) propose(actionType, payload string) (*service.ProposeResult, error) {
	return s.service.Propose(s.ctx, service.ProposeCommand{
		TenantID:   s.tenantID,
		ProposedBy: s.userID,
		CaseID:     s.caseID,
		ActionType: actionType,
		Payload:    json.RawMessage(payload),
	})
}

func (s *LifecycleSuite) actionEvents(actionID id.ActionID) []audit.EventType {
	events, err := s.audits.ListByResource(s.ctx, s.tenantID, audit.ResourceAction, actionID.String())
	s.Require().NoError(err)
	types := make([]audit.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func (s *LifecycleSuite) deliverable() []*outboxmodels.Message {
	msgs, err := s.outbox.Claim(s.ctx, s.now, time.Second, 100, 5)
	s.Require().NoError(err)
	return msgs
}

func (s *LifecycleSuite) caseState() casemodels.State {
	c, err := s.cases.Get(s.ctx, s.tenantID, s.caseID)
	s.Require().NoError(err)
	return c.State
}

func (s *LifecycleSuite) TestProposeAboveThresholdWaitsForApproval() {
	res, err := s.propose(effects.PaymentBlock, `{"amount":15000,"currency":"KRW"}`)
	s.Require().NoError(err)

	s.True(res.RequiresApproval)
	s.Equal(guardrail.VerdictApprovalRequired, res.Guardrail.Verdict)
	s.Equal(models.StatusPendingApproval, res.Action.Status)
	s.Require().NotNil(res.Action.ApprovalRequestID)

	s.Require().Len(s.gate.openings, 1)
	opening := s.gate.openings[0]
	s.Equal(*res.Action.ApprovalRequestID, opening.RequestID)
	s.Equal(res.Action.ID, opening.ActionID)
	s.Equal(s.userID, opening.OwnerUserID)
	s.Equal(1, opening.RequiredLevel)

	s.Equal([]audit.EventType{
		audit.EventActionProposed,
		audit.EventActionApprovalRequired,
		audit.EventActionPendingApproval,
	}, s.actionEvents(res.Action.ID))
	s.False(s.caseState().Bool(effects.KeyPaymentBlocked))
	s.Empty(s.deliverable())
}

func (s *LifecycleSuite) TestProposeBelowThresholdExecutes() {
	res, err := s.propose(effects.PaymentBlock, `{"amount":5000,"currency":"KRW","reason":"duplicate"}`)
	s.Require().NoError(err)

	s.False(res.RequiresApproval)
	s.Equal(models.StatusExecuted, res.Action.Status)
	s.Require().NotNil(res.Action.ExecutedAt)
	s.Equal(s.now, *res.Action.ExecutedAt)
	s.JSONEq(`{"payment_blocked":{"before":null,"after":true},"block_reason":{"before":null,"after":"duplicate"}}`, string(res.Action.Diff))

	s.Equal([]audit.EventType{
		audit.EventActionProposed,
		audit.EventActionAllowed,
		audit.EventActionExecuting,
		audit.EventActionExecuted,
	}, s.actionEvents(res.Action.ID))
	s.True(s.caseState().Bool(effects.KeyPaymentBlocked))

	msgs := s.deliverable()
	s.Require().Len(msgs, 1)
	s.Equal("erp", msgs[0].TargetSystem)
	s.Equal(res.Action.ID.String()+":EXECUTED", msgs[0].EventKey)
	s.Empty(s.gate.openings)
}

func (s *LifecycleSuite) TestProposeFallsBackToCaseScopeValues() {
	res, err := s.propose(effects.BankDetailLock, `{}`)
	s.Require().NoError(err)
	s.Equal(models.StatusExecuted, res.Action.Status, "unconfigured pair passes by default")
	s.True(res.Guardrail.NoRulesConfigured)
}

func (s *LifecycleSuite) TestProposeOutOfScopeIsAuditedAndRejected() {
	_, err := s.propose(effects.PaymentBlock, `{"amount":500,"currency":"KRW","companyCode":"9999"}`)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeOutOfScope))

	denials := s.audits.ByType(audit.EventScopeDenied)
	s.Require().Len(denials, 1)
	s.Equal(audit.OutcomeDenied, denials[0].Outcome)
	s.Equal(audit.ResourceCase, denials[0].ResourceType)
	s.Equal(s.caseID.String(), denials[0].ResourceID)
	s.Equal("9999", denials[0].Evidence["company_code"])
	s.Empty(s.audits.ByType(audit.EventActionProposed), "no action is created")
}

func (s *LifecycleSuite) TestProposeDeniedIsCanceled() {
	res, err := s.propose(effects.InvoiceHold, `{"amount":100,"currency":"USD"}`)
	s.Require().NoError(err)

	s.Equal(guardrail.VerdictDenied, res.Guardrail.Verdict)
	s.Equal(models.StatusCanceled, res.Action.Status)
	s.Equal([]string{"invoice-hold-krw-only"}, res.Guardrail.ViolatedRules)
	s.Equal([]audit.EventType{
		audit.EventActionProposed,
		audit.EventActionDenied,
		audit.EventActionCanceled,
	}, s.actionEvents(res.Action.ID))
	s.False(s.caseState().Bool(effects.KeyInvoiceHold))
}

func (s *LifecycleSuite) TestProposeValidation() {
	_, err := s.propose("WIRE_MONEY", `{}`)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.propose(effects.PaymentBlock, `[1,2]`)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.propose(effects.MarkDuplicate, `{}`)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Propose(s.ctx, service.ProposeCommand{
		TenantID: s.tenantID, ProposedBy: s.userID, CaseID: id.CaseID(uuid.New()), ActionType: effects.PaymentBlock,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.audits.All())
}

func (s *LifecycleSuite) TestOutboxFailureMarksActionFailed() {
	s.outbox.FailNextCreate(errors.New("disk full"))

	res, err := s.propose(effects.PaymentBlock, `{"amount":5000,"currency":"KRW"}`)
	s.Require().NoError(err)

	s.Equal(models.StatusFailed, res.Action.Status)
	s.Equal("integration outbox enqueue failed", res.Action.FailureReason)

	stored, err := s.service.Get(s.ctx, s.tenantID, res.Action.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, stored.Status)
	s.Nil(stored.ExecutedAt)
	s.False(s.caseState().Bool(effects.KeyPaymentBlocked), "case state write rolled back")
	s.Empty(s.deliverable())
	s.Equal([]audit.EventType{
		audit.EventActionProposed,
		audit.EventActionAllowed,
		audit.EventActionExecuting,
		audit.EventActionFailed,
	}, s.actionEvents(res.Action.ID))
	s.Empty(s.audits.ByType(audit.EventOutboxEnqueue))
}

func (s *LifecycleSuite) TestEffectFailureMarksActionFailed() {
	s.Require().NoError(s.cases.Put(s.ctx, casemodels.Case{
		ID: s.caseID, TenantID: s.tenantID, CaseType: "DUPLICATE_INVOICE",
		CompanyCode: "1000", Currency: "KRW", State: casemodels.State{effects.KeyPaymentBlocked: true},
	}))

	res, err := s.propose(effects.PaymentBlock, `{"amount":5000}`)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, res.Action.Status)
	s.Equal(effects.ErrAlreadyBlocked.Error(), res.Action.FailureReason)

	failed := s.audits.ByType(audit.EventActionFailed)
	s.Require().Len(failed, 1)
	s.Equal(audit.OutcomeFailed, failed[0].Outcome)
	s.Empty(s.deliverable())
}

func (s *LifecycleSuite) TestResumeApprovedExecutesOnce() {
	res, err := s.propose(effects.PaymentBlock, `{"amount":15000,"currency":"KRW"}`)
	s.Require().NoError(err)
	approver := id.UserID(uuid.New())

	s.Require().NoError(s.service.ResumeApproved(s.ctx, s.tenantID, res.Action.ID, approver))
	err = s.service.ResumeApproved(s.ctx, s.tenantID, res.Action.ID, approver)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	a, err := s.service.Get(s.ctx, s.tenantID, res.Action.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExecuted, a.Status)
	s.Len(s.deliverable(), 1)

	executed := s.audits.ByType(audit.EventActionExecuted)
	s.Require().Len(executed, 1)
	s.Equal(audit.ActorHuman, executed[0].ActorType)
	s.Equal(approver.String(), executed[0].ActorID)
}

func (s *LifecycleSuite) TestConcurrentResumeExecutesOnce() {
	res, err := s.propose(effects.PaymentBlock, `{"amount":15000,"currency":"KRW"}`)
	s.Require().NoError(err)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.service.ResumeApproved(s.ctx, s.tenantID, res.Action.ID, s.userID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Len(s.audits.ByType(audit.EventActionExecuted), 1)
	s.Len(s.deliverable(), 1)
}

func (s *LifecycleSuite) TestResumeRejectedCancels() {
	res, err := s.propose(effects.PaymentBlock, `{"amount":15000,"currency":"KRW"}`)
	s.Require().NoError(err)

	s.Require().NoError(s.service.ResumeRejected(s.ctx, s.tenantID, res.Action.ID, s.userID, "not a duplicate"))

	a, err := s.service.Get(s.ctx, s.tenantID, res.Action.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCanceled, a.Status)

	canceled := s.audits.ByType(audit.EventActionCanceled)
	s.Require().Len(canceled, 1)
	s.Equal(audit.OutcomeNoop, canceled[0].Outcome)
	s.Equal("not a duplicate", canceled[0].Evidence["reason"])
}

func (s *LifecycleSuite) TestCancel() {
	pending, err := s.propose(effects.PaymentBlock, `{"amount":15000,"currency":"KRW"}`)
	s.Require().NoError(err)
	executed, err := s.propose(effects.InvoiceHold, `{"amount":100,"currency":"KRW"}`)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusExecuted, executed.Action.Status)

	testutil.Given(s.T(), "a pending approval", func(t *testing.T) {
		a, err := s.service.Cancel(s.ctx, service.CancelCommand{
			TenantID: s.tenantID, ActionID: pending.Action.ID, ActorID: s.userID, Reason: "raised by mistake",
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCanceled, a.Status)

		canceled := s.audits.ByType(audit.EventActionCanceled)
		require.Len(t, canceled, 1)
		assert.Equal(t, audit.OutcomeNoop, canceled[0].Outcome)
		assert.Equal(t, audit.ActorHuman, canceled[0].ActorType)
	})

	testutil.Given(s.T(), "an executed action", func(t *testing.T) {
		_, err := s.service.Cancel(s.ctx, service.CancelCommand{
			TenantID: s.tenantID, ActionID: executed.Action.ID, ActorID: s.userID,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	testutil.Given(s.T(), "another tenant", func(t *testing.T) {
		_, err := s.service.Cancel(s.ctx, service.CancelCommand{
			TenantID: id.TenantID(uuid.New()), ActionID: pending.Action.ID, ActorID: s.userID,
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LifecycleSuite) TestCancelReasonKeepsWholeRunes() {
	pending, err := s.propose(effects.PaymentBlock, `{"amount":15000,"currency":"KRW"}`)
	s.Require().NoError(err)

	_, err = s.service.Cancel(s.ctx, service.CancelCommand{
		TenantID: s.tenantID, ActionID: pending.Action.ID, ActorID: s.userID,
		Reason: strings.Repeat("취소", service.MaxReasonLen),
	})
	s.Require().NoError(err)

	canceled := s.audits.ByType(audit.EventActionCanceled)
	s.Require().Len(canceled, 1)
	reason, ok := canceled[0].Evidence["reason"].(string)
	s.Require().True(ok)
	s.True(utf8.ValidString(reason))
	s.Equal(service.MaxReasonLen, utf8.RuneCountInString(reason))
}

func (s *LifecycleSuite) TestApprovalOpenFailureCancelsAction() {
	s.gate.err = errors.New("redis: connection refused")

	_, err := s.propose(effects.PaymentBlock, `{"amount":15000,"currency":"KRW"}`)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeExternalDependency))

	canceled := s.audits.ByType(audit.EventActionCanceled)
	s.Require().Len(canceled, 1)
	s.Equal(audit.OutcomeFailed, canceled[0].Outcome)
}

func (s *LifecycleSuite) TestSimulate() {
	testutil.Given(s.T(), "a valid payload", func(t *testing.T) {
		res, err := s.service.Simulate(s.ctx, service.SimulateCommand{
			TenantID: s.tenantID, CaseID: s.caseID, ActionType: effects.PaymentBlock,
			Payload: json.RawMessage(`{"amount":15000,"currency":"KRW"}`),
		})
		require.NoError(t, err)
		assert.Empty(t, res.ValidationErrors)
		assert.Equal(t, true, res.AfterPreview[effects.KeyPaymentBlocked])
		assert.Equal(t, []string{effects.KeyPaymentBlocked}, res.PredictedImpact.ChangedFields)
		assert.Equal(t, guardrail.VerdictApprovalRequired, res.PredictedImpact.Verdict)
		assert.Equal(t, "15000", res.PredictedImpact.Amount)
	})

	testutil.Given(s.T(), "an invalid payload", func(t *testing.T) {
		res, err := s.service.Simulate(s.ctx, service.SimulateCommand{
			TenantID: s.tenantID, CaseID: s.caseID, ActionType: effects.MarkDuplicate,
			Payload: json.RawMessage(`{}`),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"duplicateOf is required"}, res.ValidationErrors)
		assert.Nil(t, res.AfterPreview)
	})

	testutil.Given(s.T(), "no action type", func(t *testing.T) {
		res, err := s.service.Simulate(s.ctx, service.SimulateCommand{
			TenantID: s.tenantID, CaseID: s.caseID,
			Payload: json.RawMessage(`{"amount":5000,"currency":"KRW"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"actionType is required"}, res.ValidationErrors)
		assert.Nil(t, res.AfterPreview)
		assert.Equal(t, "5000", res.PredictedImpact.Amount)
	})

	testutil.Given(s.T(), "a lowercase action type", func(t *testing.T) {
		res, err := s.service.Simulate(s.ctx, service.SimulateCommand{
			TenantID: s.tenantID, CaseID: s.caseID, ActionType: "payment_block",
			Payload: json.RawMessage(`{"amount":5000,"currency":"KRW"}`),
		})
		require.NoError(t, err)
		assert.Empty(t, res.ValidationErrors)
		assert.Equal(t, guardrail.VerdictAllowed, res.PredictedImpact.Verdict)
	})

	testutil.Given(s.T(), "an out-of-scope company", func(t *testing.T) {
		res, err := s.service.Simulate(s.ctx, service.SimulateCommand{
			TenantID: s.tenantID, CaseID: s.caseID, ActionType: effects.PaymentBlock,
			Payload: json.RawMessage(`{"companyCode":"9999"}`),
		})
		require.NoError(t, err)
		assert.True(t, res.PredictedImpact.OutOfScope)
	})

	s.Empty(s.audits.All(), "simulation is never audited")
	s.Empty(s.deliverable())
}

func (s *LifecycleSuite) stuckAction(updatedAt time.Time) *models.Action {
	a := &models.Action{
		ID:         id.ActionID(uuid.New()),
		TenantID:   s.tenantID,
		CaseID:     s.caseID,
		ActionType: effects.PaymentBlock,
		Payload:    json.RawMessage(`{"amount":5000,"currency":"KRW"}`),
		Status:     models.StatusExecuting,
		ProposedBy: s.userID.String(),
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
	s.Require().NoError(s.actions.Create(s.ctx, a))
	return a
}

func (s *LifecycleSuite) TestRecoverStaleFinishesStuckExecutions() {
	stuck := s.stuckAction(s.now.Add(-10 * time.Minute))
	fresh := s.stuckAction(s.now.Add(-time.Second))

	n, err := s.service.RecoverStale(s.ctx, 5*time.Minute, 10)
	s.Require().NoError(err)
	s.Equal(1, n)

	recovered, err := s.service.Get(s.ctx, s.tenantID, stuck.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExecuted, recovered.Status)
	s.True(s.caseState().Bool(effects.KeyPaymentBlocked))

	msgs := s.deliverable()
	s.Require().Len(msgs, 1)
	s.Equal(stuck.ID.String()+":EXECUTED", msgs[0].EventKey)

	executed := s.audits.ByType(audit.EventActionExecuted)
	s.Require().Len(executed, 1)
	s.Equal(audit.ActorSystem, executed[0].ActorType)

	untouched, err := s.service.Get(s.ctx, s.tenantID, fresh.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExecuting, untouched.Status, "still inside its grace period")

	n, err = s.service.RecoverStale(s.ctx, 5*time.Minute, 10)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *LifecycleSuite) TestExecuteOnlyFinishesExecutingActions() {
	pending, err := s.propose(effects.PaymentBlock, `{"amount":15000,"currency":"KRW"}`)
	s.Require().NoError(err)

	_, err = s.service.Execute(s.ctx, s.tenantID, pending.Action.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.service.Execute(s.ctx, s.tenantID, id.ActionID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestPropose_GuardrailFailurePersistsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	cases := mocks.NewMockCaseStore(ctrl)
	gr := mocks.NewMockGuardrail(ctrl)
	gate := mocks.NewMockApprovalGate(ctrl)
	outbox := mocks.NewMockOutbox(ctrl)
	audits := auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(audits)
	defer pub.Close()

	tenantID := id.TenantID(uuid.New())
	caseID := id.CaseID(uuid.New())
	cases.EXPECT().Get(gomock.Any(), tenantID, caseID).
		Return(&casemodels.Case{ID: caseID, TenantID: tenantID, CaseType: "DUPLICATE_INVOICE"}, nil)
	gr.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeExternalDependency, "guardrail rule store unavailable"))
	// no Create, no Open, no Enqueue

	svc := service.New(store, cases, gr, gate, outbox, pub, service.WithLogger(discard))
	_, err := svc.Propose(context.Background(), service.ProposeCommand{
		TenantID: tenantID, ProposedBy: id.UserID(uuid.New()), CaseID: caseID,
		ActionType: effects.PaymentBlock, Payload: json.RawMessage(`{"amount":1}`),
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExternalDependency))
	assert.Empty(t, audits.All())
}

func TestShardedTx_RollsBackOnError(t *testing.T) {
	actions := actionstore.NewInMemory()
	runner := service.NewShardedTx()
	a := &models.Action{ID: id.ActionID(uuid.New()), TenantID: id.TenantID(uuid.New()), Status: models.StatusProposed}

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, actions.Create(ctx, a))
		return errors.New("boom")
	})
	require.Error(t, err)

	_, err = actions.Get(context.Background(), a.TenantID, a.ID)
	assert.Error(t, err, "create was undone")
}
