package adapters

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actiongate/internal/action/effects"
	actionmodels "actiongate/internal/action/models"
	actionservice "actiongate/internal/action/service"
	actionstore "actiongate/internal/action/store"
	approvalmodels "actiongate/internal/approval/models"
	approvalservice "actiongate/internal/approval/service"
	approvalstore "actiongate/internal/approval/store"
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
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type harness struct {
	ctx       context.Context
	tenantID  id.TenantID
	userID    id.UserID
	caseID    id.CaseID
	actions   *actionservice.Service
	approvals *approvalservice.Service
	outbox    *outboxstore.InMemory
	audits    *auditmemory.InMemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:      requestcontext.WithTime(context.Background(), time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)),
		tenantID: id.TenantID(uuid.New()),
		userID:   id.UserID(uuid.New()),
		caseID:   id.CaseID(uuid.New()),
	}

	policies := policystore.NewInMemory()
	profileID := id.ProfileID(uuid.New())
	require.NoError(t, policies.PutProfile(h.ctx, policymodels.Profile{
		ID: profileID, TenantID: h.tenantID, Name: "default", IsDefault: true,
		CompanyCodes: []string{"1000"}, Currencies: []string{"KRW"},
	}))
	require.NoError(t, policies.PutRule(h.ctx, policymodels.Rule{
		ID: id.RuleID(uuid.New()), TenantID: h.tenantID, ProfileID: profileID,
		Name: "payment-block-over-10k-krw", CaseType: policymodels.AnyCaseType, ActionType: effects.PaymentBlock,
		Condition: policymodels.Condition{Kind: policymodels.KindAmountCeiling, Max: money.FromInt(10000), Currency: "KRW"},
		Effect:    policymodels.EffectRequireApproval, ApprovalLevel: 1, Enabled: true,
	}))
	resolver, err := scope.NewResolver(policies, policies, scope.WithLogger(discard))
	require.NoError(t, err)
	gr, err := guardrail.NewService(resolver, policies, guardrail.WithLogger(discard))
	require.NoError(t, err)

	cases := casestore.NewInMemory()
	require.NoError(t, cases.Put(h.ctx, casemodels.Case{
		ID: h.caseID, TenantID: h.tenantID, CaseType: "DUPLICATE_INVOICE",
		CompanyCode: "1000", Currency: "KRW", State: casemodels.State{},
	}))

	h.outbox = outboxstore.NewInMemory()
	h.audits = auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(h.audits, publisher.WithLogger(discard))
	t.Cleanup(pub.Close)

	gate := NewActionGate()
	h.actions = actionservice.New(actionstore.NewInMemory(), cases, gr, gate,
		outboxservice.New(h.outbox, pub, outboxservice.WithLogger(discard)),
		pub, actionservice.WithLogger(discard))
	h.approvals = approvalservice.New(approvalstore.NewInMemory(), h.actions, pub,
		approvalservice.WithLogger(discard))
	gate.Bind(h.approvals)
	return h
}

func (h *harness) proposeAboveThreshold(t *testing.T) *actionmodels.Action {
	t.Helper()
	res, err := h.actions.Propose(h.ctx, actionservice.ProposeCommand{
		TenantID:   h.tenantID,
		ProposedBy: h.userID,
		CaseID:     h.caseID,
		ActionType: effects.PaymentBlock,
		Payload:    json.RawMessage(`{"amount":15000,"currency":"KRW","reason":"duplicate"}`),
	})
	require.NoError(t, err)
	require.True(t, res.RequiresApproval)
	require.Equal(t, actionmodels.StatusPendingApproval, res.Action.Status)
	require.NotNil(t, res.Action.ApprovalRequestID)
	return res.Action
}

func (h *harness) deliverable(t *testing.T) []*outboxmodels.Message {
	t.Helper()
	msgs, err := h.outbox.Claim(h.ctx, requestcontext.Now(h.ctx), time.Second, 100, 5)
	require.NoError(t, err)
	return msgs
}

func (h *harness) command(a *actionmodels.Action) approvalservice.DecideCommand {
	return approvalservice.DecideCommand{
		RequestID:        *a.ApprovalRequestID,
		CallerTenantID:   h.tenantID,
		CallerUserID:     h.userID,
		VerifiedTenantID: h.tenantID,
		VerifiedUserID:   h.userID,
	}
}

func TestApproveExecutesOnce(t *testing.T) {
	h := newHarness(t)
	a := h.proposeAboveThreshold(t)

	first, err := h.approvals.Approve(h.ctx, h.command(a))
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)

	second, err := h.approvals.Approve(h.ctx, h.command(a))
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)

	got, err := h.actions.Get(h.ctx, h.tenantID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, actionmodels.StatusExecuted, got.Status)
	assert.Len(t, h.deliverable(t), 1, "one downstream execution")
	assert.Len(t, h.audits.ByType(audit.EventApprovalApproved), 1)
	assert.Len(t, h.audits.ByType(audit.EventActionExecuted), 1)
}

func TestConcurrentApprovalsExecuteOnce(t *testing.T) {
	h := newHarness(t)
	a := h.proposeAboveThreshold(t)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.approvals.Approve(h.ctx, h.command(a))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, h.deliverable(t), 1)
	assert.Len(t, h.audits.ByType(audit.EventActionExecuted), 1)
	assert.Len(t, h.audits.ByType(audit.EventApprovalApproved), 1)
}

func TestRejectCancelsAction(t *testing.T) {
	h := newHarness(t)
	a := h.proposeAboveThreshold(t)

	cmd := h.command(a)
	cmd.Reason = "vendor confirmed"
	res, err := h.approvals.Reject(h.ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, approvalmodels.StatusRejected, res.Request.Status)

	got, err := h.actions.Get(h.ctx, h.tenantID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, actionmodels.StatusCanceled, got.Status)
	assert.Empty(t, h.deliverable(t))
}

func TestUnboundGateFails(t *testing.T) {
	err := NewActionGate().Open(context.Background(), actionservice.ApprovalOpening{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExternalDependency))
}
