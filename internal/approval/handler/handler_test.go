package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"actiongate/internal/approval/handler/mocks"
	"actiongate/internal/approval/models"
	"actiongate/internal/approval/service"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/middleware/auth"
	"actiongate/pkg/testutil"
)

type fixture struct {
	svc       *mocks.MockService
	router    http.Handler
	identity  auth.VerifiedIdentity
	requestID id.ApprovalRequestID
	actionID  id.ActionID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		svc: mocks.NewMockService(gomock.NewController(t)),
		identity: auth.VerifiedIdentity{
			TenantID: id.TenantID(uuid.New()),
			UserID:   id.UserID(uuid.New()),
		},
		requestID: id.ApprovalRequestID(uuid.New()),
		actionID:  id.ActionID(uuid.New()),
	}
	r := chi.NewRouter()
	New(f.svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	f.router = r
	return f
}

func (f fixture) request(t *testing.T, method, path string, body any, tenant, user string) *http.Request {
	var req *http.Request
	if body == nil {
		req = testutil.NewRequest(t, method, path)
	} else {
		req = testutil.NewJSONRequest(t, method, path, body)
	}
	req = testutil.WithIdentity(req, f.identity.TenantID, f.identity.UserID)
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	return req
}

func (f fixture) decided(status models.Status, reason string) *models.Request {
	now := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)
	by := f.identity.UserID
	return &models.Request{
		ID: f.requestID, TenantID: f.identity.TenantID, ActionID: f.actionID,
		Status: status, Reason: reason, DecidedBy: &by, DecidedAt: &now, CreatedAt: now,
	}
}

func TestHandleApprove(t *testing.T) {
	t.Run("passes claimed and verified identity through", func(t *testing.T) {
		f := newFixture(t)
		f.svc.EXPECT().Approve(gomock.Any(), service.DecideCommand{
			RequestID:        f.requestID,
			CallerTenantID:   f.identity.TenantID,
			CallerUserID:     f.identity.UserID,
			VerifiedTenantID: f.identity.TenantID,
			VerifiedUserID:   f.identity.UserID,
		}).Return(&service.DecisionResult{Request: f.decided(models.StatusApproved, "")}, nil)

		rr := testutil.DoRequest(f.router, f.request(t, http.MethodPost, "/approvals/approve/"+f.requestID.String(),
			map[string]string{"userId": f.identity.UserID.String()},
			f.identity.TenantID.String(), f.identity.UserID.String()))

		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[DecisionResponse](t, rr)
		assert.Equal(t, f.requestID.String(), resp.SessionID)
		assert.Equal(t, "approved", resp.Status)
		assert.False(t, resp.AlreadyProcessed)
	})

	t.Run("replay answers 200 with alreadyProcessed", func(t *testing.T) {
		f := newFixture(t)
		f.svc.EXPECT().Approve(gomock.Any(), gomock.Any()).
			Return(&service.DecisionResult{Request: f.decided(models.StatusRejected, "no"), AlreadyProcessed: true}, nil)

		rr := testutil.DoRequest(f.router, f.request(t, http.MethodPost, "/approvals/approve/"+f.requestID.String(),
			nil, f.identity.TenantID.String(), f.identity.UserID.String()))

		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[DecisionResponse](t, rr)
		assert.True(t, resp.AlreadyProcessed)
		assert.Equal(t, "rejected", resp.Status)
	})

	t.Run("body user differing from header never matches", func(t *testing.T) {
		f := newFixture(t)
		f.svc.EXPECT().Approve(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, cmd service.DecideCommand) (*service.DecisionResult, error) {
				assert.True(t, cmd.CallerUserID.IsNil())
				return nil, dErrors.New(dErrors.CodeIdentityMismatch, "caller identity does not match credential")
			})

		rr := testutil.DoRequest(f.router, f.request(t, http.MethodPost, "/approvals/approve/"+f.requestID.String(),
			map[string]string{"userId": uuid.NewString()},
			f.identity.TenantID.String(), f.identity.UserID.String()))
		testutil.AssertDomainError(t, rr, dErrors.CodeIdentityMismatch)
	})

	t.Run("missing user header", func(t *testing.T) {
		f := newFixture(t)
		rr := testutil.DoRequest(f.router, f.request(t, http.MethodPost, "/approvals/approve/"+f.requestID.String(),
			nil, f.identity.TenantID.String(), ""))
		testutil.AssertDomainError(t, rr, dErrors.CodeBadRequest)
	})

	t.Run("malformed request id", func(t *testing.T) {
		f := newFixture(t)
		rr := testutil.DoRequest(f.router, f.request(t, http.MethodPost, "/approvals/approve/abc",
			nil, f.identity.TenantID.String(), f.identity.UserID.String()))
		testutil.AssertDomainError(t, rr, dErrors.CodeInvalidInput)
	})

	t.Run("expired request", func(t *testing.T) {
		f := newFixture(t)
		f.svc.EXPECT().Approve(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "approval request expired"))
		rr := testutil.DoRequest(f.router, f.request(t, http.MethodPost, "/approvals/approve/"+f.requestID.String(),
			nil, f.identity.TenantID.String(), f.identity.UserID.String()))
		testutil.AssertDomainError(t, rr, dErrors.CodeNotFound)
	})
}

func TestHandleReject(t *testing.T) {
	f := newFixture(t)
	f.svc.EXPECT().Reject(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, cmd service.DecideCommand) (*service.DecisionResult, error) {
			assert.Equal(t, "duplicate already paid", cmd.Reason)
			return &service.DecisionResult{Request: f.decided(models.StatusRejected, cmd.Reason)}, nil
		})

	rr := testutil.DoRequest(f.router, f.request(t, http.MethodPost, "/approvals/reject/"+f.requestID.String(),
		map[string]string{"userId": f.identity.UserID.String(), "reason": " duplicate already paid "},
		f.identity.TenantID.String(), f.identity.UserID.String()))

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[DecisionResponse](t, rr)
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, "duplicate already paid", resp.Reason)
}

func TestHandleRejectReasonCountsCharacters(t *testing.T) {
	testutil.Given(t, "a reason of 500 Hangul syllables", func(t *testing.T) {
		f := newFixture(t)
		reason := strings.Repeat("가", 500)
		f.svc.EXPECT().Reject(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, cmd service.DecideCommand) (*service.DecisionResult, error) {
				assert.Equal(t, reason, cmd.Reason)
				return &service.DecisionResult{Request: f.decided(models.StatusRejected, cmd.Reason)}, nil
			})
		rr := testutil.DoRequest(f.router, f.request(t, http.MethodPost, "/approvals/reject/"+f.requestID.String(),
			map[string]string{"reason": reason}, f.identity.TenantID.String(), f.identity.UserID.String()))
		testutil.AssertStatusOK(t, rr)
	})

	testutil.Given(t, "a reason of 501 Hangul syllables", func(t *testing.T) {
		f := newFixture(t)
		rr := testutil.DoRequest(f.router, f.request(t, http.MethodPost, "/approvals/reject/"+f.requestID.String(),
			map[string]string{"reason": strings.Repeat("가", 501)}, f.identity.TenantID.String(), f.identity.UserID.String()))
		testutil.AssertDomainError(t, rr, dErrors.CodeValidation)
	})
}

func TestHandleGet(t *testing.T) {
	f := newFixture(t)
	f.svc.EXPECT().Get(gomock.Any(), f.identity.TenantID, f.requestID).
		Return(f.decided(models.StatusApproved, ""), nil)

	rr := testutil.DoRequest(f.router, f.request(t, http.MethodGet, "/approvals/"+f.requestID.String(),
		nil, f.identity.TenantID.String(), ""))
	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[RequestResponse](t, rr)
	assert.Equal(t, "APPROVED", resp.Status)
	assert.Equal(t, f.identity.UserID.String(), resp.DecidedBy)

	rr = testutil.DoRequest(f.router, f.request(t, http.MethodGet, "/approvals/"+f.requestID.String(),
		nil, uuid.NewString(), ""))
	testutil.AssertDomainError(t, rr, dErrors.CodeIdentityMismatch)
}
