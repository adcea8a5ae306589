package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actiongate/internal/outbox/service"
	"actiongate/internal/outbox/store"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/audit/publisher"
	auditmemory "actiongate/pkg/platform/audit/store/memory"
	"actiongate/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	pub := publisher.NewPublisher(auditmemory.NewInMemoryStore())
	t.Cleanup(pub.Close)
	svc := service.New(store.NewInMemory(), pub)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func withTenant(req *http.Request, tenant string) *http.Request {
	req.Header.Set(TenantHeader, tenant)
	return req
}

func TestOutboxHandlers(t *testing.T) {
	router := newRouter(t)
	tenant := uuid.NewString()

	enqueue := func(t *testing.T) *MessageResponse {
		req := withTenant(testutil.NewJSONRequest(t, http.MethodPost, "/integration/outbox", map[string]any{
			"targetSystem": "erp",
			"eventType":    "ACTION_EXECUTED",
			"eventKey":     "a-1:EXECUTED",
			"payload":      map[string]any{"amount": 5000},
		}), tenant)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		return testutil.UnmarshalResponse[MessageResponse](t, rr)
	}

	t.Run("enqueue creates a pending message", func(t *testing.T) {
		msg := enqueue(t)
		assert.Equal(t, "PENDING", msg.Status)
		assert.Equal(t, tenant, msg.TenantID)
		assert.JSONEq(t, `{"amount":5000}`, string(msg.Payload))

		rr := testutil.DoRequest(router, withTenant(testutil.NewRequest(t, http.MethodGet, "/integration/outbox/"+msg.ID), tenant))
		testutil.AssertStatusOK(t, rr)
	})

	t.Run("result replay is reported as already processed", func(t *testing.T) {
		msg := enqueue(t)
		path := "/integration/outbox/" + msg.ID + "/result"
		body := map[string]string{"status": "PROCESSED", "resultMessage": "ok"}

		first := testutil.DoRequest(router, withTenant(testutil.NewJSONRequest(t, http.MethodPost, path, body), tenant))
		testutil.AssertStatusOK(t, first)
		assert.False(t, testutil.UnmarshalResponse[MessageResponse](t, first).AlreadyProcessed)

		second := testutil.DoRequest(router, withTenant(testutil.NewJSONRequest(t, http.MethodPost, path, body), tenant))
		testutil.AssertStatusOK(t, second)
		replay := testutil.UnmarshalResponse[MessageResponse](t, second)
		assert.True(t, replay.AlreadyProcessed)
		assert.Equal(t, "PROCESSED", replay.Status)

		regress := testutil.DoRequest(router, withTenant(testutil.NewJSONRequest(t, http.MethodPost, path,
			map[string]string{"status": "FAILED"}), tenant))
		testutil.AssertDomainError(t, regress, dErrors.CodeInvalidState)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		rr := testutil.DoRequest(router, withTenant(testutil.NewJSONRequest(t, http.MethodPost,
			"/integration/outbox/"+uuid.NewString()+"/result", map[string]string{"status": "PROCESSED"}), tenant))
		testutil.AssertDomainError(t, rr, dErrors.CodeNotFound)
	})

	t.Run("other tenants cannot read the message", func(t *testing.T) {
		msg := enqueue(t)
		rr := testutil.DoRequest(router, withTenant(testutil.NewRequest(t, http.MethodGet, "/integration/outbox/"+msg.ID), uuid.NewString()))
		testutil.AssertDomainError(t, rr, dErrors.CodeNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/integration/outbox", map[string]string{}))
		testutil.AssertDomainError(t, rr, dErrors.CodeBadRequest)

		rr = testutil.DoRequest(router, withTenant(testutil.NewJSONRequest(t, http.MethodPost, "/integration/outbox",
			map[string]string{"targetSystem": "erp", "eventType": "X"}), tenant))
		testutil.AssertDomainError(t, rr, dErrors.CodeValidation)

		msg := enqueue(t)
		rr = testutil.DoRequest(router, withTenant(testutil.NewJSONRequest(t, http.MethodPost,
			"/integration/outbox/"+msg.ID+"/result", map[string]string{"status": "PENDING"}), tenant))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
