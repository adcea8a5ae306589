package audit

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	audit "actiongate/pkg/platform/audit"
	"actiongate/pkg/platform/audit/publisher"
	auditmemory "actiongate/pkg/platform/audit/store/memory"
	"actiongate/pkg/testutil"
)

func TestHandleList(t *testing.T) {
	tenantID, userID := id.TenantID(uuid.New()), id.UserID(uuid.New())
	actionID := uuid.NewString()

	store := auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(store, publisher.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer pub.Close()

	req := testutil.NewRequest(t, http.MethodGet, "/")
	for _, typ := range []audit.EventType{audit.EventActionProposed, audit.EventActionPendingApproval} {
		pub.Log(req.Context(), audit.Event{
			TenantID: tenantID, Type: typ, ResourceType: audit.ResourceAction, ResourceID: actionID,
			ActorType: audit.ActorAgent, ActorID: userID.String(), Outcome: audit.OutcomeSuccess,
		})
	}
	pub.Log(req.Context(), audit.Event{
		TenantID: id.TenantID(uuid.New()), Type: audit.EventActionProposed, ResourceType: audit.ResourceAction,
		ResourceID: actionID, ActorType: audit.ActorAgent, Outcome: audit.OutcomeSuccess,
	})

	r := chi.NewRouter()
	New(pub, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)

	call := func(path, tenant string) *http.Request {
		req := testutil.WithIdentity(testutil.NewRequest(t, http.MethodGet, path), tenantID, userID)
		req.Header.Set(TenantHeader, tenant)
		return req
	}

	t.Run("lists the tenant's events in order", func(t *testing.T) {
		rr := testutil.DoRequest(r, call("/audit/ACTION/"+actionID, tenantID.String()))
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[ListResponse](t, rr)
		require.Len(t, resp.Events, 2)
		assert.Equal(t, "ACTION_PROPOSED", resp.Events[0].Type)
		assert.Equal(t, "ACTION_PENDING_APPROVAL", resp.Events[1].Type)
		assert.Equal(t, "operations", resp.Events[0].Category)
	})

	t.Run("unknown resource type", func(t *testing.T) {
		rr := testutil.DoRequest(r, call("/audit/invoice/"+actionID, tenantID.String()))
		testutil.AssertDomainError(t, rr, dErrors.CodeValidation)
	})

	t.Run("tenant header mismatch", func(t *testing.T) {
		rr := testutil.DoRequest(r, call("/audit/action/"+actionID, uuid.NewString()))
		testutil.AssertDomainError(t, rr, dErrors.CodeIdentityMismatch)
	})
}
