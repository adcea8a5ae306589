package adapters

import (
	"context"
	"sync/atomic"

	actionservice "actiongate/internal/action/service"
	"actiongate/internal/approval/models"
	approvalservice "actiongate/internal/approval/service"
	dErrors "actiongate/pkg/domain-errors"
)

// approvalOpener is the part of the approval service the lifecycle needs.
// Defined locally so the action package never imports approval.
type approvalOpener interface {
	Open(ctx context.Context, in approvalservice.OpenInput) (*models.Request, error)
}

// ActionGate adapts the approval service to actionservice.ApprovalGate.
// The approval service resumes actions, so it is built after the action
// service and bound here afterwards.
type ActionGate struct {
	opener atomic.Pointer[approvalOpener]
}

func NewActionGate() *ActionGate {
	return &ActionGate{}
}

// Bind sets the approval service the gate forwards to.
func (g *ActionGate) Bind(svc approvalOpener) {
	g.opener.Store(&svc)
}

func (g *ActionGate) Open(ctx context.Context, in actionservice.ApprovalOpening) error {
	opener := g.opener.Load()
	if opener == nil {
		return dErrors.New(dErrors.CodeExternalDependency, "approval service is not available")
	}
	_, err := (*opener).Open(ctx, approvalservice.OpenInput{
		RequestID:     in.RequestID,
		TenantID:      in.TenantID,
		ActionID:      in.ActionID,
		OwnerUserID:   in.OwnerUserID,
		RequiredLevel: in.RequiredLevel,
	})
	return err
}
