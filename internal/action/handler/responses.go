package handler

import (
	"encoding/json"
	"time"

	"actiongate/internal/action/models"
	"actiongate/internal/action/service"
	casemodels "actiongate/internal/cases/models"
)

// ProposeResponse is the HTTP response for POST /actions/propose.
type ProposeResponse struct {
	ActionID              string   `json:"actionId"`
	Status                string   `json:"status"`
	RequiresApproval      bool     `json:"requiresApproval"`
	GuardrailResult       string   `json:"guardrailResult"`
	RequiredApprovalLevel int      `json:"requiredApprovalLevel,omitempty"`
	ViolatedRules         []string `json:"violatedRules"`
	ApprovalRequestID     string   `json:"approvalRequestId,omitempty"`
	FailureReason         string   `json:"failureReason,omitempty"`
}

func toProposeResponse(res *service.ProposeResult) *ProposeResponse {
	resp := &ProposeResponse{
		ActionID:              res.Action.ID.String(),
		Status:                string(res.Action.Status),
		RequiresApproval:      res.RequiresApproval,
		GuardrailResult:       string(res.Guardrail.Verdict),
		RequiredApprovalLevel: res.Guardrail.RequiredApprovalLevel,
		ViolatedRules:         res.Guardrail.ViolatedRules,
		FailureReason:         res.Action.FailureReason,
	}
	if resp.ViolatedRules == nil {
		resp.ViolatedRules = []string{}
	}
	if res.Action.ApprovalRequestID != nil {
		resp.ApprovalRequestID = res.Action.ApprovalRequestID.String()
	}
	return resp
}

// SimulateResponse is the HTTP response for POST /actions/simulate.
type SimulateResponse struct {
	BeforePreview    casemodels.State `json:"beforePreview"`
	AfterPreview     casemodels.State `json:"afterPreview"`
	ValidationErrors []string         `json:"validationErrors"`
	PredictedImpact  ImpactResponse   `json:"predictedImpact"`
}

type ImpactResponse struct {
	Amount                string   `json:"amount,omitempty"`
	Currency              string   `json:"currency,omitempty"`
	CompanyCode           string   `json:"companyCode,omitempty"`
	ChangedFields         []string `json:"changedFields"`
	GuardrailResult       string   `json:"guardrailResult,omitempty"`
	RequiredApprovalLevel int      `json:"requiredApprovalLevel,omitempty"`
	ViolatedRules         []string `json:"violatedRules,omitempty"`
	OutOfScope            bool     `json:"outOfScope"`
}

func toSimulateResponse(res *service.SimulateResult) *SimulateResponse {
	return &SimulateResponse{
		BeforePreview:    res.BeforePreview,
		AfterPreview:     res.AfterPreview,
		ValidationErrors: res.ValidationErrors,
		PredictedImpact: ImpactResponse{
			Amount:                res.PredictedImpact.Amount,
			Currency:              res.PredictedImpact.Currency,
			CompanyCode:           res.PredictedImpact.CompanyCode,
			ChangedFields:         res.PredictedImpact.ChangedFields,
			GuardrailResult:       string(res.PredictedImpact.Verdict),
			RequiredApprovalLevel: res.PredictedImpact.RequiredApprovalLevel,
			ViolatedRules:         res.PredictedImpact.ViolatedRules,
			OutOfScope:            res.PredictedImpact.OutOfScope,
		},
	}
}

// ActionResponse is the HTTP view of an action.
type ActionResponse struct {
	ActionID          string          `json:"actionId"`
	CaseID            string          `json:"caseId"`
	ActionType        string          `json:"actionType"`
	Payload           json.RawMessage `json:"payload"`
	Status            string          `json:"status"`
	ProposedBy        string          `json:"proposedBy,omitempty"`
	ApprovalRequestID string          `json:"approvalRequestId,omitempty"`
	Before            json.RawMessage `json:"before,omitempty"`
	After             json.RawMessage `json:"after,omitempty"`
	Diff              json.RawMessage `json:"diff,omitempty"`
	FailureReason     string          `json:"failureReason,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	ExecutedAt        *time.Time      `json:"executedAt,omitempty"`
}

func toActionResponse(a *models.Action) *ActionResponse {
	resp := &ActionResponse{
		ActionID:      a.ID.String(),
		CaseID:        a.CaseID.String(),
		ActionType:    a.ActionType,
		Payload:       a.Payload,
		Status:        string(a.Status),
		ProposedBy:    a.ProposedBy,
		Before:        a.Before,
		After:         a.After,
		Diff:          a.Diff,
		FailureReason: a.FailureReason,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		ExecutedAt:    a.ExecutedAt,
	}
	if a.ApprovalRequestID != nil {
		resp.ApprovalRequestID = a.ApprovalRequestID.String()
	}
	return resp
}
