// Package models holds the anomaly case an action operates on. Cases are
// created by the detection pipeline; the action lifecycle only reads them and
// rewrites their state document when an effect executes.
package models

import (
	"maps"
	"time"

	id "actiongate/pkg/domain"
)

// State is the case's record snapshot: payment block flags, holds, duplicate
// links. Values are plain JSON types.
type State map[string]any

// Clone returns a shallow copy; effects never mutate the state they read.
func (s State) Clone() State {
	out := make(State, len(s))
	maps.Copy(out, s)
	return out
}

// Bool reads a flag, treating absent or non-bool values as false.
func (s State) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// String reads a string field.
func (s State) String(key string) string {
	v, _ := s[key].(string)
	return v
}

type Case struct {
	ID          id.CaseID     `json:"id" yaml:"id"`
	TenantID    id.TenantID   `json:"tenant_id" yaml:"tenant_id"`
	CaseType    string        `json:"case_type" yaml:"case_type"`
	ProfileID   *id.ProfileID `json:"profile_id,omitempty" yaml:"profile_id,omitempty"`
	CompanyCode string        `json:"company_code,omitempty" yaml:"company_code"`
	Currency    string        `json:"currency,omitempty" yaml:"currency"`
	State       State         `json:"state" yaml:"state"`
	UpdatedAt   time.Time     `json:"updated_at" yaml:"-"`
}
