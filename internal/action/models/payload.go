package models

import (
	"bytes"
	"encoding/json"

	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/money"
	"actiongate/pkg/platform/codes"
)

// Params are the fields of an action payload the lifecycle understands. The
// rest of the payload is carried through opaquely.
type Params struct {
	Amount      money.Amount `json:"amount"`
	Currency    string       `json:"currency"`
	CompanyCode string       `json:"companyCode"`
	Reason      string       `json:"reason"`
	DuplicateOf string       `json:"duplicateOf"`
}

// ParsePayload decodes the known fields of raw. An empty payload is valid.
func ParsePayload(raw json.RawMessage) (Params, error) {
	var p Params
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p, nil
	}
	if trimmed[0] != '{' {
		return p, dErrors.New(dErrors.CodeValidation, "payload must be a JSON object")
	}
	if err := json.Unmarshal(trimmed, &p); err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return p, err
		}
		return p, dErrors.Wrap(err, dErrors.CodeValidation, "payload is malformed")
	}
	p.Currency = codes.Code(p.Currency)
	p.CompanyCode = codes.Code(p.CompanyCode)
	if p.Amount.IsNegative() {
		return p, dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}
	if p.Currency != "" && len(p.Currency) != 3 {
		return p, dErrors.New(dErrors.CodeValidation, "currency must be a three-letter code")
	}
	return p, nil
}
