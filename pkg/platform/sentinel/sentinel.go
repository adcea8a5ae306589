package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
//   - ErrNotFound: row or key does not exist
//   - ErrConflict: a uniqueness constraint was hit
//   - ErrExpired: the record exists but is past its expiry
//   - ErrInvalidState: a conditional update found the row in another state
//   - ErrUnavailable: the backing store or broker cannot be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
