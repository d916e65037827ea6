package identity

import "errors"

// Sentinel kinds for identity errors.
var (
	ErrUnauthorized = errors.New("unauthorized")
)
