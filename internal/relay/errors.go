package relay

import "errors"

// Sentinel errors. Handlers discriminate on these to pick HTTP status codes
// without leaking internals.
var (
	ErrNotFound           = errors.New("relay: not found")
	ErrInvalidInput       = errors.New("relay: invalid input")
	ErrVerificationFailed = errors.New("relay: verification failed")
)
