package credential

import "errors"

var (
	ErrCredentialNotFound = errors.New("credential: not found")
	ErrInvalidAttestation = errors.New("credential: invalid attestation")
	ErrInvalidAssertion   = errors.New("credential: invalid assertion")
)
