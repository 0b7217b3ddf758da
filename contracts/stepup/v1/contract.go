// Package v1 defines the stronghold step-up relay wire contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between the server and its browser/mobile clients to keep
// the event protocol authoritative.
package v1

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a relay event on the wire.
type Kind string

// Event kinds (wire-stable).
const (
	// KindStepUpInitiated tells the waiting browser a step-up token was issued.
	// Data carries the step-up token for the secondary device.
	KindStepUpInitiated Kind = "step_up_initiated"

	// KindAuthComplete signals that the step-up proof succeeded.
	KindAuthComplete Kind = "auth_complete"

	// KindAuthFailed signals that the step-up proof failed.
	KindAuthFailed Kind = "auth_failed"

	// KindMobileMessage relays free-form content from the secondary device.
	KindMobileMessage Kind = "mobile_message"

	// KindCleanupSession terminates a push channel server-side.
	// It is internal: transports act on it but never forward it to clients.
	KindCleanupSession Kind = "cleanup_session"
)

// Event is the canonical relay event.
//
// Data is an opaque value chosen by the producer (a step-up token, a JSON
// blob, or empty). The relay never inspects it.
type Event struct {
	Kind Kind   `json:"event"`
	Data string `json:"data,omitempty"`
}

// Validate performs strict structural validation for an Event.
func (e Event) Validate() error {
	if strings.TrimSpace(string(e.Kind)) == "" {
		return errors.New("missing field: event")
	}
	switch e.Kind {
	case KindStepUpInitiated,
		KindAuthComplete,
		KindAuthFailed,
		KindMobileMessage,
		KindCleanupSession:
		return nil
	default:
		return fmt.Errorf("unknown event kind: %q", e.Kind)
	}
}

// Internal reports whether the event must never reach a client.
func (e Event) Internal() bool {
	return e.Kind == KindCleanupSession
}
