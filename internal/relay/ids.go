package relay

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// newULID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable, which keeps log lines greppable.
func newULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewSessionID returns the opaque id handed to the primary browser.
func NewSessionID(now time.Time) (string, error) {
	return newULID(now)
}

// NewClientID returns the opaque id assigned to an anonymous SSE client.
func NewClientID(now time.Time) (string, error) {
	return newULID(now)
}

// NewStepUpID returns the opaque token given to the secondary device.
// It is distinct from the session id so the device never learns it.
func NewStepUpID(now time.Time) (string, error) {
	return newULID(now)
}
