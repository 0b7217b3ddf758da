// Package credential keeps WebAuthn credential bookkeeping and session
// encryption key (SEK) issuance. It is a peripheral collaborator of the
// relay core: it never reaches into relay state and only talks to it
// through the event-dispatch contract.
package credential

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one registered passkey credential with its SEK material.
type Record struct {
	CredentialID string
	Username     string
	// BrowserIdentityKey is stored opaquely; the server never evaluates it.
	BrowserIdentityKey json.RawMessage
	PublicKey          []byte
	SignCount          uint32
	EncryptedSEK       string
	IV                 string
	CreatedAt          time.Time
}

// Store persists credential records.
//
// Requirements:
//   - Save overwrites an existing credential id (re-registration wins)
//   - Get returns ErrCredentialNotFound for unknown ids
//   - ListIDs is ordered by creation time
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, credentialID string) (Record, error)
	ListIDs(ctx context.Context) ([]string, error)
	HasUser(ctx context.Context, username string) (bool, error)
	Close() error
}
