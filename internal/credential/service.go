package credential

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	v1 "stronghold/contracts/stepup/v1"

	"github.com/go-webauthn/webauthn/protocol"
)

const sekBytes = 32 // 256-bit session encryption key

// Notifier is the relay's event-dispatch contract. The credential
// subsystem only pushes domain events through it, never reads relay state.
type Notifier interface {
	Dispatch(targetID string, ev v1.Event)
}

// SEKMaterial is the encrypted session key envelope returned to clients.
type SEKMaterial struct {
	EncryptedSEK string `json:"encryptedSEK"`
	IV           string `json:"iv"`
}

// Service implements passkey registration and SEK lookup.
type Service struct {
	log   *slog.Logger
	store Store
	relay Notifier
}

// NewService constructs the credential service. relay may be nil when the
// caller has no interest in completion events.
func NewService(log *slog.Logger, store Store, relay Notifier) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, store: store, relay: relay}
}

// CheckPasskey reports whether username has a registered credential.
func (s *Service) CheckPasskey(ctx context.Context, username string) (bool, error) {
	return s.store.HasUser(ctx, strings.TrimSpace(username))
}

// ListCredentials returns known credential ids.
func (s *Service) ListCredentials(ctx context.Context) ([]string, error) {
	return s.store.ListIDs(ctx)
}

// RegisterPasskey parses a WebAuthn attestation response, extracts the
// credential id and public key, mints fresh SEK material, and stores the
// record keyed by credential id.
//
// TODO: encrypt the SEK with the browser identity key before returning it;
// it currently goes back as minted.
func (s *Service) RegisterPasskey(ctx context.Context, username string, attestation []byte, bik json.RawMessage) (SEKMaterial, error) {
	pcc, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(attestation))
	if err != nil {
		return SEKMaterial{}, fmt.Errorf("%w: %v", ErrInvalidAttestation, err)
	}

	authData := pcc.Response.AttestationObject.AuthData
	credentialID := pcc.ID
	if credentialID == "" {
		credentialID = base64.RawURLEncoding.EncodeToString(authData.AttData.CredentialID)
	}
	if credentialID == "" {
		return SEKMaterial{}, fmt.Errorf("%w: missing credential id", ErrInvalidAttestation)
	}

	sek, err := randomB64(sekBytes)
	if err != nil {
		return SEKMaterial{}, err
	}
	iv, err := randomB64(12)
	if err != nil {
		return SEKMaterial{}, err
	}

	rec := Record{
		CredentialID:       credentialID,
		Username:           strings.TrimSpace(username),
		BrowserIdentityKey: bik,
		PublicKey:          authData.AttData.CredentialPublicKey,
		SignCount:          authData.Counter,
		EncryptedSEK:       sek,
		IV:                 iv,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return SEKMaterial{}, err
	}

	s.log.Info("credential.register", "credential_id", credentialID, "username", rec.Username)
	return SEKMaterial{EncryptedSEK: sek, IV: iv}, nil
}

// GetSEK parses a WebAuthn assertion, looks up the credential, and returns
// its SEK material. When sessionRef names a live relay target, success also
// fans an auth_complete event out through the relay.
//
// TODO: verify the assertion signature against the stored public key.
func (s *Service) GetSEK(ctx context.Context, assertion []byte, sessionRef string) (SEKMaterial, error) {
	pca, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(assertion))
	if err != nil {
		return SEKMaterial{}, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	rec, err := s.store.Get(ctx, pca.ID)
	if err != nil {
		return SEKMaterial{}, err
	}

	if ref := strings.TrimSpace(sessionRef); ref != "" && s.relay != nil {
		s.relay.Dispatch(ref, v1.Event{Kind: v1.KindAuthComplete})
	}

	s.log.Info("credential.get_sek", "credential_id", rec.CredentialID)
	return SEKMaterial{EncryptedSEK: rec.EncryptedSEK, IV: rec.IV}, nil
}

func randomB64(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("credential: entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
