package credential

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*chi.Mux, *InMemoryStore) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewInMemoryStore()
	svc := NewService(log, store, nil)
	h := NewHandler(log, svc)

	r := chi.NewRouter()
	h.Register(r)
	return r, store
}

func doReq(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestCheckPasskey(t *testing.T) {
	r, store := newTestHandler(t)

	rr := doReq(t, r, http.MethodGet, "/check-passkey/alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var out checkPasskeyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.False(t, out.HasPasskey)

	require.NoError(t, store.Save(httptest.NewRequest("GET", "/", nil).Context(), Record{
		CredentialID: "cred-1",
		Username:     "alice",
		CreatedAt:    time.Now().UTC(),
	}))

	rr = doReq(t, r, http.MethodGet, "/check-passkey/alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.True(t, out.HasPasskey)
}

func TestRegisterPasskeyRejectsGarbage(t *testing.T) {
	r, _ := newTestHandler(t)

	rr := doReq(t, r, http.MethodPost, "/register-passkey", map[string]any{
		"username":   "alice",
		"credential": map[string]string{"id": "not-a-real-attestation"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var out errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "invalid_attestation", out.Error.Code)
}

func TestRegisterPasskeyRequiresCredential(t *testing.T) {
	r, _ := newTestHandler(t)

	rr := doReq(t, r, http.MethodPost, "/register-passkey", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetSEKRejectsGarbage(t *testing.T) {
	r, _ := newTestHandler(t)

	rr := doReq(t, r, http.MethodPost, "/get-sek", map[string]any{
		"assertion": map[string]string{"id": "nope"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var out errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "invalid_assertion", out.Error.Code)
}

func TestGetSEKRequiresAssertion(t *testing.T) {
	r, _ := newTestHandler(t)

	rr := doReq(t, r, http.MethodPost, "/get-sek", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListCredentials(t *testing.T) {
	r, store := newTestHandler(t)

	rr := doReq(t, r, http.MethodGet, "/list-credentials", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var out listCredentialsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.NotNil(t, out.CredentialIDs)
	assert.Empty(t, out.CredentialIDs)

	ctx := httptest.NewRequest("GET", "/", nil).Context()
	require.NoError(t, store.Save(ctx, Record{CredentialID: "cred-1", CreatedAt: time.Now().UTC()}))
	require.NoError(t, store.Save(ctx, Record{CredentialID: "cred-2", CreatedAt: time.Now().UTC().Add(time.Second)}))

	rr = doReq(t, r, http.MethodGet, "/list-credentials", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, []string{"cred-1", "cred-2"}, out.CredentialIDs)
}

func TestRandomB64(t *testing.T) {
	t.Parallel()

	a, err := randomB64(32)
	require.NoError(t, err)
	b, err := randomB64(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43) // 32 bytes, unpadded base64url
}
