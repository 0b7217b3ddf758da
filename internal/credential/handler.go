package credential

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const defaultMaxBodyBytes = 64 << 10 // attestations carry CBOR blobs

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type registerPasskeyRequest struct {
	Username           string          `json:"username"`
	Credential         json.RawMessage `json:"credential"`
	BrowserIdentityKey json.RawMessage `json:"browser_identity_key,omitempty"`
}

type getSEKRequest struct {
	Assertion json.RawMessage `json:"assertion"`
	SessionID string          `json:"session_id,omitempty"`
}

type checkPasskeyResponse struct {
	HasPasskey bool `json:"has_passkey"`
}

type listCredentialsResponse struct {
	CredentialIDs []string `json:"credential_ids"`
}

// Handler exposes passkey registration and SEK retrieval over HTTP JSON.
type Handler struct {
	log *slog.Logger
	svc *Service
}

// NewHandler constructs the credential API handler.
func NewHandler(log *slog.Logger, svc *Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc}
}

// Register wires the credential routes onto r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/check-passkey/{username}", h.handleCheckPasskey)
	r.Post("/register-passkey", h.handleRegisterPasskey)
	r.Post("/get-sek", h.handleGetSEK)
	r.Get("/list-credentials", h.handleListCredentials)
}

func (h *Handler) handleCheckPasskey(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "username is required")
		return
	}

	has, err := h.svc.CheckPasskey(r.Context(), username)
	if err != nil {
		h.log.Error("credential.check_passkey.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, checkPasskeyResponse{HasPasskey: has})
}

func (h *Handler) handleRegisterPasskey(w http.ResponseWriter, r *http.Request) {
	var req registerPasskeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if len(req.Credential) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "credential is required")
		return
	}

	mat, err := h.svc.RegisterPasskey(r.Context(), req.Username, req.Credential, req.BrowserIdentityKey)
	if err != nil {
		if errors.Is(err, ErrInvalidAttestation) {
			writeError(w, http.StatusBadRequest, "invalid_attestation", "could not parse attestation")
			return
		}
		h.log.Error("credential.register.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, mat)
}

func (h *Handler) handleGetSEK(w http.ResponseWriter, r *http.Request) {
	var req getSEKRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if len(req.Assertion) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "assertion is required")
		return
	}

	mat, err := h.svc.GetSEK(r.Context(), req.Assertion, req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAssertion):
			writeError(w, http.StatusBadRequest, "invalid_assertion", "could not parse assertion")
		case errors.Is(err, ErrCredentialNotFound):
			writeError(w, http.StatusNotFound, "not_found", "unknown credential")
		default:
			h.log.Error("credential.get_sek.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, mat)
}

func (h *Handler) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListCredentials(r.Context())
	if err != nil {
		h.log.Error("credential.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, listCredentialsResponse{CredentialIDs: ids})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, defaultMaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
