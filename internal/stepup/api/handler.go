// Package stepupapi wires the step-up relay HTTP surface: session
// lifecycle, PIN verification, step-up indirection, and the polling
// fallback endpoint.
package stepupapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	v1 "stronghold/contracts/stepup/v1"
	"stronghold/internal/relay"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// validate is the package-level singleton; custom registrations must
// happen before the first Struct call.
var validate = validator.New()

// Handler exposes the relay core over HTTP JSON.
type Handler struct {
	log *slog.Logger
	cfg Config
	svc *relay.Service
}

// NewHandler constructs the step-up API handler.
func NewHandler(log *slog.Logger, cfg Config, svc *relay.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, cfg: cfg.withDefaults(), svc: svc}
}

// Register wires the step-up routes onto r.
func (h *Handler) Register(r chi.Router) {
	verifyRL := NewRateLimiter(h.cfg.VerifyRate, h.cfg.VerifyBurst)

	r.Post("/start-session", h.handleStartSession)
	r.Get("/join-session", h.handleJoinSession)
	r.Get("/get-pin-options", h.handlePinOptions)
	r.With(verifyRL.Limit).Post("/verify-pin", h.handleVerifyPin)
	r.Delete("/delete-session/{session_id}", h.handleDeleteSession)
	r.Get("/poll-updates/{id}", h.handlePollUpdates)
	r.Post("/initiate-step-up/{client_id}", h.handleInitiateStepUp)
	r.Post("/complete-step-up/{client_id}", h.handleCompleteStepUp)
	r.Post("/send-message/{step_up_id}", h.handleSendMessage)
}

// ---- handlers ----

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "username is required")
		return
	}

	info, err := h.svc.StartSession(req.Username)
	if err != nil {
		h.log.Error("api.start_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not start session")
		return
	}

	writeJSON(w, http.StatusOK, startSessionResponse{SessionID: info.SessionID, PIN: info.PIN})
}

func (h *Handler) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "username is required")
		return
	}

	sessionID, err := h.svc.JoinSession(username)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "no session for username")
		return
	}

	writeJSON(w, http.StatusOK, joinSessionResponse{SessionID: sessionID})
}

func (h *Handler) handlePinOptions(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.svc.ResolveSession(
		r.URL.Query().Get("session_id"),
		r.URL.Query().Get("username"),
	)
	if err != nil {
		h.writeRelayError(w, err)
		return
	}

	pins, err := h.svc.PinOptions(sessionID)
	if err != nil {
		h.writeRelayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pinOptionsResponse{Pins: pins, SessionID: sessionID})
}

func (h *Handler) handleVerifyPin(w http.ResponseWriter, r *http.Request) {
	var req verifyPinRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "pin is required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" && strings.TrimSpace(req.Username) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "session_id or username is required")
		return
	}

	sessionID, err := h.svc.ResolveSession(req.SessionID, req.Username)
	if err != nil {
		h.writeRelayError(w, err)
		return
	}

	if err := h.svc.VerifyPin(sessionID, req.PIN); err != nil {
		if errors.Is(err, relay.ErrVerificationFailed) {
			writeError(w, http.StatusBadRequest, "verification_failed", "pin mismatch")
			return
		}
		h.writeRelayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyPinResponse{SessionID: sessionID})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if strings.TrimSpace(sessionID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "session_id is required")
		return
	}

	h.svc.DeleteSession(sessionID)
	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func (h *Handler) handlePollUpdates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "id is required")
		return
	}

	events := h.svc.Queue().Drain(id)
	if events == nil {
		events = []v1.Event{}
	}
	writeJSON(w, http.StatusOK, pollResponse{Events: events})
}

func (h *Handler) handleInitiateStepUp(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")

	stepUpID, err := h.svc.InitiateStepUp(clientID)
	if err != nil {
		h.writeRelayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stepUpResponse{Status: "success", StepUpID: stepUpID})
}

func (h *Handler) handleCompleteStepUp(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")

	if err := h.svc.CompleteStepUp(clientID); err != nil {
		h.writeRelayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	stepUpID := chi.URLParam(r, "step_up_id")

	var req sendMessageRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "content is required")
		return
	}

	if err := h.svc.RelayMessage(stepUpID, req.Content); err != nil {
		h.writeRelayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

// writeRelayError maps relay sentinels to HTTP statuses. Unexpected faults
// become 500s with state left intact for retry.
func (h *Handler) writeRelayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relay.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "unknown id")
	case errors.Is(err, relay.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid request")
	case errors.Is(err, relay.ErrVerificationFailed):
		writeError(w, http.StatusBadRequest, "verification_failed", "pin mismatch")
	default:
		h.log.Error("api.internal", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
