package relay

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Registry is the authoritative map of live sessions.
//
// Invariants:
//   - a username maps to at most one live session
//   - a session maps to exactly one live PIN (reissue overwrites)
//
// All methods are safe for concurrent use. State is process-local by
// design; a restart clears everything.
type Registry struct {
	mu        sync.Mutex
	byUser    map[string]string // username -> session id
	pins      map[string]string // session id -> current PIN
	pinDigits int
}

// NewRegistry constructs a Registry issuing PINs of the given width.
func NewRegistry(pinDigits int) *Registry {
	if pinDigits <= 0 {
		pinDigits = defaultPINDigits
	}
	return &Registry{
		byUser:    make(map[string]string),
		pins:      make(map[string]string),
		pinDigits: pinDigits,
	}
}

// SessionInfo is the result of starting (or re-entering) a session.
type SessionInfo struct {
	SessionID string
	PIN       string
	Resumed   bool
}

// StartSession creates a session for username, or reissues a fresh PIN for
// the username's existing session. Re-entry keeps the session id stable so
// a reloaded starting page does not orphan open channels.
// An empty username starts an anonymous, device-only session.
func (r *Registry) StartSession(username string) (SessionInfo, error) {
	username = strings.TrimSpace(username)

	pin, err := NewPIN(r.pinDigits)
	if err != nil {
		return SessionInfo{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if username != "" {
		if existing, ok := r.byUser[username]; ok {
			r.pins[existing] = pin
			return SessionInfo{SessionID: existing, PIN: pin, Resumed: true}, nil
		}
	}

	sessionID, err := NewSessionID(time.Now().UTC())
	if err != nil {
		return SessionInfo{}, fmt.Errorf("relay: session id: %w", err)
	}

	if username != "" {
		r.byUser[username] = sessionID
	}
	r.pins[sessionID] = pin

	return SessionInfo{SessionID: sessionID, PIN: pin}, nil
}

// JoinSession resolves a username to its live session id.
func (r *Registry) JoinSession(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.byUser[username]
	if !ok {
		return "", ErrNotFound
	}
	return sessionID, nil
}

// Resolve turns a session id or username into a live session id.
func (r *Registry) Resolve(sessionID, username string) (string, error) {
	if s := strings.TrimSpace(sessionID); s != "" {
		r.mu.Lock()
		_, ok := r.pins[s]
		r.mu.Unlock()
		if !ok {
			return "", ErrNotFound
		}
		return s, nil
	}
	return r.JoinSession(username)
}

// PinOptions returns count candidate codes for sessionID: the true PIN
// exactly once plus distinct same-width decoys, shuffled.
func (r *Registry) PinOptions(sessionID string, count int) ([]string, error) {
	r.mu.Lock()
	pin, ok := r.pins[sessionID]
	r.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return pinOptions(pin, count)
}

// Verify checks submitted against the most recently issued PIN for
// sessionID by exact string equality. A superseded PIN never matches.
func (r *Registry) Verify(sessionID, submitted string) error {
	r.mu.Lock()
	pin, ok := r.pins[sessionID]
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if submitted != pin {
		return ErrVerificationFailed
	}
	return nil
}

// Delete removes the session's PIN and any username mapping pointing at it.
// Deleting an unknown session is a no-op.
func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pins, sessionID)
	for user, sid := range r.byUser {
		if sid == sessionID {
			delete(r.byUser, user)
		}
	}
}

// Has reports whether sessionID is live.
func (r *Registry) Has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pins[sessionID]
	return ok
}
