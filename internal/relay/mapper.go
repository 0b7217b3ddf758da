package relay

import (
	"strings"
	"sync"
)

// Mapper translates step-up tokens back to the client/session that minted
// them. The secondary device only ever sees the token, never the target id.
//
// A mapping is immutable once created and lives until the token is deleted
// or its target session is torn down.
type Mapper struct {
	mu      sync.Mutex
	targets map[string]string // step-up token -> target id
}

// NewMapper constructs an empty Mapper.
func NewMapper() *Mapper {
	return &Mapper{targets: make(map[string]string)}
}

// Create binds stepUpID to targetID. Rebinding an existing token fails.
func (m *Mapper) Create(stepUpID, targetID string) error {
	stepUpID = strings.TrimSpace(stepUpID)
	targetID = strings.TrimSpace(targetID)
	if stepUpID == "" || targetID == "" {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.targets[stepUpID]; exists {
		return ErrInvalidInput
	}
	m.targets[stepUpID] = targetID
	return nil
}

// Resolve returns the target id for stepUpID.
func (m *Mapper) Resolve(stepUpID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.targets[stepUpID]
	if !ok {
		return "", ErrNotFound
	}
	return target, nil
}

// Delete removes a single token mapping.
func (m *Mapper) Delete(stepUpID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, stepUpID)
}

// DeleteTarget removes every token whose target is targetID.
// Used during session teardown; the reverse scan is fine at demo scale.
func (m *Mapper) DeleteTarget(targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, target := range m.targets {
		if target == targetID {
			delete(m.targets, token)
		}
	}
}
