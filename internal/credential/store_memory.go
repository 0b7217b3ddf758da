package credential

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore is the default store when no database is configured.
// Credentials vanish on restart, which matches the demo's in-memory model.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewInMemoryStore constructs an empty in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// Save stores rec, overwriting any prior record for the credential id.
func (s *InMemoryStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.CredentialID] = rec
	return nil
}

// Get fetches the record for credentialID.
func (s *InMemoryStore) Get(ctx context.Context, credentialID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[credentialID]
	if !ok {
		return Record{}, ErrCredentialNotFound
	}
	return rec, nil
}

// ListIDs returns known credential ids ordered by creation time.
func (s *InMemoryStore) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	recs := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	s.mu.Unlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })

	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.CredentialID)
	}
	return out, nil
}

// HasUser reports whether any credential is registered for username.
func (s *InMemoryStore) HasUser(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.Username == username {
			return true, nil
		}
	}
	return false, nil
}
