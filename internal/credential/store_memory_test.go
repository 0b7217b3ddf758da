package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreSaveGet(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	rec := Record{
		CredentialID: "cred-1",
		Username:     "alice",
		EncryptedSEK: "sek",
		IV:           "iv",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "sek", got.EncryptedSEK)

	_, err = s.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestInMemoryStoreSaveOverwrites(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Record{CredentialID: "cred-1", Username: "old"}))
	require.NoError(t, s.Save(ctx, Record{CredentialID: "cred-1", Username: "new"}))

	got, err := s.Get(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Username)
}

func TestInMemoryStoreListIDsOrdered(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.Save(ctx, Record{CredentialID: "b", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, s.Save(ctx, Record{CredentialID: "a", CreatedAt: base}))
	require.NoError(t, s.Save(ctx, Record{CredentialID: "c", CreatedAt: base.Add(2 * time.Second)}))

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestInMemoryStoreHasUser(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Record{CredentialID: "cred-1", Username: "alice"}))

	has, err := s.HasUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasUser(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestInMemoryStoreHonorsContext(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Save(ctx, Record{CredentialID: "x"}))
	_, err := s.Get(ctx, "x")
	assert.Error(t, err)
}
