package credential

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var pgIdentRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresStore persists credentials when a database URL is configured.
// The pool lifecycle belongs to the app; Close is a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "stronghold").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("credential: empty schema")
		}
		if !pgIdentRE.MatchString(schema) {
			return errors.New("credential: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "stronghold",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("credential: nil pool")
	}
	return st, nil
}

// Close is a no-op; the app owns the pool.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) table() string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{s.schema, "credentials"}.Sanitize()
}

// EnsureSchema creates the schema and credentials table when absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{s.schema}.Sanitize(),
	); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table()+` (
			credential_id text PRIMARY KEY,
			username      text NOT NULL DEFAULT '',
			bik           jsonb,
			public_key    bytea,
			sign_count    bigint NOT NULL DEFAULT 0,
			encrypted_sek text NOT NULL,
			iv            text NOT NULL,
			created_at    timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Save upserts rec keyed by credential id.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (credential_id, username, bik, public_key, sign_count, encrypted_sek, iv, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (credential_id) DO UPDATE
		   SET username = EXCLUDED.username,
		       bik = EXCLUDED.bik,
		       public_key = EXCLUDED.public_key,
		       sign_count = EXCLUDED.sign_count,
		       encrypted_sek = EXCLUDED.encrypted_sek,
		       iv = EXCLUDED.iv`,
		rec.CredentialID, rec.Username, rec.BrowserIdentityKey, rec.PublicKey,
		int64(rec.SignCount), rec.EncryptedSEK, rec.IV, rec.CreatedAt,
	)
	return err
}

// Get fetches the record for credentialID.
func (s *PostgresStore) Get(ctx context.Context, credentialID string) (Record, error) {
	var (
		rec       Record
		signCount int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT credential_id, username, bik, public_key, sign_count, encrypted_sek, iv, created_at
		  FROM `+s.table()+`
		 WHERE credential_id = $1`,
		credentialID,
	).Scan(&rec.CredentialID, &rec.Username, &rec.BrowserIdentityKey, &rec.PublicKey,
		&signCount, &rec.EncryptedSEK, &rec.IV, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrCredentialNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.SignCount = uint32(signCount)
	return rec, nil
}

// ListIDs returns known credential ids ordered by creation time.
func (s *PostgresStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT credential_id FROM `+s.table()+` ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// HasUser reports whether any credential is registered for username.
func (s *PostgresStore) HasUser(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM `+s.table()+` WHERE username = $1 LIMIT 1`,
		username,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
