// Package remote persists progress snapshots in the account-bound
// PostgreSQL store. One row per owner holds the whole snapshot; writes are
// upserts, so the store is only ever replaced wholesale and never patched
// field by field. Every call is bounded by a timeout - the remote store is
// best-effort and must not block studying when it is slow or unreachable.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quizly/quizly-engine/internal/domain/entities"
	"github.com/quizly/quizly-engine/internal/snapshot"
)

// ErrNotFound reports that the owner has no stored snapshot yet. It is not
// a failure: first-time sign-ins land here.
var ErrNotFound = errors.New("remote: progress not found")

const schema = `
CREATE TABLE IF NOT EXISTS user_progress (
	owner_id   TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// DBTX is the subset of pgxpool.Pool the store needs. pgx.Tx satisfies it
// too, so the store can run inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the remote snapshot store.
type Store struct {
	db      DBTX
	timeout time.Duration
}

// NewStore wraps a pgx pool. timeout bounds every read and write; a
// non-positive value falls back to five seconds.
func NewStore(db DBTX, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

// EnsureSchema creates the snapshot table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure remote schema: %w", err)
	}
	return nil
}

// Read fetches the snapshot for ownerID. It returns ErrNotFound for a
// first-time owner and wraps any transport or decode failure; the caller
// decides how to degrade.
func (s *Store) Read(ctx context.Context, ownerID string) (entities.ProgressAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT payload FROM user_progress WHERE owner_id = $1`, ownerID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.NewProgressAggregate(), ErrNotFound
	}
	if err != nil {
		return entities.NewProgressAggregate(), fmt.Errorf("read remote progress for %s: %w", ownerID, err)
	}

	agg, err := snapshot.Decode(payload)
	if err != nil {
		// Partial corruption: keep what decoded, surface the rest for logging.
		return agg, fmt.Errorf("decode remote progress for %s: %w", ownerID, err)
	}
	return agg, nil
}

// Write upserts the whole snapshot for ownerID.
func (s *Store) Write(ctx context.Context, ownerID string, agg entities.ProgressAggregate) error {
	payload, err := snapshot.Encode(agg)
	if err != nil {
		return fmt.Errorf("encode remote progress for %s: %w", ownerID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.Exec(ctx, `
		INSERT INTO user_progress (owner_id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (owner_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, ownerID, payload)
	if err != nil {
		return fmt.Errorf("write remote progress for %s: %w", ownerID, err)
	}
	return nil
}
