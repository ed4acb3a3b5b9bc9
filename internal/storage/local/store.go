// Package local persists progress snapshots on the device. The primary
// backend is a single-table SQLite database; when that cannot be opened a
// plain JSON file store takes its place so studying keeps working without
// the durable store. Reads never fail from the caller's point of view: any
// problem is logged and the empty aggregate is returned instead.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the sqlite driver

	"github.com/quizly/quizly-engine/internal/domain/entities"
	"github.com/quizly/quizly-engine/internal/snapshot"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress_snapshots (
	scope      TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// Store reads and writes whole progress snapshots keyed by scope.
type Store interface {
	Read(ctx context.Context, scope string) entities.ProgressAggregate
	Write(ctx context.Context, scope string, agg entities.ProgressAggregate) error
}

// SQLiteStore is the durable on-device snapshot store.
type SQLiteStore struct {
	conn   *sql.DB
	logger *zap.Logger
}

// Open connects to the SQLite database at path and ensures the schema
// exists. Use OpenWithFallback when a degraded file store is acceptable.
func Open(path string, logger *zap.Logger) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping local store: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply local store schema: %w", err)
	}
	return &SQLiteStore{conn: conn, logger: logger}, nil
}

// OpenWithFallback opens the SQLite store, and on failure degrades to a
// JSON file store under dataDir. The local store must work even when the
// durable backend is unavailable.
func OpenWithFallback(path, dataDir string, logger *zap.Logger) (Store, error) {
	store, err := Open(path, logger)
	if err == nil {
		return store, nil
	}
	logger.Warn("local sqlite store unavailable, using file store",
		zap.String("path", path),
		zap.Error(err),
	)
	return NewFileStore(dataDir, logger)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Read loads the snapshot for scope. A missing row yields the empty
// aggregate; a corrupt or unreadable one yields whatever could be recovered
// plus a log line. Data loss is preferred over blocking the caller.
func (s *SQLiteStore) Read(ctx context.Context, scope string) entities.ProgressAggregate {
	var payload []byte
	err := s.conn.QueryRowContext(ctx,
		`SELECT payload FROM progress_snapshots WHERE scope = ?`, scope,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.NewProgressAggregate()
	}
	if err != nil {
		s.logger.Warn("local read failed, starting from empty progress",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return entities.NewProgressAggregate()
	}

	agg, err := snapshot.Decode(payload)
	if err != nil {
		s.logger.Warn("local snapshot partially corrupt",
			zap.String("scope", scope),
			zap.Error(err),
		)
	}
	return agg
}

// Write replaces the snapshot for scope. The returned error is for logging
// only; callers must not surface it to the UI path.
func (s *SQLiteStore) Write(ctx context.Context, scope string, agg entities.ProgressAggregate) error {
	payload, err := snapshot.Encode(agg)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", scope, err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO progress_snapshots (scope, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (scope) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, scope, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write snapshot for %s: %w", scope, err)
	}
	return nil
}
