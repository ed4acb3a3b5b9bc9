package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/quizly/quizly-engine/internal/domain/entities"
	"github.com/quizly/quizly-engine/internal/snapshot"
)

// FileStore keeps one JSON snapshot file per scope. It is the synchronous
// fallback used when the SQLite store cannot be opened.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create file store dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(scope string) string {
	// Scope keys are caller-controlled identifiers; keep them filesystem-safe.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, scope)
	return filepath.Join(s.dir, safe+".json")
}

// Read loads the snapshot for scope, falling back to the empty aggregate on
// any failure.
func (s *FileStore) Read(_ context.Context, scope string) entities.ProgressAggregate {
	data, err := os.ReadFile(s.path(scope))
	if errors.Is(err, fs.ErrNotExist) {
		return entities.NewProgressAggregate()
	}
	if err != nil {
		s.logger.Warn("file store read failed, starting from empty progress",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return entities.NewProgressAggregate()
	}

	agg, err := snapshot.Decode(data)
	if err != nil {
		s.logger.Warn("file store snapshot partially corrupt",
			zap.String("scope", scope),
			zap.Error(err),
		)
	}
	return agg
}

// Write replaces the snapshot for scope via a rename so readers never see a
// half-written file.
func (s *FileStore) Write(_ context.Context, scope string, agg entities.ProgressAggregate) error {
	payload, err := snapshot.Encode(agg)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", scope, err)
	}

	target := s.path(scope)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write snapshot for %s: %w", scope, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace snapshot for %s: %w", scope, err)
	}
	return nil
}
