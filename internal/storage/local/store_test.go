package local

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quizly/quizly-engine/internal/domain/entities"
)

func testAggregate() entities.ProgressAggregate {
	agg := entities.NewProgressAggregate()
	now := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	agg.CardProgress["q1"] = entities.CardProgress{
		QuestionID:     "q1",
		EaseFactor:     2.4,
		Interval:       6,
		Repetitions:    2,
		NextReviewDate: now.AddDate(0, 0, 6),
		LastReviewDate: &now,
	}
	agg.Streak = 2
	agg.WrongAnswers = []string{"q3"}
	return agg
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "progress.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	agg := testAggregate()
	if err := store.Write(ctx, "quiz-app-progress", agg); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := store.Read(ctx, "quiz-app-progress")
	if !reflect.DeepEqual(got, agg) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, agg)
	}
}

func TestSQLiteStoreMissingScopeReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "progress.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	got := store.Read(context.Background(), "nothing-here")
	if !reflect.DeepEqual(got, entities.NewProgressAggregate()) {
		t.Errorf("missing scope should yield the empty aggregate, got %+v", got)
	}
}

func TestSQLiteStoreCorruptPayloadRecovers(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "progress.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	_, err = store.conn.ExecContext(ctx, `
		INSERT INTO progress_snapshots (scope, payload, updated_at)
		VALUES (?, ?, ?)`, "broken", []byte("garbage"), time.Now())
	if err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	got := store.Read(ctx, "broken")
	if !reflect.DeepEqual(got, entities.NewProgressAggregate()) {
		t.Errorf("corrupt payload should yield the empty aggregate, got %+v", got)
	}
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "progress.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	first := testAggregate()
	if err := store.Write(ctx, "s", first); err != nil {
		t.Fatalf("first write: %v", err)
	}

	second := first.Clone()
	second.Streak = 9
	if err := store.Write(ctx, "s", second); err != nil {
		t.Fatalf("second write: %v", err)
	}

	if got := store.Read(ctx, "s"); got.Streak != 9 {
		t.Errorf("streak after overwrite = %d, want 9", got.Streak)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	ctx := context.Background()
	agg := testAggregate()
	if err := store.Write(ctx, "quiz-app-progress", agg); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := store.Read(ctx, "quiz-app-progress")
	if !reflect.DeepEqual(got, agg) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, agg)
	}
}

func TestFileStoreMissingScopeReturnsDefault(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	got := store.Read(context.Background(), "never-written")
	if !reflect.DeepEqual(got, entities.NewProgressAggregate()) {
		t.Errorf("missing file should yield the empty aggregate, got %+v", got)
	}
}

func TestOpenWithFallbackDegradesToFileStore(t *testing.T) {
	dir := t.TempDir()
	// A directory path is not a usable sqlite database file.
	store, err := OpenWithFallback(dir, filepath.Join(dir, "data"), zap.NewNop())
	if err != nil {
		t.Fatalf("fallback open: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Fatalf("expected FileStore fallback, got %T", store)
	}
}
