// Package service wires the pure scheduling core to the progress stores and
// exposes the operations the UI layer consumes. All fallibility lives here
// and in the stores: read paths always hand back a usable aggregate, write
// failures are logged and never block the caller.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quizly/quizly-engine/internal/domain/entities"
	"github.com/quizly/quizly-engine/internal/reconcile"
	"github.com/quizly/quizly-engine/internal/srs"
	"github.com/quizly/quizly-engine/internal/storage/remote"
)

// LocalScopeKey is the single device-bound snapshot key. It does not change
// on sign-in: the local store always reflects what this device knows.
const LocalScopeKey = "quiz-app-progress"

// LocalStore is the device-bound snapshot store. Reads cannot fail; writes
// return errors for logging only.
type LocalStore interface {
	Read(ctx context.Context, scope string) entities.ProgressAggregate
	Write(ctx context.Context, scope string, agg entities.ProgressAggregate) error
}

// RemoteStore is the account-bound snapshot store. Callers treat every
// error as a degradation, never as a user-facing failure.
type RemoteStore interface {
	Read(ctx context.Context, ownerID string) (entities.ProgressAggregate, error)
	Write(ctx context.Context, ownerID string, agg entities.ProgressAggregate) error
}

// ProgressService owns the store handles and the quality policy. Construct
// it once and pass it down; there is no package-level state.
type ProgressService struct {
	local   LocalStore
	remote  RemoteStore // nil when no remote store is configured
	quality srs.QualityPolicy
	logger  *zap.Logger
}

// NewProgressService builds the service. remote may be nil for a
// local-only deployment.
func NewProgressService(local LocalStore, remote RemoteStore, logger *zap.Logger) *ProgressService {
	return &ProgressService{
		local:   local,
		remote:  remote,
		quality: srs.DefaultQualityPolicy,
		logger:  logger,
	}
}

// WithQualityPolicy replaces the quiz-answer quality heuristic.
func (s *ProgressService) WithQualityPolicy(policy srs.QualityPolicy) *ProgressService {
	s.quality = policy
	return s
}

// Default returns the empty, zeroed aggregate.
func (s *ProgressService) Default() entities.ProgressAggregate {
	return entities.NewProgressAggregate()
}

// Load reads the user's progress. Anonymous callers (empty ownerID) get the
// local snapshot. Authenticated callers get the local and remote snapshots
// reconciled; the merged result is written back to the local store before it
// is returned, so later reads are consistent without re-merging. A failed
// remote fetch degrades to the local snapshot - it never destroys local
// progress.
func (s *ProgressService) Load(ctx context.Context, ownerID string) entities.ProgressAggregate {
	localAgg := s.local.Read(ctx, LocalScopeKey)
	if ownerID == "" || s.remote == nil {
		return localAgg
	}

	remoteAgg, err := s.remote.Read(ctx, ownerID)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		s.logger.Warn("remote progress unavailable, using local only",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return localAgg
	}

	merged := reconcile.Merge(localAgg, remoteAgg)

	if err := s.local.Write(ctx, LocalScopeKey, merged); err != nil {
		s.logger.Warn("failed to persist merged progress locally",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
	}
	// Pushing the merged snapshot back to the remote store is best-effort.
	if err := s.remote.Write(ctx, ownerID, merged); err != nil {
		s.logger.Warn("failed to push merged progress to remote store",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
	}

	return merged
}

// Save persists a snapshot. The local write is issued first so a crash
// mid-save loses at most the remote copy. Failures are logged, never
// returned: losing a sync write must not block studying.
func (s *ProgressService) Save(ctx context.Context, ownerID string, agg entities.ProgressAggregate) {
	if err := s.local.Write(ctx, LocalScopeKey, agg); err != nil {
		s.logger.Warn("local progress write failed", zap.Error(err))
	}

	if ownerID == "" || s.remote == nil {
		return
	}
	if err := s.remote.Write(ctx, ownerID, agg); err != nil {
		s.logger.Warn("remote progress write failed",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
	}
}

// Reset replaces the user's progress with a fresh empty aggregate in every
// applicable store and returns it.
func (s *ProgressService) Reset(ctx context.Context, ownerID string) entities.ProgressAggregate {
	fresh := entities.NewProgressAggregate()
	s.Save(ctx, ownerID, fresh)
	return fresh
}

// RecordAnswer applies a quiz answer: SM-2 reschedule, wrong-answer set
// bookkeeping and the daily streak. Pure - the caller persists the result.
func (s *ProgressService) RecordAnswer(agg entities.ProgressAggregate, questionID string, quality srs.Quality, now time.Time) (entities.ProgressAggregate, error) {
	card := agg.Card(questionID, now)
	next, err := srs.NextReview(quality, card, now)
	if err != nil {
		return entities.ProgressAggregate{}, err
	}

	out := agg.Clone()
	out.CardProgress[questionID] = next
	if quality.Passing() {
		out.WrongAnswers = entities.Remove(out.WrongAnswers, questionID)
	} else {
		out.WrongAnswers = entities.AppendUnique(out.WrongAnswers, questionID)
	}
	return srs.UpdateStreak(out, now), nil
}

// RecordOutcome derives the quality score from a quiz outcome via the
// configured policy, then records the answer.
func (s *ProgressService) RecordOutcome(agg entities.ProgressAggregate, questionID string, correct bool, timeTaken time.Duration, now time.Time) (entities.ProgressAggregate, error) {
	return s.RecordAnswer(agg, questionID, s.quality(correct, timeTaken), now)
}

// RecordRecall applies a flashcard self-report. Flashcard mode has no
// right/wrong notion, so the wrong-answer set is left alone.
func (s *ProgressService) RecordRecall(agg entities.ProgressAggregate, questionID string, quality srs.Quality, now time.Time) (entities.ProgressAggregate, error) {
	card := agg.Card(questionID, now)
	next, err := srs.NextReview(quality, card, now)
	if err != nil {
		return entities.ProgressAggregate{}, err
	}

	out := agg.Clone()
	out.CardProgress[questionID] = next
	return srs.UpdateStreak(out, now), nil
}

// CompleteSession appends a finished study run to the session history.
func (s *ProgressService) CompleteSession(agg entities.ProgressAggregate, session entities.StudySession) entities.ProgressAggregate {
	out := agg.Clone()
	out.StudySessions = append(out.StudySessions, session)
	return out
}

// ToggleBookmark adds or removes a bookmark.
func (s *ProgressService) ToggleBookmark(agg entities.ProgressAggregate, questionID string) entities.ProgressAggregate {
	out := agg.Clone()
	for _, id := range out.BookmarkedQuestions {
		if id == questionID {
			out.BookmarkedQuestions = entities.Remove(out.BookmarkedQuestions, questionID)
			return out
		}
	}
	out.BookmarkedQuestions = append(out.BookmarkedQuestions, questionID)
	return out
}

// SetNote stores a free-text note for a question; an empty note deletes it.
func (s *ProgressService) SetNote(agg entities.ProgressAggregate, questionID, note string) entities.ProgressAggregate {
	out := agg.Clone()
	if note == "" {
		delete(out.Notes, questionID)
		return out
	}
	out.Notes[questionID] = note
	return out
}

// DueCards returns the question ids due for review, in catalog order.
func (s *ProgressService) DueCards(agg entities.ProgressAggregate, ids []string, now time.Time) []string {
	return srs.DueCards(agg, ids, now)
}

// WeakCards returns the questions needing extra practice.
func (s *ProgressService) WeakCards(agg entities.ProgressAggregate, ids []string) []string {
	return srs.WeakCards(agg, ids)
}

// Classify reports how well a question is currently known.
func (s *ProgressService) Classify(agg entities.ProgressAggregate, questionID string) srs.MemoryLevel {
	card, ok := agg.CardProgress[questionID]
	if !ok {
		return srs.Classify(nil)
	}
	return srs.Classify(&card)
}
