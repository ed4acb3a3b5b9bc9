// Package reconcile merges two independently evolved progress snapshots -
// the device-local one and the account-bound remote one - into a single
// consistent aggregate. It runs once per sign-in transition and is the only
// component allowed to combine two aggregates.
package reconcile

import (
	"time"

	"github.com/quizly/quizly-engine/internal/domain/entities"
)

// Merge combines a local and a remote aggregate. The policy per field:
//
//   - cardProgress, notes: key-wise union, local wins on conflict. The merge
//     runs immediately after login, before any other remote write, so the
//     local session is assumed more recent. This is a deliberate
//     simplification, not a vector-clock merge.
//   - bookmarks, wrongAnswers: set union, local order first.
//   - studySessions: concatenation deduplicated by (date, mode, answered).
//   - streak: maximum of the two.
//   - lastStudyDate: later wins; a set date beats an absent one.
//
// Merge is pure and idempotent: Merge(a, a) equals a up to set
// normalization. Degrading to the local aggregate when the remote store is
// unreachable is the caller's job - pass the empty aggregate and every rule
// above collapses to "keep local".
func Merge(local, remote entities.ProgressAggregate) entities.ProgressAggregate {
	merged := entities.NewProgressAggregate()

	for id, card := range remote.CardProgress {
		merged.CardProgress[id] = card.Clone()
	}
	for id, card := range local.CardProgress {
		merged.CardProgress[id] = card.Clone()
	}

	merged.BookmarkedQuestions = unionIDs(local.BookmarkedQuestions, remote.BookmarkedQuestions)
	merged.WrongAnswers = unionIDs(local.WrongAnswers, remote.WrongAnswers)

	for id, note := range remote.Notes {
		merged.Notes[id] = note
	}
	for id, note := range local.Notes {
		merged.Notes[id] = note
	}

	merged.StudySessions = mergeSessions(local.StudySessions, remote.StudySessions)

	merged.Streak = local.Streak
	if remote.Streak > merged.Streak {
		merged.Streak = remote.Streak
	}

	merged.LastStudyDate = laterDate(local.LastStudyDate, remote.LastStudyDate)

	return merged
}

func unionIDs(local, remote []string) []string {
	out := make([]string, 0, len(local)+len(remote))
	for _, id := range local {
		out = entities.AppendUnique(out, id)
	}
	for _, id := range remote {
		out = entities.AppendUnique(out, id)
	}
	return out
}

func mergeSessions(local, remote []entities.StudySession) []entities.StudySession {
	out := make([]entities.StudySession, 0, len(local)+len(remote))
	seen := make(map[entities.SessionKey]struct{}, len(local)+len(remote))
	for _, s := range append(append([]entities.StudySession{}, local...), remote...) {
		key := s.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func laterDate(local, remote *time.Time) *time.Time {
	switch {
	case local == nil && remote == nil:
		return nil
	case local == nil:
		t := *remote
		return &t
	case remote == nil:
		t := *local
		return &t
	case remote.After(*local):
		t := *remote
		return &t
	default:
		t := *local
		return &t
	}
}
