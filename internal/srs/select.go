package srs

import (
	"time"

	"github.com/quizly/quizly-engine/internal/domain/entities"
)

// MemoryLevel classifies how well a card is currently known. Levels are
// displayed and used as review filters; they do not feed back into
// scheduling.
type MemoryLevel string

const (
	LevelForgotten MemoryLevel = "forgotten"
	LevelWeak      MemoryLevel = "weak"
	LevelModerate  MemoryLevel = "moderate"
	LevelStrong    MemoryLevel = "strong"
	LevelMastered  MemoryLevel = "mastered"
)

// IsDue reports whether a card should be shown now. A nil card means the
// question has never been reviewed, and never-reviewed questions are always
// due.
func IsDue(card *entities.CardProgress, now time.Time) bool {
	if card == nil {
		return true
	}
	return !card.NextReviewDate.After(now)
}

// DueCards filters ids down to the questions due for review, preserving the
// input order so callers can build a session directly from the result.
func DueCards(agg entities.ProgressAggregate, ids []string, now time.Time) []string {
	due := make([]string, 0, len(ids))
	for _, id := range ids {
		card, ok := agg.CardProgress[id]
		if !ok {
			due = append(due, id)
			continue
		}
		if IsDue(&card, now) {
			due = append(due, id)
		}
	}
	return due
}

// Classify buckets a card by ease factor and repetition count. The checks
// run in order and the first match wins; the thresholds overlap on purpose
// so exactly one branch fires. A nil card has never been reviewed and is
// forgotten by definition.
func Classify(card *entities.CardProgress) MemoryLevel {
	if card == nil {
		return LevelForgotten
	}
	switch {
	case card.EaseFactor < 1.5 || card.Repetitions == 0:
		return LevelForgotten
	case card.EaseFactor < 2.0 || card.Repetitions < 2:
		return LevelWeak
	case card.EaseFactor < 2.3 || card.Repetitions < 4:
		return LevelModerate
	case card.EaseFactor < 2.7:
		return LevelStrong
	default:
		return LevelMastered
	}
}

// WeakCards returns the questions needing extra practice: reviewed cards
// with ease below 2.3 or fewer than two repetitions. This is a looser
// bucket than Classify's "weak" band and intentionally a separate
// predicate; the two thresholds serve different call sites and must not be
// unified.
func WeakCards(agg entities.ProgressAggregate, ids []string) []string {
	weak := make([]string, 0, len(ids))
	for _, id := range ids {
		card, ok := agg.CardProgress[id]
		if !ok {
			continue
		}
		if card.EaseFactor < 2.3 || card.Repetitions < 2 {
			weak = append(weak, id)
		}
	}
	return weak
}
