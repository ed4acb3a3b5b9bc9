// Package srs implements the scheduling core: the SM-2 update rule, due-set
// selection, memory-level classification and daily streak bookkeeping. All
// functions here are pure; persistence lives elsewhere.
package srs

import (
	"math"
	"time"

	"github.com/quizly/quizly-engine/internal/domain/entities"
)

// NextReview applies the SM-2 update rule to a card and returns its next
// state. It never mutates prior. The returned card always satisfies
// EaseFactor >= entities.MinEaseFactor, and Repetitions is zero whenever the
// recall failed (quality < 3).
//
// Interval progression on success: 1 day after the first success, 6 days
// after the second, then round(interval * easeFactor). Rounding (not
// truncation) matters: with an ease near 1.3 truncation would let intervals
// stagnate.
func NextReview(quality Quality, prior entities.CardProgress, now time.Time) (entities.CardProgress, error) {
	if !quality.Valid() {
		return entities.CardProgress{}, ErrQualityOutOfRange{Quality: quality}
	}

	next := prior.Clone()

	if quality.Passing() {
		next.Repetitions = prior.Repetitions + 1
		switch prior.Repetitions {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 6
		default:
			next.Interval = int(math.Round(float64(prior.Interval) * prior.EaseFactor))
		}
	} else {
		next.Repetitions = 0
		next.Interval = 1
	}

	// Standard SM-2 ease adjustment, applied on both success and failure.
	// Quality 5 raises ease, 3 leaves it nearly unchanged, <= 2 lowers it.
	q := float64(quality)
	ease := prior.EaseFactor + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	if ease < entities.MinEaseFactor {
		ease = entities.MinEaseFactor
	}
	next.EaseFactor = ease

	next.NextReviewDate = now.AddDate(0, 0, next.Interval)
	reviewed := now
	next.LastReviewDate = &reviewed

	return next, nil
}
