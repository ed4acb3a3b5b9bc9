package entities

import "time"

// MinEaseFactor is the SM-2 floor for the ease factor. Intervals stop
// shrinking once a card reaches it, no matter how often it is failed.
const MinEaseFactor = 1.3

// DefaultEaseFactor is the ease assigned to a card that has never been reviewed.
const DefaultEaseFactor = 2.5

// CardProgress is the per-question scheduling record. One exists for every
// question the user has seen at least once; questions without a record are
// treated as never reviewed and always due.
type CardProgress struct {
	QuestionID     string     // stable question identifier
	EaseFactor     float64    // >= MinEaseFactor, default 2.5
	Interval       int        // days until next review, 0 for never-reviewed
	Repetitions    int        // consecutive successful recalls, reset on failure
	NextReviewDate time.Time  // card is due once now >= this
	LastReviewDate *time.Time // nil until the first review
}

// NewCardProgress returns the never-reviewed default state for a question.
// A fresh card is immediately due.
func NewCardProgress(questionID string, now time.Time) CardProgress {
	return CardProgress{
		QuestionID:     questionID,
		EaseFactor:     DefaultEaseFactor,
		Interval:       0,
		Repetitions:    0,
		NextReviewDate: now,
		LastReviewDate: nil,
	}
}

// Clone returns a copy that shares no pointers with the receiver.
func (c CardProgress) Clone() CardProgress {
	out := c
	if c.LastReviewDate != nil {
		t := *c.LastReviewDate
		out.LastReviewDate = &t
	}
	return out
}
