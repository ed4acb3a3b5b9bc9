package srs

import (
	"time"

	"github.com/quizly/quizly-engine/internal/domain/entities"
)

// DateOnly truncates t to its UTC calendar day. Streak comparisons are by
// calendar date, not 24-hour windows.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UpdateStreak records study activity for today and returns the updated
// aggregate. Calling it twice on the same day is a no-op after the first
// call; studying on consecutive days extends the streak; any gap of two or
// more days restarts it at 1. After any call the streak is at least 1.
func UpdateStreak(agg entities.ProgressAggregate, today time.Time) entities.ProgressAggregate {
	day := DateOnly(today)

	if agg.LastStudyDate != nil && DateOnly(*agg.LastStudyDate).Equal(day) {
		return agg
	}

	out := agg.Clone()
	yesterday := day.AddDate(0, 0, -1)
	if agg.LastStudyDate != nil && DateOnly(*agg.LastStudyDate).Equal(yesterday) {
		out.Streak = agg.Streak + 1
	} else {
		out.Streak = 1
	}
	out.LastStudyDate = &day
	return out
}
