package srs

import (
	"fmt"
	"time"
)

// Quality is the SM-2 recall quality score.
type Quality int

const (
	// QualityBlackout - complete blackout, no recall at all.
	QualityBlackout Quality = 0
	// QualityWrongRecognized - incorrect, but the answer was recognized once seen.
	QualityWrongRecognized Quality = 1
	// QualityWrongFamiliar - incorrect, but the answer felt easy to recall.
	QualityWrongFamiliar Quality = 2
	// QualityCorrectDifficult - correct with significant difficulty.
	QualityCorrectDifficult Quality = 3
	// QualityCorrectHesitant - correct after some hesitation.
	QualityCorrectHesitant Quality = 4
	// QualityPerfect - perfect immediate recall.
	QualityPerfect Quality = 5
)

// PassThreshold separates successful recalls (>= 3) from failures.
const PassThreshold = QualityCorrectDifficult

// ErrQualityOutOfRange reports a quality score outside 0..5. This is a
// contract violation at the call site, so it is rejected rather than clamped.
type ErrQualityOutOfRange struct {
	Quality Quality
}

func (e ErrQualityOutOfRange) Error() string {
	return fmt.Sprintf("srs: quality %d out of range [0,5]", e.Quality)
}

// Valid reports whether q is inside the documented input domain.
func (q Quality) Valid() bool {
	return q >= QualityBlackout && q <= QualityPerfect
}

// Passing reports whether q counts as a successful recall.
func (q Quality) Passing() bool {
	return q >= PassThreshold
}

// QualityPolicy derives a quality score from a quiz answer outcome. The
// engine ships DefaultQualityPolicy, but the mapping is a heuristic and
// callers may substitute their own.
type QualityPolicy func(correct bool, timeTaken time.Duration) Quality

// DefaultQualityPolicy maps quiz outcomes to SM-2 quality:
// a quick wrong answer counts as recognized-but-wrong, a slow wrong answer
// as blackout; correct answers grade down from perfect to difficult as the
// response time grows. Flashcard mode bypasses this - the user self-reports.
func DefaultQualityPolicy(correct bool, timeTaken time.Duration) Quality {
	if !correct {
		if timeTaken < 5*time.Second {
			return QualityWrongRecognized
		}
		return QualityBlackout
	}
	switch {
	case timeTaken < 3*time.Second:
		return QualityPerfect
	case timeTaken < 8*time.Second:
		return QualityCorrectHesitant
	default:
		return QualityCorrectDifficult
	}
}
