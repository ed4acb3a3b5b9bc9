package entities

import "time"

// Study modes recorded in session history.
const (
	ModeQuiz      = "quiz"
	ModeFlashcard = "flashcard"
	ModeReview    = "review"
)

// StudySession is one completed study run. Sessions are append-only; a
// duplicate can only appear when two stores that already share history
// are merged, which is why Key is enough to deduplicate them.
type StudySession struct {
	Date              time.Time
	QuestionsAnswered int
	CorrectAnswers    int
	Mode              string
}

// SessionKey identifies a session across stores.
type SessionKey struct {
	Date              int64 // unix nanoseconds
	Mode              string
	QuestionsAnswered int
}

// Key returns the composite key used to deduplicate sessions on merge.
func (s StudySession) Key() SessionKey {
	return SessionKey{
		Date:              s.Date.UnixNano(),
		Mode:              s.Mode,
		QuestionsAnswered: s.QuestionsAnswered,
	}
}

// ProgressAggregate is the complete progress record for one user or one
// anonymous device session. It is treated as an immutable value: every
// update produces a new aggregate via Clone, and stores only ever read and
// write whole snapshots.
type ProgressAggregate struct {
	CardProgress        map[string]CardProgress
	BookmarkedQuestions []string // set semantics, insertion order kept
	Notes               map[string]string
	StudySessions       []StudySession
	Streak              int        // consecutive days with at least one review
	LastStudyDate       *time.Time // calendar day of last streak activity, nil = never
	WrongAnswers        []string   // set semantics: last answered incorrectly in quiz mode
}

// NewProgressAggregate returns the empty, zeroed aggregate created on first
// use or after an explicit reset.
func NewProgressAggregate() ProgressAggregate {
	return ProgressAggregate{
		CardProgress:        make(map[string]CardProgress),
		BookmarkedQuestions: []string{},
		Notes:               make(map[string]string),
		StudySessions:       []StudySession{},
		Streak:              0,
		LastStudyDate:       nil,
		WrongAnswers:        []string{},
	}
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (p ProgressAggregate) Clone() ProgressAggregate {
	out := ProgressAggregate{
		CardProgress:        make(map[string]CardProgress, len(p.CardProgress)),
		BookmarkedQuestions: append([]string{}, p.BookmarkedQuestions...),
		Notes:               make(map[string]string, len(p.Notes)),
		StudySessions:       append([]StudySession{}, p.StudySessions...),
		Streak:              p.Streak,
		WrongAnswers:        append([]string{}, p.WrongAnswers...),
	}
	for id, card := range p.CardProgress {
		out.CardProgress[id] = card.Clone()
	}
	for id, note := range p.Notes {
		out.Notes[id] = note
	}
	if p.LastStudyDate != nil {
		t := *p.LastStudyDate
		out.LastStudyDate = &t
	}
	return out
}

// Card returns the scheduling record for a question, or the never-reviewed
// default when the question has not been seen yet.
func (p ProgressAggregate) Card(questionID string, now time.Time) CardProgress {
	if card, ok := p.CardProgress[questionID]; ok {
		return card
	}
	return NewCardProgress(questionID, now)
}

// AppendUnique adds id to ids unless it is already present.
func AppendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// Remove returns ids without id, preserving order.
func Remove(ids []string, id string) []string {
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
