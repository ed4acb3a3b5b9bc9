// Package snapshot encodes and decodes whole-aggregate progress snapshots.
// The persisted form is a single JSON document with camelCase keys and
// RFC 3339 date strings; encode-then-decode is an exact round trip.
//
// Decoding is deliberately forgiving: stores may hold snapshots written by
// older clients (which used snake_case keys) or partially corrupted data,
// and losing one field must not destroy the rest. Each top-level field is
// decoded independently and falls back to its zero default on failure; only
// an unparseable root gives up and returns the empty aggregate.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quizly/quizly-engine/internal/domain/entities"
)

type cardJSON struct {
	QuestionID     string     `json:"questionId"`
	EaseFactor     float64    `json:"easeFactor"`
	Interval       int        `json:"interval"`
	Repetitions    int        `json:"repetitions"`
	NextReviewDate time.Time  `json:"nextReviewDate"`
	LastReviewDate *time.Time `json:"lastReviewDate"`
}

type sessionJSON struct {
	Date              time.Time `json:"date"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	CorrectAnswers    int       `json:"correctAnswers"`
	Mode              string    `json:"mode"`
}

type aggregateJSON struct {
	CardProgress        map[string]cardJSON `json:"cardProgress"`
	BookmarkedQuestions []string            `json:"bookmarkedQuestions"`
	Notes               map[string]string   `json:"notes"`
	StudySessions       []sessionJSON       `json:"studySessions"`
	Streak              int                 `json:"streak"`
	LastStudyDate       *time.Time          `json:"lastStudyDate"`
	WrongAnswers        []string            `json:"wrongAnswers"`
}

// Encode serializes an aggregate into the canonical snapshot form.
func Encode(agg entities.ProgressAggregate) ([]byte, error) {
	doc := aggregateJSON{
		CardProgress:        make(map[string]cardJSON, len(agg.CardProgress)),
		BookmarkedQuestions: agg.BookmarkedQuestions,
		Notes:               agg.Notes,
		StudySessions:       make([]sessionJSON, 0, len(agg.StudySessions)),
		Streak:              agg.Streak,
		LastStudyDate:       agg.LastStudyDate,
		WrongAnswers:        agg.WrongAnswers,
	}
	if doc.BookmarkedQuestions == nil {
		doc.BookmarkedQuestions = []string{}
	}
	if doc.WrongAnswers == nil {
		doc.WrongAnswers = []string{}
	}
	if doc.Notes == nil {
		doc.Notes = map[string]string{}
	}
	for id, card := range agg.CardProgress {
		doc.CardProgress[id] = cardJSON(card.Clone())
	}
	for _, s := range agg.StudySessions {
		doc.StudySessions = append(doc.StudySessions, sessionJSON(s))
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot back into an aggregate. A non-nil error means
// some part of the payload was unusable; the returned aggregate is still
// valid and holds everything that could be recovered, so callers log the
// error and carry on.
func Decode(data []byte) (entities.ProgressAggregate, error) {
	agg := entities.NewProgressAggregate()

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return agg, fmt.Errorf("decode snapshot root: %w", err)
	}

	var firstErr error
	record := func(field string, err error) {
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("decode snapshot field %s: %w", field, err)
		}
	}

	if raw := pick(root, "cardProgress", "card_progress"); raw != nil {
		cards, err := decodeCards(raw)
		record("cardProgress", err)
		agg.CardProgress = cards
	}

	if raw := pick(root, "bookmarkedQuestions", "bookmarked_questions"); raw != nil {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			record("bookmarkedQuestions", err)
		} else if ids != nil {
			agg.BookmarkedQuestions = ids
		}
	}

	if raw := pick(root, "notes"); raw != nil {
		var notes map[string]string
		if err := json.Unmarshal(raw, &notes); err != nil {
			record("notes", err)
		} else if notes != nil {
			agg.Notes = notes
		}
	}

	if raw := pick(root, "studySessions", "study_sessions"); raw != nil {
		sessions, err := decodeSessions(raw)
		record("studySessions", err)
		agg.StudySessions = sessions
	}

	if raw := pick(root, "streak"); raw != nil {
		var streak int
		if err := json.Unmarshal(raw, &streak); err != nil {
			record("streak", err)
		} else if streak > 0 {
			agg.Streak = streak
		}
	}

	if raw := pick(root, "lastStudyDate", "last_study_date"); raw != nil {
		var last *time.Time
		if err := json.Unmarshal(raw, &last); err != nil {
			record("lastStudyDate", err)
		} else {
			agg.LastStudyDate = last
		}
	}

	if raw := pick(root, "wrongAnswers", "wrong_answers"); raw != nil {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			record("wrongAnswers", err)
		} else if ids != nil {
			agg.WrongAnswers = ids
		}
	}

	return agg, firstErr
}

// pick returns the first present key, letting the canonical name shadow its
// legacy spelling.
func pick(root map[string]json.RawMessage, names ...string) json.RawMessage {
	for _, name := range names {
		if raw, ok := root[name]; ok {
			return raw
		}
	}
	return nil
}

func decodeCards(raw json.RawMessage) (map[string]entities.CardProgress, error) {
	var perCard map[string]json.RawMessage
	if err := json.Unmarshal(raw, &perCard); err != nil {
		return map[string]entities.CardProgress{}, err
	}

	cards := make(map[string]entities.CardProgress, len(perCard))
	var firstErr error
	for id, rawCard := range perCard {
		card, err := decodeCard(rawCard)
		if err != nil {
			// One bad card must not sink the rest.
			if firstErr == nil {
				firstErr = fmt.Errorf("card %s: %w", id, err)
			}
			continue
		}
		if card.QuestionID == "" {
			card.QuestionID = id
		}
		cards[id] = sanitizeCard(card)
	}
	return cards, firstErr
}

// decodeCard reads one card record, accepting the canonical camelCase keys
// and the legacy snake_case ones field by field.
func decodeCard(raw json.RawMessage) (entities.CardProgress, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return entities.CardProgress{}, err
	}

	var card entities.CardProgress
	var firstErr error
	get := func(target any, names ...string) {
		rawField := pick(fields, names...)
		if rawField == nil {
			return
		}
		if err := json.Unmarshal(rawField, target); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("field %s: %w", names[0], err)
		}
	}

	get(&card.QuestionID, "questionId", "question_id")
	get(&card.EaseFactor, "easeFactor", "ease_factor")
	get(&card.Interval, "interval")
	get(&card.Repetitions, "repetitions")
	get(&card.NextReviewDate, "nextReviewDate", "next_review_date")
	get(&card.LastReviewDate, "lastReviewDate", "last_review_date")
	return card, firstErr
}

// sanitizeCard substitutes per-field defaults for invalid values instead of
// rejecting the record.
func sanitizeCard(card entities.CardProgress) entities.CardProgress {
	if card.EaseFactor == 0 {
		card.EaseFactor = entities.DefaultEaseFactor
	}
	if card.EaseFactor < entities.MinEaseFactor {
		card.EaseFactor = entities.MinEaseFactor
	}
	if card.Interval < 0 {
		card.Interval = 0
	}
	if card.Repetitions < 0 {
		card.Repetitions = 0
	}
	return card
}

func decodeSessions(raw json.RawMessage) ([]entities.StudySession, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []entities.StudySession{}, err
	}

	sessions := make([]entities.StudySession, 0, len(items))
	var firstErr error
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("session %d: %w", i, err)
			}
			continue
		}

		var s entities.StudySession
		decodeField := func(target any, names ...string) {
			if rawField := pick(fields, names...); rawField != nil {
				_ = json.Unmarshal(rawField, target)
			}
		}
		decodeField(&s.Date, "date")
		decodeField(&s.QuestionsAnswered, "questionsAnswered", "questions_answered")
		decodeField(&s.CorrectAnswers, "correctAnswers", "correct_answers")
		decodeField(&s.Mode, "mode")
		sessions = append(sessions, s)
	}
	return sessions, firstErr
}
