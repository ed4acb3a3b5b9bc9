// Package catalog provides the question catalog the engine schedules over:
// stable question identifiers with their topic labels. Question text,
// options and answers live in the content layer and are invisible here.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/quizly/quizly-engine/internal/domain/entities"
)

var ErrQuestionNotFound = errors.New("catalog: question not found")

// Repository is an in-memory catalog loaded once at startup.
type Repository struct {
	questions []entities.Question
	byID      map[string]entities.Question
}

// NewRepository loads the catalog from a JSON file of the form
// {"questions": [{"id": "...", "topic": "..."}]}.
func NewRepository(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var wrapper struct {
		Questions []entities.Question `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("unmarshal catalog JSON: %w", err)
	}
	if len(wrapper.Questions) == 0 {
		return nil, errors.New("catalog: no questions")
	}

	return newRepository(wrapper.Questions)
}

func newRepository(questions []entities.Question) (*Repository, error) {
	byID := make(map[string]entities.Question, len(questions))
	for _, q := range questions {
		if q.ID == "" {
			return nil, errors.New("catalog: question with empty id")
		}
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate question id %s", q.ID)
		}
		byID[q.ID] = q
	}
	return &Repository{questions: questions, byID: byID}, nil
}

// GetByID returns one catalog entry.
func (r *Repository) GetByID(id string) (entities.Question, error) {
	q, ok := r.byID[id]
	if !ok {
		return entities.Question{}, ErrQuestionNotFound
	}
	return q, nil
}

// All returns every catalog entry in file order.
func (r *Repository) All() []entities.Question {
	out := make([]entities.Question, len(r.questions))
	copy(out, r.questions)
	return out
}

// IDs returns every question id in file order.
func (r *Repository) IDs() []string {
	ids := make([]string, 0, len(r.questions))
	for _, q := range r.questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// Topics returns the distinct topic labels in first-seen order, skipping
// questions without one.
func (r *Repository) Topics() []string {
	seen := make(map[string]struct{})
	topics := []string{}
	for _, q := range r.questions {
		if q.Topic == "" {
			continue
		}
		if _, ok := seen[q.Topic]; ok {
			continue
		}
		seen[q.Topic] = struct{}{}
		topics = append(topics, q.Topic)
	}
	return topics
}

// TopicProgress summarizes per-topic study state for display: how many
// questions in the topic have been seen at all, and how many have at least
// one successful recall behind them.
type TopicProgress struct {
	Topic    string `json:"topic"`
	Total    int    `json:"total"`
	Answered int    `json:"answered"`
	Correct  int    `json:"correct"`
}

// ProgressByTopic aggregates card progress over the catalog's topics.
func (r *Repository) ProgressByTopic(agg entities.ProgressAggregate) []TopicProgress {
	index := make(map[string]int)
	out := []TopicProgress{}

	for _, q := range r.questions {
		if q.Topic == "" {
			continue
		}
		i, ok := index[q.Topic]
		if !ok {
			i = len(out)
			index[q.Topic] = i
			out = append(out, TopicProgress{Topic: q.Topic})
		}
		out[i].Total++

		card, seen := agg.CardProgress[q.ID]
		if !seen {
			continue
		}
		out[i].Answered++
		if card.Repetitions > 0 {
			out[i].Correct++
		}
	}
	return out
}
