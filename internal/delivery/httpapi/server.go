// Package httpapi exposes the progress engine over a small JSON API. The
// caller identifies the account with the X-Owner-ID header; requests without
// it operate on the device-local snapshot only.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quizly/quizly-engine/internal/catalog"
	"github.com/quizly/quizly-engine/internal/domain/entities"
	"github.com/quizly/quizly-engine/internal/snapshot"
	"github.com/quizly/quizly-engine/internal/srs"
)

// Engine is the progress service surface the API consumes.
type Engine interface {
	Load(ctx context.Context, ownerID string) entities.ProgressAggregate
	Save(ctx context.Context, ownerID string, agg entities.ProgressAggregate)
	Reset(ctx context.Context, ownerID string) entities.ProgressAggregate
	RecordAnswer(agg entities.ProgressAggregate, questionID string, quality srs.Quality, now time.Time) (entities.ProgressAggregate, error)
	RecordOutcome(agg entities.ProgressAggregate, questionID string, correct bool, timeTaken time.Duration, now time.Time) (entities.ProgressAggregate, error)
	RecordRecall(agg entities.ProgressAggregate, questionID string, quality srs.Quality, now time.Time) (entities.ProgressAggregate, error)
	CompleteSession(agg entities.ProgressAggregate, session entities.StudySession) entities.ProgressAggregate
	ToggleBookmark(agg entities.ProgressAggregate, questionID string) entities.ProgressAggregate
	SetNote(agg entities.ProgressAggregate, questionID, note string) entities.ProgressAggregate
	DueCards(agg entities.ProgressAggregate, ids []string, now time.Time) []string
	WeakCards(agg entities.ProgressAggregate, ids []string) []string
	Classify(agg entities.ProgressAggregate, questionID string) srs.MemoryLevel
}

// Catalog is the question catalog surface the API consumes.
type Catalog interface {
	IDs() []string
	Topics() []string
	ProgressByTopic(agg entities.ProgressAggregate) []catalog.TopicProgress
}

// Server holds the dependencies for the HTTP API.
type Server struct {
	engine  Engine
	catalog Catalog
	router  *http.ServeMux
	logger  *zap.Logger
	now     func() time.Time
}

// NewServer creates and configures the API server.
func NewServer(engine Engine, cat Catalog, logger *zap.Logger) *Server {
	s := &Server{
		engine:  engine,
		catalog: cat,
		router:  http.NewServeMux(),
		logger:  logger,
		now:     time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /progress", s.handleGetProgress())
	s.router.HandleFunc("PUT /progress", s.handlePutProgress())
	s.router.HandleFunc("POST /progress/answers", s.handlePostAnswer())
	s.router.HandleFunc("POST /progress/recalls", s.handlePostRecall())
	s.router.HandleFunc("POST /progress/sessions", s.handlePostSession())
	s.router.HandleFunc("POST /progress/bookmarks", s.handlePostBookmark())
	s.router.HandleFunc("PUT /progress/notes", s.handlePutNote())
	s.router.HandleFunc("POST /progress/reset", s.handlePostReset())
	s.router.HandleFunc("GET /cards/due", s.handleGetDueCards())
	s.router.HandleFunc("GET /cards/weak", s.handleGetWeakCards())
	s.router.HandleFunc("GET /cards/level", s.handleGetCardLevel())
	s.router.HandleFunc("GET /topics", s.handleGetTopics())
	s.router.HandleFunc("GET /topics/progress", s.handleGetTopicProgress())
	s.router.HandleFunc("GET /healthz", s.handleHealthz())
}

func ownerID(r *http.Request) string {
	return r.Header.Get("X-Owner-ID")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

// writeSnapshot renders the aggregate in its canonical snapshot form so the
// API and the stores speak the same JSON.
func (s *Server) writeSnapshot(w http.ResponseWriter, status int, agg entities.ProgressAggregate) {
	payload, err := snapshot.Encode(agg)
	if err != nil {
		s.logger.Error("failed to encode progress snapshot", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleGetProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg := s.engine.Load(r.Context(), ownerID(r))
		s.writeSnapshot(w, http.StatusOK, agg)
	}
}

// handlePutProgress replaces the stored snapshot wholesale. The decoder is
// field-tolerant, but a body that is not a JSON object at all is rejected
// rather than silently wiping progress with an empty aggregate.
func (s *Server) handlePutProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := json.RawMessage{}
		if err := decodeBody(r, &body); err != nil {
			s.badRequest(w, "invalid JSON body")
			return
		}
		agg, err := snapshot.Decode(body)
		if err != nil {
			s.badRequest(w, "unreadable progress snapshot")
			return
		}
		s.engine.Save(r.Context(), ownerID(r), agg)
		s.writeSnapshot(w, http.StatusOK, agg)
	}
}

type answerRequest struct {
	QuestionID  string `json:"questionId"`
	Quality     *int   `json:"quality"`
	Correct     *bool  `json:"correct"`
	TimeTakenMs int64  `json:"timeTakenMs"`
}

// handlePostAnswer records a quiz answer. Callers either report the SM-2
// quality directly or report the raw outcome and let the quality policy
// derive it.
func (s *Server) handlePostAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerRequest
		if err := decodeBody(r, &req); err != nil {
			s.badRequest(w, "invalid JSON body")
			return
		}
		if req.QuestionID == "" {
			s.badRequest(w, "questionId is required")
			return
		}

		owner := ownerID(r)
		now := s.now()
		agg := s.engine.Load(r.Context(), owner)

		var (
			updated entities.ProgressAggregate
			err     error
		)
		switch {
		case req.Quality != nil:
			updated, err = s.engine.RecordAnswer(agg, req.QuestionID, srs.Quality(*req.Quality), now)
		case req.Correct != nil:
			updated, err = s.engine.RecordOutcome(agg, req.QuestionID, *req.Correct, time.Duration(req.TimeTakenMs)*time.Millisecond, now)
		default:
			s.badRequest(w, "either quality or correct is required")
			return
		}
		if err != nil {
			s.badRequest(w, err.Error())
			return
		}

		s.engine.Save(r.Context(), owner, updated)
		s.writeSnapshot(w, http.StatusOK, updated)
	}
}

type recallRequest struct {
	QuestionID string `json:"questionId"`
	Quality    int    `json:"quality"`
}

func (s *Server) handlePostRecall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recallRequest
		if err := decodeBody(r, &req); err != nil {
			s.badRequest(w, "invalid JSON body")
			return
		}
		if req.QuestionID == "" {
			s.badRequest(w, "questionId is required")
			return
		}

		owner := ownerID(r)
		agg := s.engine.Load(r.Context(), owner)
		updated, err := s.engine.RecordRecall(agg, req.QuestionID, srs.Quality(req.Quality), s.now())
		if err != nil {
			s.badRequest(w, err.Error())
			return
		}

		s.engine.Save(r.Context(), owner, updated)
		s.writeSnapshot(w, http.StatusOK, updated)
	}
}

type sessionRequest struct {
	Date              *time.Time `json:"date"`
	QuestionsAnswered int        `json:"questionsAnswered"`
	CorrectAnswers    int        `json:"correctAnswers"`
	Mode              string     `json:"mode"`
}

func (s *Server) handlePostSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := decodeBody(r, &req); err != nil {
			s.badRequest(w, "invalid JSON body")
			return
		}
		if req.Mode == "" {
			s.badRequest(w, "mode is required")
			return
		}
		if req.QuestionsAnswered < 0 || req.CorrectAnswers < 0 {
			s.badRequest(w, "counts must not be negative")
			return
		}

		date := s.now()
		if req.Date != nil {
			date = *req.Date
		}

		owner := ownerID(r)
		agg := s.engine.Load(r.Context(), owner)
		updated := s.engine.CompleteSession(agg, entities.StudySession{
			Date:              date,
			QuestionsAnswered: req.QuestionsAnswered,
			CorrectAnswers:    req.CorrectAnswers,
			Mode:              req.Mode,
		})

		s.engine.Save(r.Context(), owner, updated)
		s.writeSnapshot(w, http.StatusOK, updated)
	}
}

type bookmarkRequest struct {
	QuestionID string `json:"questionId"`
}

func (s *Server) handlePostBookmark() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if err := decodeBody(r, &req); err != nil {
			s.badRequest(w, "invalid JSON body")
			return
		}
		if req.QuestionID == "" {
			s.badRequest(w, "questionId is required")
			return
		}

		owner := ownerID(r)
		agg := s.engine.Load(r.Context(), owner)
		updated := s.engine.ToggleBookmark(agg, req.QuestionID)

		s.engine.Save(r.Context(), owner, updated)
		s.writeSnapshot(w, http.StatusOK, updated)
	}
}

type noteRequest struct {
	QuestionID string `json:"questionId"`
	Note       string `json:"note"`
}

func (s *Server) handlePutNote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req noteRequest
		if err := decodeBody(r, &req); err != nil {
			s.badRequest(w, "invalid JSON body")
			return
		}
		if req.QuestionID == "" {
			s.badRequest(w, "questionId is required")
			return
		}

		owner := ownerID(r)
		agg := s.engine.Load(r.Context(), owner)
		updated := s.engine.SetNote(agg, req.QuestionID, req.Note)

		s.engine.Save(r.Context(), owner, updated)
		s.writeSnapshot(w, http.StatusOK, updated)
	}
}

func (s *Server) handlePostReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fresh := s.engine.Reset(r.Context(), ownerID(r))
		s.writeSnapshot(w, http.StatusOK, fresh)
	}
}

func (s *Server) handleGetDueCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg := s.engine.Load(r.Context(), ownerID(r))
		due := s.engine.DueCards(agg, s.catalog.IDs(), s.now())
		s.writeJSON(w, http.StatusOK, map[string][]string{"due": due})
	}
}

func (s *Server) handleGetWeakCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg := s.engine.Load(r.Context(), ownerID(r))
		weak := s.engine.WeakCards(agg, s.catalog.IDs())
		s.writeJSON(w, http.StatusOK, map[string][]string{"weak": weak})
	}
}

func (s *Server) handleGetCardLevel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			s.badRequest(w, "id query parameter is required")
			return
		}
		agg := s.engine.Load(r.Context(), ownerID(r))
		s.writeJSON(w, http.StatusOK, map[string]string{
			"questionId": id,
			"level":      string(s.engine.Classify(agg, id)),
		})
	}
}

func (s *Server) handleGetTopics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string][]string{"topics": s.catalog.Topics()})
	}
}

func (s *Server) handleGetTopicProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg := s.engine.Load(r.Context(), ownerID(r))
		s.writeJSON(w, http.StatusOK, map[string][]catalog.TopicProgress{
			"topics": s.catalog.ProgressByTopic(agg),
		})
	}
}

func (s *Server) handleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
