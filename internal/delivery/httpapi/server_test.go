package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quizly/quizly-engine/internal/catalog"
	"github.com/quizly/quizly-engine/internal/domain/entities"
	"github.com/quizly/quizly-engine/internal/service"
)

var apiNow = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

type memLocal struct {
	snapshots map[string]entities.ProgressAggregate
}

func (m *memLocal) Read(_ context.Context, scope string) entities.ProgressAggregate {
	if agg, ok := m.snapshots[scope]; ok {
		return agg.Clone()
	}
	return entities.NewProgressAggregate()
}

func (m *memLocal) Write(_ context.Context, scope string, agg entities.ProgressAggregate) error {
	m.snapshots[scope] = agg.Clone()
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "questions.json")
	content := `{"questions": [
		{"id": "q1", "topic": "go"},
		{"id": "q2", "topic": "go"},
		{"id": "q3", "topic": "sql"}
	]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	repo, err := catalog.NewRepository(path)
	if err != nil {
		t.Fatal(err)
	}

	local := &memLocal{snapshots: make(map[string]entities.ProgressAggregate)}
	svc := service.NewProgressService(local, nil, zap.NewNop())

	srv := NewServer(svc, repo, zap.NewNop())
	srv.now = func() time.Time { return apiNow }
	return srv
}

func doJSON(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshotBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not a JSON object: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestHealthz(t *testing.T) {
	rec := doJSON(t, newTestServer(t), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetProgressStartsEmpty(t *testing.T) {
	rec := doJSON(t, newTestServer(t), http.MethodGet, "/progress", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeSnapshotBody(t, rec)
	if string(body["streak"]) != "0" {
		t.Errorf("streak = %s, want 0", body["streak"])
	}
	if string(body["cardProgress"]) != "{}" {
		t.Errorf("cardProgress = %s, want {}", body["cardProgress"])
	}
}

func TestPostAnswerWithQuality(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/progress/answers",
		`{"questionId": "q1", "quality": 5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeSnapshotBody(t, rec)
	if string(body["streak"]) != "1" {
		t.Errorf("streak = %s, want 1 after first answer", body["streak"])
	}

	var cards map[string]struct {
		Repetitions int `json:"repetitions"`
	}
	if err := json.Unmarshal(body["cardProgress"], &cards); err != nil {
		t.Fatal(err)
	}
	if cards["q1"].Repetitions != 1 {
		t.Errorf("repetitions = %d, want 1", cards["q1"].Repetitions)
	}

	// The answered card is no longer due; the untouched ones are.
	rec = doJSON(t, srv, http.MethodGet, "/cards/due", "")
	var due map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &due); err != nil {
		t.Fatal(err)
	}
	if got := due["due"]; len(got) != 2 || got[0] != "q2" || got[1] != "q3" {
		t.Errorf("due = %v, want [q2 q3]", got)
	}
}

func TestPostAnswerWithOutcome(t *testing.T) {
	srv := newTestServer(t)

	// Wrong fast answer lands in the wrong-answer set.
	rec := doJSON(t, srv, http.MethodPost, "/progress/answers",
		`{"questionId": "q2", "correct": false, "timeTakenMs": 2000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeSnapshotBody(t, rec)
	var wrong []string
	if err := json.Unmarshal(body["wrongAnswers"], &wrong); err != nil {
		t.Fatal(err)
	}
	if len(wrong) != 1 || wrong[0] != "q2" {
		t.Errorf("wrongAnswers = %v, want [q2]", wrong)
	}
}

func TestPostAnswerValidation(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"missing question id", `{"quality": 4}`},
		{"no quality or outcome", `{"questionId": "q1"}`},
		{"quality out of range", `{"questionId": "q1", "quality": 9}`},
		{"not json", `quality five`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/progress/answers", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestPostRecallDoesNotTouchWrongAnswers(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/progress/answers",
		`{"questionId": "q1", "quality": 0}`)
	rec := doJSON(t, srv, http.MethodPost, "/progress/recalls",
		`{"questionId": "q1", "quality": 5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeSnapshotBody(t, rec)
	var wrong []string
	if err := json.Unmarshal(body["wrongAnswers"], &wrong); err != nil {
		t.Fatal(err)
	}
	if len(wrong) != 1 || wrong[0] != "q1" {
		t.Errorf("wrongAnswers = %v, flashcard recall must leave the set alone", wrong)
	}
}

func TestPostSession(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/progress/sessions",
		`{"questionsAnswered": 10, "correctAnswers": 7, "mode": "quiz"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeSnapshotBody(t, rec)
	var sessions []struct {
		QuestionsAnswered int    `json:"questionsAnswered"`
		Mode              string `json:"mode"`
	}
	if err := json.Unmarshal(body["studySessions"], &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].QuestionsAnswered != 10 || sessions[0].Mode != "quiz" {
		t.Errorf("sessions = %+v", sessions)
	}

	rec = doJSON(t, srv, http.MethodPost, "/progress/sessions",
		`{"questionsAnswered": -1, "mode": "quiz"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative count: status = %d, want 400", rec.Code)
	}
}

func TestBookmarkToggle(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/progress/bookmarks", `{"questionId": "q3"}`)
	body := decodeSnapshotBody(t, rec)
	var marks []string
	if err := json.Unmarshal(body["bookmarkedQuestions"], &marks); err != nil {
		t.Fatal(err)
	}
	if len(marks) != 1 || marks[0] != "q3" {
		t.Fatalf("bookmarks = %v, want [q3]", marks)
	}

	rec = doJSON(t, srv, http.MethodPost, "/progress/bookmarks", `{"questionId": "q3"}`)
	body = decodeSnapshotBody(t, rec)
	if err := json.Unmarshal(body["bookmarkedQuestions"], &marks); err != nil {
		t.Fatal(err)
	}
	if len(marks) != 0 {
		t.Errorf("bookmarks after second toggle = %v, want empty", marks)
	}
}

func TestPutNote(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPut, "/progress/notes",
		`{"questionId": "q1", "note": "tricky wording"}`)
	body := decodeSnapshotBody(t, rec)
	var notes map[string]string
	if err := json.Unmarshal(body["notes"], &notes); err != nil {
		t.Fatal(err)
	}
	if notes["q1"] != "tricky wording" {
		t.Errorf("notes = %v", notes)
	}
}

func TestPutProgressAcceptsLegacySnapshot(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPut, "/progress",
		`{"card_progress": {}, "wrong_answers": ["q2"], "streak": 4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeSnapshotBody(t, rec)
	if string(body["streak"]) != "4" {
		t.Errorf("streak = %s, want 4", body["streak"])
	}
	var wrong []string
	if err := json.Unmarshal(body["wrongAnswers"], &wrong); err != nil {
		t.Fatal(err)
	}
	if len(wrong) != 1 || wrong[0] != "q2" {
		t.Errorf("wrongAnswers = %v, want [q2]", wrong)
	}
}

func TestPostReset(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/progress/answers", `{"questionId": "q1", "quality": 5}`)

	rec := doJSON(t, srv, http.MethodPost, "/progress/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeSnapshotBody(t, rec)
	if string(body["cardProgress"]) != "{}" || string(body["streak"]) != "0" {
		t.Errorf("reset snapshot not empty: %s", rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/progress", "")
	body = decodeSnapshotBody(t, rec)
	if string(body["cardProgress"]) != "{}" {
		t.Error("reset did not persist")
	}
}

func TestGetCardLevel(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/cards/level?id=q1", "")
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["level"] != "forgotten" {
		t.Errorf("level = %q, want forgotten for a never-reviewed card", resp["level"])
	}

	rec = doJSON(t, srv, http.MethodGet, "/cards/level", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: status = %d, want 400", rec.Code)
	}
}

func TestGetTopicsAndProgress(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/progress/answers", `{"questionId": "q1", "quality": 5}`)

	rec := doJSON(t, srv, http.MethodGet, "/topics", "")
	var topics map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &topics); err != nil {
		t.Fatal(err)
	}
	if got := topics["topics"]; len(got) != 2 || got[0] != "go" || got[1] != "sql" {
		t.Errorf("topics = %v, want [go sql]", got)
	}

	rec = doJSON(t, srv, http.MethodGet, "/topics/progress", "")
	var progress map[string][]catalog.TopicProgress
	if err := json.Unmarshal(rec.Body.Bytes(), &progress); err != nil {
		t.Fatal(err)
	}
	want := []catalog.TopicProgress{
		{Topic: "go", Total: 2, Answered: 1, Correct: 1},
		{Topic: "sql", Total: 1, Answered: 0, Correct: 0},
	}
	got := progress["topics"]
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("topic progress:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestOwnerHeaderScopesWeakCards(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/progress/answers", `{"questionId": "q1", "quality": 3}`)

	rec := doJSON(t, srv, http.MethodGet, "/cards/weak", "")
	var weak map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &weak); err != nil {
		t.Fatal(err)
	}
	// One repetition keeps the card in the practice-weak bucket.
	if got := weak["weak"]; len(got) != 1 || got[0] != "q1" {
		t.Errorf("weak = %v, want [q1]", got)
	}
}
