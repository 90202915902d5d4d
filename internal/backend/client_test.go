package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/ielts-practice/internal/exam"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client(), nil)
}

func TestSectionsDecodesBareArray(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Section/exam/7", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"sectionId":1,"examId":7,"name":"Part 1","audioUrl":"a.mp3","sortOrder":1}]`)
	})

	sections, err := c.WithToken("tok").Sections(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "a.mp3", sections[0].AudioURL)
	assert.Equal(t, exam.SectionAudio, sections[0].Mode())
}

func TestQuestionsUnwrapsEnvelope(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Question/section/3", r.URL.Path)
		_, _ = io.WriteString(w, `{"statusCode":"200","message":"ok","data":[
			{"questionId":9,"sectionId":3,"questionText":"Q","type":"YES_NO_NOT_GIVEN",
			 "options":[{"optionId":1,"optionText":"Yes"}]}]}`)
	})

	qs, err := c.Questions(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, exam.TypeYesNoNotGiven, qs[0].Type)
	assert.Equal(t, int64(1), qs[0].Options[0].ID)
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"statusCode":400,"message":"bad exam","error":["examId invalid","missing"]}`)
	})

	_, err := c.Sections(context.Background(), 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "bad exam", apiErr.Message)
	assert.Equal(t, "examId invalid; missing", apiErr.Detail)
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	err := c.SubmitResults(context.Background(), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Detail)
}

func TestSubmitResultsPostsRecords(t *testing.T) {
	var got []map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/UserExamResult/batch", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	err := c.SubmitResults(context.Background(), []exam.Record{
		{UserID: 1, ExamID: 2, SectionID: 3, QuestionID: 4, AnswerOptionID: 0, AnswerText: "Paris", IsSubmitted: true, AnsweredAt: at},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Paris", got[0]["answerText"])
	assert.Equal(t, float64(0), got[0]["answerOptionId"])
	assert.Equal(t, "2025-01-01T00:00:00Z", got[0]["answeredAt"])
}

func TestScoreWritingReturnsFirstChoice(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var sub exam.WritingSubmission
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sub))
		assert.Equal(t, "essay", sub.Answer)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"Band 6"}},{"message":{"content":"ignored"}}]}`)
	})

	feedback, err := c.ScoreWriting(context.Background(), exam.WritingSubmission{UserID: 1, ExamID: 2, Question: "q", Answer: "essay"})
	require.NoError(t, err)
	assert.Equal(t, "Band 6", feedback)
}

func TestScoreWritingWithoutChoices(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	})
	feedback, err := c.ScoreWriting(context.Background(), exam.WritingSubmission{})
	require.NoError(t, err)
	assert.Equal(t, "", feedback)
}

func TestExamScoreQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/UserExamResult/score", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("userId"))
		assert.Equal(t, "7", r.URL.Query().Get("examId"))
		assert.Equal(t, "1", r.URL.Query().Get("sectionId"))
		_, _ = io.WriteString(w, `{"sectionId":1,"totalQuestions":10,"correctAnswers":8,"incorrectAnswers":2,"percentCorrect":80,
			"typeStats":[{"type":"MAP_LABEL","total":10,"correct":8,"incorrect":2}]}`)
	})

	score, err := c.ExamScore(context.Background(), 5, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 80.0, score.PercentCorrect)
	assert.Equal(t, "Band 8", exam.Summarize(score).Band)
}

func TestAnswerReview(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/UserExamResult/answers", r.URL.Path)
		_, _ = io.WriteString(w, `{"transcript":"t","detailedResults":[{"userAnswerId":1,"userAnswer":"No","isCorrect":true,"correctOptionId":2,"correctAnswer":"No"}]}`)
	})

	review, err := c.AnswerReview(context.Background(), 5, 7, 1)
	require.NoError(t, err)
	require.Len(t, review.DetailedResults, 1)
	assert.True(t, review.DetailedResults[0].IsCorrect)
}

// stubSource serves sections and questions from memory.
type stubSource struct {
	mu        sync.Mutex
	sections  []exam.Section
	questions map[int64][]exam.Question
	failOn    int64
	calls     int
}

func (s *stubSource) Sections(context.Context, int64) ([]exam.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return append([]exam.Section(nil), s.sections...), nil
}

func (s *stubSource) Questions(_ context.Context, sectionID int64) ([]exam.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if sectionID == s.failOn {
		return nil, errors.New("section unavailable")
	}
	return append([]exam.Question(nil), s.questions[sectionID]...), nil
}

type memCache struct {
	mu   sync.Mutex
	data map[int64][]exam.Section
	gets int
}

func (c *memCache) Get(_ context.Context, examID int64) ([]exam.Section, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.data[examID], nil
}

func (c *memCache) Set(_ context.Context, examID int64, sections []exam.Section) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[examID] = sections
	return nil
}

func newStubSource() *stubSource {
	return &stubSource{
		sections: []exam.Section{
			{ID: 2, SortOrder: 2},
			{ID: 1, SortOrder: 1},
		},
		questions: map[int64][]exam.Question{
			1: {{ID: 12, SortOrder: 2}, {ID: 11, SortOrder: 1, Options: []exam.Option{{ID: 3, SortOrder: 2}, {ID: 2, SortOrder: 1}}}},
			2: {{ID: 21}},
		},
	}
}

func TestLoaderAssemblesAndOrders(t *testing.T) {
	src := newStubSource()
	l := NewStructureLoader(src, nil, LoaderOptions{Concurrency: 2}, zerolog.Nop())

	sections, err := l.LoadStructure(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, int64(1), sections[0].ID)
	assert.Equal(t, int64(11), sections[0].Questions[0].ID)
	assert.Equal(t, int64(2), sections[0].Questions[0].Options[0].ID)
	assert.Equal(t, int64(21), sections[1].Questions[0].ID)
}

func TestLoaderFailsWholeLoad(t *testing.T) {
	src := newStubSource()
	src.failOn = 2
	l := NewStructureLoader(src, nil, LoaderOptions{}, zerolog.Nop())

	_, err := l.LoadStructure(context.Background(), 7)
	assert.ErrorContains(t, err, "section 2")
}

func TestLoaderUsesCache(t *testing.T) {
	src := newStubSource()
	cache := &memCache{data: map[int64][]exam.Section{}}
	l := NewStructureLoader(src, cache, LoaderOptions{}, zerolog.Nop())

	first, err := l.LoadStructure(context.Background(), 7)
	require.NoError(t, err)
	calls := src.calls

	second, err := l.LoadStructure(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, src.calls)
	assert.Equal(t, 2, cache.gets)
}

func TestUserBackendBindsToken(t *testing.T) {
	var mu sync.Mutex
	auth := map[string]int{}
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth[r.Header.Get("Authorization")]++
		mu.Unlock()
		switch r.URL.Path {
		case "/api/Section/exam/7":
			_, _ = io.WriteString(w, `[{"sectionId":1}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	})

	ub := c.ForUser("user-token", nil, LoaderOptions{}, zerolog.Nop())
	sections, err := ub.LoadStructure(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	require.NoError(t, ub.SubmitResults(context.Background(), nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"Bearer user-token": 3}, auth)
}

func TestLoaderWarnsOnUnknownQuestionType(t *testing.T) {
	src := newStubSource()
	src.questions[2] = []exam.Question{{ID: 21, Type: "ESSAY_PLANNING"}}
	src.questions[1] = []exam.Question{{ID: 11, Type: exam.TypeMapLabel}}
	var buf bytes.Buffer
	l := NewStructureLoader(src, nil, LoaderOptions{}, zerolog.New(&buf))

	_, err := l.LoadStructure(context.Background(), 7)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"type":"ESSAY_PLANNING"`)
	assert.Equal(t, 1, strings.Count(buf.String(), "unknown question type"))
}
