package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gokatarajesh/ielts-practice/internal/exam"
	"github.com/gokatarajesh/ielts-practice/internal/metrics"
)

const maxErrorBody = 4 << 10

// Client talks to the exam REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	metrics    *metrics.Collector
}

// NewClient creates a client for baseURL. A nil httpClient gets a 10s timeout.
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Collector) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		metrics:    m,
	}
}

// WithToken returns a copy that authenticates as the holder of token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// APIError is a non-2xx response or an error envelope from the backend.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend %d: %s (%s)", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

// envelope is the backend's optional response wrapper. statusCode may be a
// number or a string and error may be a string or a list of strings.
type envelope struct {
	StatusCode json.RawMessage `json:"statusCode"`
	Message    string          `json:"message"`
	Error      json.RawMessage `json:"error"`
	Data       json.RawMessage `json:"data"`
}

// Sections lists an exam's sections without their questions.
func (c *Client) Sections(ctx context.Context, examID int64) ([]exam.Section, error) {
	var out []exam.Section
	err := c.do(ctx, "sections", http.MethodGet, fmt.Sprintf("/api/Section/exam/%d", examID), nil, nil, &out)
	return out, err
}

// Questions lists a section's questions with their options.
func (c *Client) Questions(ctx context.Context, sectionID int64) ([]exam.Question, error) {
	var out []exam.Question
	err := c.do(ctx, "questions", http.MethodGet, fmt.Sprintf("/api/Question/section/%d", sectionID), nil, nil, &out)
	return out, err
}

// SubmitResults writes a batch of answer records.
func (c *Client) SubmitResults(ctx context.Context, records []exam.Record) error {
	return c.do(ctx, "submit_results", http.MethodPost, "/api/UserExamResult/batch", nil, records, nil)
}

// WritingPrompts lists the prompts of a writing exam.
func (c *Client) WritingPrompts(ctx context.Context, examID int64) ([]exam.WritingPrompt, error) {
	var out []exam.WritingPrompt
	err := c.do(ctx, "writing_prompts", http.MethodGet, fmt.Sprintf("/api/WritingExam/%d/questions", examID), nil, nil, &out)
	return out, err
}

type scoreResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ScoreWriting sends an essay for scoring and returns the first feedback
// message, or "" when the scorer returned none.
func (c *Client) ScoreWriting(ctx context.Context, sub exam.WritingSubmission) (string, error) {
	var out scoreResponse
	if err := c.do(ctx, "score_writing", http.MethodPost, "/api/WritingExam/score", nil, sub, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

// ExamScore fetches the scoring summary of a submitted section.
func (c *Client) ExamScore(ctx context.Context, userID, examID, sectionID int64) (exam.Score, error) {
	var out exam.Score
	err := c.do(ctx, "exam_score", http.MethodGet, "/api/UserExamResult/score", attemptQuery(userID, examID, sectionID), nil, &out)
	return out, err
}

// AnswerReview fetches the per-answer verdicts of a submitted section.
func (c *Client) AnswerReview(ctx context.Context, userID, examID, sectionID int64) (exam.AnswerReview, error) {
	var out exam.AnswerReview
	err := c.do(ctx, "answer_review", http.MethodGet, "/api/UserExamResult/answers", attemptQuery(userID, examID, sectionID), nil, &out)
	return out, err
}

func attemptQuery(userID, examID, sectionID int64) url.Values {
	values := url.Values{}
	values.Set("userId", fmt.Sprint(userID))
	values.Set("examId", fmt.Sprint(examID))
	values.Set("sectionId", fmt.Sprint(sectionID))
	return values
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveBackend(op, start, err) }()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: %w", op, errorFromBody(resp.StatusCode, raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	payload, err := unwrap(resp.StatusCode, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if out == nil || len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// unwrap returns the data of an envelope response, or raw unchanged when the
// body is not an envelope.
func unwrap(status int, raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.StatusCode == nil {
		return raw, nil
	}
	code := statusFrom(env.StatusCode, status)
	if code >= 300 || hasError(env.Error) {
		return nil, &APIError{Status: code, Message: env.Message, Detail: errorText(env.Error)}
	}
	return env.Data, nil
}

func errorFromBody(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	var env envelope
	if json.Unmarshal(raw, &env) == nil {
		if env.Message != "" {
			apiErr.Message = env.Message
		}
		apiErr.Detail = errorText(env.Error)
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		apiErr.Detail = text
	}
	return apiErr
}

func statusFrom(raw json.RawMessage, fallback int) int {
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if _, err := fmt.Sscan(s, &n); err == nil {
			return n
		}
	}
	return fallback
}

func hasError(raw json.RawMessage) bool {
	return errorText(raw) != ""
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return ""
}
