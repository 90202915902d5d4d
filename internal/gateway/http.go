package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/ielts-practice/internal/auth"
	"github.com/gokatarajesh/ielts-practice/internal/exam"
	httperrors "github.com/gokatarajesh/ielts-practice/pkg/http/errors"
)

// ResultsSource fetches scored results for a user.
type ResultsSource interface {
	ExamScore(ctx context.Context, userID, examID, sectionID int64) (exam.Score, error)
	AnswerReview(ctx context.Context, userID, examID, sectionID int64) (exam.AnswerReview, error)
}

// HTTPHandlers provides REST endpoints for scored results.
type HTTPHandlers struct {
	results func(token string) ResultsSource
	logger  zerolog.Logger
}

// NewHTTPHandlers creates the results handlers. results returns a source bound
// to the caller's token.
func NewHTTPHandlers(results func(token string) ResultsSource, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		results: results,
		logger:  logger.With().Str("component", "results_http").Logger(),
	}
}

type attempt struct {
	principal auth.Principal
	examID    int64
	sectionID int64
}

func (h *HTTPHandlers) parseAttempt(w http.ResponseWriter, r *http.Request) (attempt, bool) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return attempt{}, false
	}
	examID, err := strconv.ParseInt(r.PathValue("examId"), 10, 64)
	if err != nil || examID <= 0 {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid exam id")
		return attempt{}, false
	}
	sectionID, err := strconv.ParseInt(r.PathValue("sectionId"), 10, 64)
	if err != nil || sectionID <= 0 {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid section id")
		return attempt{}, false
	}
	return attempt{principal: principal, examID: examID, sectionID: sectionID}, true
}

// GetScore handles GET /v1/exams/{examId}/sections/{sectionId}/score
func (h *HTTPHandlers) GetScore(w http.ResponseWriter, r *http.Request) {
	a, ok := h.parseAttempt(w, r)
	if !ok {
		return
	}

	score, err := h.results(a.principal.Token).ExamScore(r.Context(), a.principal.UserID, a.examID, a.sectionID)
	if err != nil {
		h.logger.Error().Err(err).
			Int64("user_id", a.principal.UserID).
			Int64("exam_id", a.examID).
			Int64("section_id", a.sectionID).
			Msg("failed to fetch score")
		httperrors.RespondCode(w, httperrors.ErrCodeScoreFetchFailed, "Failed to get score.")
		return
	}

	h.respondJSON(w, http.StatusOK, exam.Summarize(score))
}

// GetAnswers handles GET /v1/exams/{examId}/sections/{sectionId}/answers
func (h *HTTPHandlers) GetAnswers(w http.ResponseWriter, r *http.Request) {
	a, ok := h.parseAttempt(w, r)
	if !ok {
		return
	}

	review, err := h.results(a.principal.Token).AnswerReview(r.Context(), a.principal.UserID, a.examID, a.sectionID)
	if err != nil {
		h.logger.Error().Err(err).
			Int64("user_id", a.principal.UserID).
			Int64("exam_id", a.examID).
			Int64("section_id", a.sectionID).
			Msg("failed to fetch answers")
		httperrors.RespondCode(w, httperrors.ErrCodeUpstreamError, "Failed to get answers.")
		return
	}

	h.respondJSON(w, http.StatusOK, review)
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
