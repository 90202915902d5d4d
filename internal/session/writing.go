package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/ielts-practice/internal/exam"
)

// WritingBackend is what a writing session needs from the exam backend.
type WritingBackend interface {
	WritingPrompts(ctx context.Context, examID int64) ([]exam.WritingPrompt, error)
	ScoreWriting(ctx context.Context, sub exam.WritingSubmission) (string, error)
}

// WritingSession runs one writing task: a single prompt, a free-text answer and
// a scored submission.
type WritingSession struct {
	core

	backend WritingBackend

	prompt   exam.WritingPrompt
	answer   string
	feedback string
}

// NewWritingSession creates a writing session in StateInit.
func NewWritingSession(examID int64, user User, backend WritingBackend, listener Listener, opts Options, logger zerolog.Logger) *WritingSession {
	s := &WritingSession{
		core:    newCore(KindWriting, examID, user, listener, opts.withDefaults(WritingDuration), logger),
		backend: backend,
	}
	s.opts.Metrics.SessionOpened(string(KindWriting))
	return s
}

// Start fetches the writing prompt. The first prompt of the exam is used.
func (s *WritingSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInit || s.closed {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	prompts, err := s.backend.WritingPrompts(ctx, s.examID)

	s.mu.Lock()
	if s.closed || s.state != StateInit {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err != nil || len(prompts) == 0 {
		s.state = StateLoadFailed
		s.mu.Unlock()
		if err != nil {
			s.logger.Error().Err(err).Msg("load writing prompt")
			s.toast(ToastError, MsgQuestionError)
			s.emitState()
			return fmt.Errorf("%w: writing prompt for exam %d: %w", ErrLoadFailed, s.examID, err)
		}
		s.logger.Warn().Msg("writing exam has no prompt")
		s.toast(ToastInfo, MsgNoQuestion)
		s.emitState()
		return fmt.Errorf("exam %d: %w", s.examID, ErrUnknownQuestion)
	}
	s.prompt = prompts[0]
	s.state = StateReady
	s.armTimerLocked(func() {
		s.expireSubmit(func(ctx context.Context) error {
			_, err := s.Submit(ctx, TriggerTimer)
			return err
		})
	})
	prompt := s.prompt
	s.mu.Unlock()

	s.logger.Info().Int64("prompt_id", prompt.ID).Msg("writing task ready")
	s.emit(Event{
		Type:      EventExamLoaded,
		Prompt:    &prompt,
		Remaining: s.Remaining(),
		Clock:     FormatRemaining(s.Remaining()),
	})
	return nil
}

// SetAnswer replaces the essay text. Editing stops once submitted.
func (s *WritingSession) SetAnswer(text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	switch s.state {
	case StateReady, StateSubmitting:
	case StateSubmitted:
		s.mu.Unlock()
		return ErrAlreadySubmitted
	default:
		s.mu.Unlock()
		return ErrNotReady
	}
	s.answer = text
	promptID := s.prompt.ID
	s.mu.Unlock()

	s.emit(Event{Type: EventAnswerRecorded, QuestionID: promptID, Answer: text})
	return nil
}

// Answer returns the current essay text.
func (s *WritingSession) Answer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer
}

// Submit sends the essay for scoring and returns the feedback. An empty essay
// is rejected with an info toast and leaves the session unchanged.
func (s *WritingSession) Submit(ctx context.Context, trigger Trigger) (string, error) {
	s.mu.Lock()
	if s.state == StateReady && !s.closed && (strings.TrimSpace(s.prompt.Question) == "" || strings.TrimSpace(s.answer) == "") {
		s.mu.Unlock()
		s.toast(ToastInfo, MsgEmptyAnswer)
		return "", ErrEmptyAnswer
	}
	if err := s.beginSubmitLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	sub := exam.WritingSubmission{
		UserID:   s.user.ID,
		ExamID:   s.examID,
		Question: s.prompt.Question,
		Answer:   s.answer,
	}
	s.mu.Unlock()

	s.logger.Info().Str("trigger", string(trigger)).Int("answer_len", len(sub.Answer)).Msg("submitting writing")
	s.emitState()

	feedback, err := s.backend.ScoreWriting(ctx, sub)
	s.opts.Metrics.Submission(string(KindWriting), string(trigger), err)

	if !s.finishSubmit(err) {
		s.logger.Info().Err(err).Msg("scoring result dropped after close")
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrSubmitFailed, err)
		}
		return "", ErrSessionClosed
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("score writing")
		s.toast(ToastError, MsgScoreFailed)
		if trigger == TriggerTimer {
			s.toast(ToastInfo, MsgTimeUp)
		}
		s.emitState()
		return "", fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	if strings.TrimSpace(feedback) == "" {
		feedback = MsgNoFeedback
	}
	s.mu.Lock()
	s.feedback = feedback
	s.mu.Unlock()

	s.haltTimer()
	s.logger.Info().Str("trigger", string(trigger)).Msg("writing scored")
	s.emit(Event{Type: EventFeedback, Feedback: feedback})
	return feedback, nil
}

// Feedback returns the scorer's feedback once submitted.
func (s *WritingSession) Feedback() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedback
}

// Back leaves the writing screen. Confirmation is only asked while the task is live.
func (s *WritingSession) Back(_ context.Context, confirmed bool) {
	st := s.State()
	if !st.Terminal() && !confirmed {
		s.emit(Event{Type: EventConfirmExit, Confirm: &Confirm{Title: MsgConfirmExitTitle, Body: MsgConfirmExitBody}})
		return
	}
	s.haltTimer()
	s.terminate()
	s.logger.Info().Str("from", st.String()).Msg("writing exited")
	s.navigate(Navigation{Route: RouteBack})
}

// Close tears the session down. Safe to call repeatedly.
func (s *WritingSession) Close(context.Context) {
	if !s.markClosed() {
		return
	}
	s.haltTimer()
	s.opts.Metrics.SessionClosed(string(KindWriting))
	s.logger.Debug().Msg("session closed")
}

// Snapshot reports progress.
func (s *WritingSession) Snapshot() Snapshot {
	s.mu.Lock()
	st := s.state
	answered := 0
	if strings.TrimSpace(s.answer) != "" {
		answered = 1
	}
	s.mu.Unlock()
	return Snapshot{
		ID:        s.id,
		Kind:      KindWriting,
		ExamID:    s.examID,
		State:     st.String(),
		Remaining: s.Remaining(),
		Answered:  answered,
		Questions: 1,
	}
}

// Tick advances a manually driven countdown by one second.
func (s *WritingSession) Tick() bool { return s.tick() }
