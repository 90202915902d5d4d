package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/ielts-practice/internal/exam"
)

// ExamBackend is what a listening/reading session needs from the exam backend.
type ExamBackend interface {
	LoadStructure(ctx context.Context, examID int64) ([]exam.Section, error)
	SubmitResults(ctx context.Context, records []exam.Record) error
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID        string `json:"sessionId"`
	Kind      Kind   `json:"kind"`
	ExamID    int64  `json:"examId"`
	State     string `json:"state"`
	Remaining int    `json:"remaining"`
	Playing   string `json:"playing,omitempty"`
	Answered  int    `json:"answered"`
	Questions int    `json:"questions"`
}

// ExamSession runs one listening or reading exam attempt: it loads the exam,
// collects answers, drives the countdown and audio, and submits exactly once.
type ExamSession struct {
	core

	backend ExamBackend
	audio   *AudioManager
	ledger  *exam.Ledger

	sections []exam.Section
}

// NewExamSession creates a session in StateInit. Call Start to load the exam.
func NewExamSession(examID int64, user User, backend ExamBackend, player Player, listener Listener, opts Options, logger zerolog.Logger) *ExamSession {
	s := &ExamSession{
		core:    newCore(KindExam, examID, user, listener, opts.withDefaults(ListeningReadingDuration), logger),
		backend: backend,
		ledger:  exam.NewLedger(),
	}
	s.audio = NewAudioManager(player, func(uri string, playing bool) {
		s.emit(Event{Type: EventAudio, Audio: &AudioState{URI: uri, Playing: playing}})
	}, s.logger)
	s.opts.Metrics.SessionOpened(string(KindExam))
	return s
}

// Start loads the exam structure and arms the countdown. A load failure is
// terminal for the session.
func (s *ExamSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInit || s.closed {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	sections, err := s.backend.LoadStructure(ctx, s.examID)

	s.mu.Lock()
	// A close or confirmed exit while loading wins over the load result.
	if s.closed || s.state != StateInit {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err != nil {
		s.state = StateLoadFailed
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("load exam structure")
		s.toast(ToastError, MsgLoadFailed)
		s.emitState()
		return fmt.Errorf("%w: exam %d: %w", ErrLoadFailed, s.examID, err)
	}
	s.sections = sections
	s.state = StateReady
	s.armTimerLocked(func() {
		s.expireSubmit(func(ctx context.Context) error {
			_, err := s.Submit(ctx, TriggerTimer)
			return err
		})
	})
	s.mu.Unlock()

	s.logger.Info().
		Int("sections", len(sections)).
		Int("questions", exam.CountQuestions(sections)).
		Msg("exam ready")
	s.emit(Event{
		Type:      EventExamLoaded,
		Sections:  sections,
		Remaining: s.Remaining(),
		Clock:     FormatRemaining(s.Remaining()),
	})

	if s.opts.AutoPlay {
		if section, ok := exam.FirstAudioSection(sections); ok {
			// Failure is already reported to the client.
			_ = s.PlayAudio(ctx, section.AudioURL)
		}
	}
	return nil
}

// Sections returns the loaded exam structure.
func (s *ExamSession) Sections() []exam.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sections
}

// SetAnswer records the latest answer for a question.
func (s *ExamSession) SetAnswer(questionID int64, value string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateReady && s.state != StateSubmitting {
		st := s.state
		s.mu.Unlock()
		if st == StateSubmitted {
			return ErrAlreadySubmitted
		}
		return ErrNotReady
	}
	if _, ok := exam.FindQuestion(s.sections, questionID); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	s.ledger.Set(questionID, value)
	s.mu.Unlock()

	s.emit(Event{Type: EventAnswerRecorded, QuestionID: questionID, Answer: value})
	return nil
}

// Answer returns the recorded answer for a question, "" when none.
func (s *ExamSession) Answer(questionID int64) string {
	return s.ledger.Get(questionID)
}

// Submit assembles the answers and sends them to the backend. Only the first
// call from StateReady reaches the backend; later calls return the latch error.
// On failure the session returns to StateReady so the user can retry.
func (s *ExamSession) Submit(ctx context.Context, trigger Trigger) ([]exam.Record, error) {
	s.mu.Lock()
	if err := s.beginSubmitLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	records := exam.Assemble(s.sections, s.ledger.Snapshot(), s.user.ID, s.examID, s.opts.Clock())
	firstSection := int64(0)
	if len(s.sections) > 0 {
		firstSection = s.sections[0].ID
	}
	s.mu.Unlock()

	s.logger.Info().Str("trigger", string(trigger)).Int("records", len(records)).Msg("submitting exam")
	s.emitState()

	err := s.backend.SubmitResults(ctx, records)
	s.opts.Metrics.Submission(string(KindExam), string(trigger), err)

	if !s.finishSubmit(err) {
		s.logger.Info().Err(err).Msg("submission result dropped after close")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
		}
		return records, ErrSessionClosed
	}

	if err != nil {
		s.logger.Error().Err(err).Str("trigger", string(trigger)).Msg("submit exam")
		s.toast(ToastError, MsgSubmitFailed)
		if trigger == TriggerTimer {
			s.toast(ToastInfo, MsgTimeUp)
		}
		s.emitState()
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	s.haltTimer()
	if err := s.audio.StopAndRelease(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("release audio after submit")
	}
	s.logger.Info().Str("trigger", string(trigger)).Msg("exam submitted")
	s.emit(Event{Type: EventSubmitted, Records: records})
	s.toast(ToastSuccess, MsgSubmitOK)
	s.navigate(Navigation{Route: RouteResults, ExamID: s.examID, SectionID: firstSection, UserID: s.user.ID})
	return records, nil
}

// PlayAudio plays, pauses or resumes the audio at uri.
func (s *ExamSession) PlayAudio(ctx context.Context, uri string) error {
	s.mu.Lock()
	live := !s.closed && (s.state == StateReady || s.state == StateSubmitting)
	s.mu.Unlock()
	if !live {
		return ErrNotReady
	}

	if err := s.audio.Play(ctx, uri); err != nil {
		s.logger.Warn().Err(err).Str("uri", uri).Msg("play audio")
		s.opts.Metrics.AudioFailed()
		s.toast(ToastError, MsgAudioFailed)
		return fmt.Errorf("%w: %w", ErrAudioFailed, err)
	}
	return nil
}

// AudioFailed handles a playback failure reported after loading succeeded.
func (s *ExamSession) AudioFailed(ctx context.Context, uri, reason string) {
	if !s.audio.Fail(ctx, uri, errors.New(reason)) {
		return
	}
	s.opts.Metrics.AudioFailed()
	s.toast(ToastError, MsgAudioFailed)
}

// Back handles the user leaving the exam screen. While the exam is live an
// unconfirmed request only prompts for confirmation.
func (s *ExamSession) Back(ctx context.Context, confirmed bool) {
	st := s.State()
	if !st.Terminal() && !confirmed {
		s.emit(Event{Type: EventConfirmExit, Confirm: &Confirm{Title: MsgConfirmExitTitle, Body: MsgConfirmExitBody}})
		return
	}

	s.haltTimer()
	if err := s.audio.StopAndRelease(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("release audio on exit")
	}
	s.terminate()
	s.logger.Info().Str("from", st.String()).Msg("exam exited")
	s.navigate(Navigation{Route: RouteBack})
}

// Close tears the session down when the client goes away. Results of calls
// still in flight are dropped. Safe to call repeatedly.
func (s *ExamSession) Close(ctx context.Context) {
	if !s.markClosed() {
		return
	}
	s.haltTimer()
	if err := s.audio.StopAndRelease(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("release audio on close")
	}
	s.opts.Metrics.SessionClosed(string(KindExam))
	s.logger.Debug().Msg("session closed")
}

// Snapshot reports progress.
func (s *ExamSession) Snapshot() Snapshot {
	s.mu.Lock()
	st := s.state
	questions := exam.CountQuestions(s.sections)
	s.mu.Unlock()
	return Snapshot{
		ID:        s.id,
		Kind:      KindExam,
		ExamID:    s.examID,
		State:     st.String(),
		Remaining: s.Remaining(),
		Playing:   s.audio.Playing(),
		Answered:  s.ledger.Len(),
		Questions: questions,
	}
}

// Tick advances a manually driven countdown by one second.
func (s *ExamSession) Tick() bool { return s.tick() }
