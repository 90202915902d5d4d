package exam

import (
	"strings"
	"time"
)

// SectionMode tells the client how a section is presented.
type SectionMode string

const (
	SectionAudio   SectionMode = "audio"
	SectionReading SectionMode = "reading"
	SectionPlain   SectionMode = "plain"
)

// Section is a scored subdivision of an exam (one listening or reading passage).
type Section struct {
	ID         int64      `json:"sectionId"`
	ExamID     int64      `json:"examId"`
	Name       string     `json:"name"`
	AudioURL   string     `json:"audioUrl"`
	Transcript string     `json:"transcript"`
	SortOrder  int        `json:"sortOrder"`
	Questions  []Question `json:"questions"`
}

// HasAudio reports whether the section carries a playable audio URI.
func (s Section) HasAudio() bool {
	return strings.TrimSpace(s.AudioURL) != ""
}

// HasTranscript reports whether the section carries static reading text.
func (s Section) HasTranscript() bool {
	return strings.TrimSpace(s.Transcript) != ""
}

// Mode picks the presentation: audio drives playback and wins over the transcript.
func (s Section) Mode() SectionMode {
	switch {
	case s.HasAudio():
		return SectionAudio
	case s.HasTranscript():
		return SectionReading
	default:
		return SectionPlain
	}
}

// Question is a single prompt within a section.
type Question struct {
	ID        int64        `json:"questionId"`
	SectionID int64        `json:"sectionId"`
	Text      string       `json:"questionText"`
	Type      QuestionType `json:"type"`
	SortOrder int          `json:"sortOrder"`
	// CorrectAnswer is only populated by the backend's review endpoints.
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Options       []Option `json:"options"`
}

// Choices returns the labels a user can pick from for choice-style questions.
// Fixed-label types (yes/no, true/false) ignore the option list.
func (q Question) Choices() []string {
	if fixed := q.Type.FixedChoices(); len(fixed) > 0 {
		return fixed
	}
	if q.Type.Input() != InputChoice {
		return nil
	}
	labels := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		labels = append(labels, opt.Text)
	}
	return labels
}

// Option is a selectable answer. IsCorrect is only meaningful to the backend.
type Option struct {
	ID         int64  `json:"optionId"`
	QuestionID int64  `json:"questionId"`
	Text       string `json:"optionText"`
	IsCorrect  bool   `json:"isCorrect"`
	SortOrder  int    `json:"sortOrder"`
}

// Resolution records how a submission record got its option id.
type Resolution string

const (
	// ResolutionMatched means the answer text matched an option.
	ResolutionMatched Resolution = "matched"
	// ResolutionUnmatched means a choice question was answered (or left empty) without a match.
	ResolutionUnmatched Resolution = "unmatched"
	// ResolutionAnchored means a completion question used its single scoring option.
	ResolutionAnchored Resolution = "anchored"
	// ResolutionNotApplicable means the question type has no option concept here.
	ResolutionNotApplicable Resolution = "not_applicable"
)

// Record is the per-question payload sent to the backend at submit time.
type Record struct {
	UserID         int64      `json:"userId"`
	ExamID         int64      `json:"examId"`
	SectionID      int64      `json:"sectionId"`
	QuestionID     int64      `json:"questionId"`
	AnswerOptionID int64      `json:"answerOptionId"`
	AnswerText     string     `json:"answerText"`
	AnswerJSON     any        `json:"answerJson"`
	IsSubmitted    bool       `json:"isSubmitted"`
	AnsweredAt     time.Time  `json:"answeredAt"`
	Resolution     Resolution `json:"-"`
}

// TypeStat is the per-question-type breakdown of a scored section.
type TypeStat struct {
	Type      QuestionType `json:"type"`
	Total     int          `json:"total"`
	Correct   int          `json:"correct"`
	Incorrect int          `json:"incorrect"`
}

// Score is the backend's scoring summary for one section attempt.
type Score struct {
	SectionID        int64      `json:"sectionId"`
	TotalQuestions   int        `json:"totalQuestions"`
	CorrectAnswers   int        `json:"correctAnswers"`
	IncorrectAnswers int        `json:"incorrectAnswers"`
	PercentCorrect   float64    `json:"percentCorrect"`
	TypeStats        []TypeStat `json:"typeStats"`
}

// WritingPrompt is a writing task returned for a writing exam.
type WritingPrompt struct {
	ID       int64  `json:"id"`
	ExamID   int64  `json:"examId"`
	Question string `json:"question"`
}

// WritingSubmission is the body sent to the writing scorer.
type WritingSubmission struct {
	UserID   int64  `json:"userId"`
	ExamID   int64  `json:"examId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AnswerDetail is the backend's verdict on one submitted answer.
type AnswerDetail struct {
	UserAnswerID    int64  `json:"userAnswerId"`
	UserAnswer      string `json:"userAnswer"`
	IsCorrect       bool   `json:"isCorrect"`
	CorrectOptionID int64  `json:"correctOptionId"`
	CorrectAnswer   string `json:"correctAnswer"`
}

// AnswerReview is the per-section answer review shown after scoring.
type AnswerReview struct {
	Transcript      string         `json:"transcript"`
	DetailedResults []AnswerDetail `json:"detailedResults"`
}
