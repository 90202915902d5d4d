package exam

import "time"

// Assemble builds one submission record per question, in section then question
// order. Unanswered questions are included with an empty answer and option id 0.
// The output depends only on its arguments.
func Assemble(sections []Section, answers AnswerSource, userID, examID int64, at time.Time) []Record {
	records := make([]Record, 0, CountQuestions(sections))
	for _, section := range sections {
		for _, q := range section.Questions {
			text := answers.Get(q.ID)
			optionID, resolution := Resolve(q, text)
			records = append(records, Record{
				UserID:         userID,
				ExamID:         examID,
				SectionID:      section.ID,
				QuestionID:     q.ID,
				AnswerOptionID: optionID,
				AnswerText:     text,
				IsSubmitted:    true,
				AnsweredAt:     at,
				Resolution:     resolution,
			})
		}
	}
	return records
}

// Resolve maps a raw answer to an option id using the question type's strategy.
// Zero means no option applies; the resolution tells the two zero cases apart.
func Resolve(q Question, text string) (int64, Resolution) {
	switch q.Type.Strategy() {
	case ResolveByText:
		if text == "" {
			return 0, ResolutionUnmatched
		}
		for _, opt := range q.Options {
			if opt.Text == text {
				return opt.ID, ResolutionMatched
			}
		}
		return 0, ResolutionUnmatched
	default:
		if len(q.Options) == 1 {
			return q.Options[0].ID, ResolutionAnchored
		}
		return 0, ResolutionNotApplicable
	}
}

// CountQuestions returns the total number of questions across sections.
func CountQuestions(sections []Section) int {
	n := 0
	for _, s := range sections {
		n += len(s.Questions)
	}
	return n
}

// FindQuestion looks a question up by id.
func FindQuestion(sections []Section, questionID int64) (Question, bool) {
	for _, s := range sections {
		for _, q := range s.Questions {
			if q.ID == questionID {
				return q, true
			}
		}
	}
	return Question{}, false
}

// FirstAudioSection returns the first section with playable audio.
func FirstAudioSection(sections []Section) (Section, bool) {
	for _, s := range sections {
		if s.HasAudio() {
			return s, true
		}
	}
	return Section{}, false
}
