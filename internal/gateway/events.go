package gateway

import (
	"errors"

	"github.com/gokatarajesh/ielts-practice/internal/exam"
	"github.com/gokatarajesh/ielts-practice/internal/session"
	httperrors "github.com/gokatarajesh/ielts-practice/pkg/http/errors"
	"github.com/gokatarajesh/ielts-practice/pkg/http/ws"
)

// toMessage converts a session event into the message sent to the client.
func toMessage(ev session.Event, kind session.Kind, examID int64) (ws.Message, error) {
	switch ev.Type {
	case session.EventExamLoaded:
		payload := ws.ExamLoadedPayload{
			SessionID: ev.SessionID,
			Kind:      string(kind),
			ExamID:    examID,
			Sections:  sectionPayloads(ev.Sections),
			Remaining: ev.Remaining,
			Clock:     ev.Clock,
		}
		if ev.Prompt != nil {
			payload.Prompt = &ws.PromptPayload{PromptID: ev.Prompt.ID, Question: ev.Prompt.Question}
		}
		return ws.NewMessage(ws.TypeExamLoaded, payload, "")
	case session.EventTick:
		return ws.NewMessage(ws.TypeTick, ws.TickPayload{Remaining: ev.Remaining, Clock: ev.Clock}, "")
	case session.EventAnswerRecorded:
		return ws.NewMessage(ws.TypeAnswerRecorded, ws.AnswerRecordedPayload{QuestionID: ev.QuestionID, Answer: ev.Answer}, "")
	case session.EventSubmitted:
		answered, unmatched := tally(ev.Records)
		return ws.NewMessage(ws.TypeSubmitted, ws.SubmittedPayload{
			ExamID:    examID,
			Records:   len(ev.Records),
			Answered:  answered,
			Unmatched: unmatched,
		}, "")
	case session.EventToast:
		return ws.NewMessage(ws.TypeToast, ws.ToastPayload{Kind: string(ev.Toast.Kind), Text: ev.Toast.Text}, "")
	case session.EventNavigate:
		nav := ev.Navigation
		return ws.NewMessage(ws.TypeNavigate, ws.NavigatePayload{
			Route:     nav.Route,
			ExamID:    nav.ExamID,
			SectionID: nav.SectionID,
			UserID:    nav.UserID,
		}, "")
	case session.EventConfirmExit:
		return ws.NewMessage(ws.TypeConfirmExit, ws.ConfirmExitPayload{Title: ev.Confirm.Title, Body: ev.Confirm.Body}, "")
	case session.EventAudio:
		return ws.NewMessage(ws.TypeAudio, ws.AudioPayload{URI: ev.Audio.URI, Playing: ev.Audio.Playing}, "")
	case session.EventFeedback:
		return ws.NewMessage(ws.TypeFeedback, ws.FeedbackPayload{Feedback: ev.Feedback}, "")
	case session.EventState:
		return ws.NewMessage(ws.TypeState, ws.StatePayload{State: ev.State.String()}, "")
	default:
		return ws.Message{}, errors.New("unknown event type " + string(ev.Type))
	}
}

func sectionPayloads(sections []exam.Section) []ws.SectionPayload {
	if len(sections) == 0 {
		return nil
	}
	out := make([]ws.SectionPayload, 0, len(sections))
	for _, s := range sections {
		questions := make([]ws.QuestionPayload, 0, len(s.Questions))
		for _, q := range s.Questions {
			questions = append(questions, ws.QuestionPayload{
				QuestionID: q.ID,
				Text:       q.Text,
				Type:       string(q.Type),
				Label:      q.Type.Label(),
				Input:      string(q.Type.Input()),
				Choices:    q.Choices(),
			})
		}
		out = append(out, ws.SectionPayload{
			SectionID:  s.ID,
			Name:       s.Name,
			Mode:       string(s.Mode()),
			AudioURL:   s.AudioURL,
			Transcript: s.Transcript,
			Questions:  questions,
		})
	}
	return out
}

// tally counts answered records and answered choice records that matched no option.
func tally(records []exam.Record) (answered, unmatched int) {
	for _, r := range records {
		if r.AnswerText == "" {
			continue
		}
		answered++
		if r.Resolution == exam.ResolutionUnmatched {
			unmatched++
		}
	}
	return answered, unmatched
}

// errorCode maps a session error to the code reported to the client.
func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotReady):
		return httperrors.ErrCodeSessionNotReady
	case errors.Is(err, session.ErrAlreadyStarted):
		return httperrors.ErrCodeAlreadyStarted
	case errors.Is(err, session.ErrAlreadySubmitted):
		return httperrors.ErrCodeAlreadySubmitted
	case errors.Is(err, session.ErrSubmitInFlight):
		return httperrors.ErrCodeSubmitInFlight
	case errors.Is(err, session.ErrUnknownQuestion):
		return httperrors.ErrCodeUnknownQuestion
	case errors.Is(err, session.ErrSessionClosed):
		return httperrors.ErrCodeSessionClosed
	case errors.Is(err, session.ErrEmptyAnswer):
		return httperrors.ErrCodeEmptyAnswer
	case errors.Is(err, session.ErrLoadFailed):
		return httperrors.ErrCodeLoadFailed
	case errors.Is(err, session.ErrSubmitFailed):
		return httperrors.ErrCodeSubmitFailed
	case errors.Is(err, session.ErrAudioFailed):
		return httperrors.ErrCodeAudioFailed
	default:
		return httperrors.ErrCodeInternalError
	}
}
