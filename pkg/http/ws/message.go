package ws

import "encoding/json"

// MessageType constants for the exam session protocol.
const (
	// Client -> Server
	TypeSetAnswer     = "set_answer"
	TypeSubmit        = "submit"
	TypePlayAudio     = "play_audio"
	TypeAudioFinished = "audio_finished"
	TypeAudioFailed   = "audio_failed"
	TypeBack          = "back"
	TypeProgress      = "progress"

	// Server -> Client
	TypeExamLoaded     = "exam_loaded"
	TypeTick           = "tick"
	TypeAnswerRecorded = "answer_recorded"
	TypeSubmitted      = "submitted"
	TypeToast          = "toast"
	TypeNavigate       = "navigate"
	TypeConfirmExit    = "confirm_exit"
	TypeAudio          = "audio"
	TypeAudioCommand   = "audio_command"
	TypeFeedback       = "feedback"
	TypeState          = "state"
	TypeError          = "error"
	TypePing           = "ping"
	TypePong           = "pong"
)

// Audio commands carried by AudioCommandPayload.
const (
	AudioLoad   = "load"
	AudioPause  = "pause"
	AudioResume = "resume"
	AudioStop   = "stop"
	AudioUnload = "unload"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a message of type msgType.
func NewMessage(msgType string, payload any, requestID string) (Message, error) {
	msg := Message{Type: msgType, RequestID: requestID}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = raw
	return msg, nil
}

// Client Messages (incoming)

type SetAnswerPayload struct {
	QuestionID int64  `json:"question_id,omitempty"` // omitted for writing tasks
	Answer     string `json:"answer"`
}

type PlayAudioPayload struct {
	URI string `json:"uri"`
}

type AudioFinishedPayload struct {
	TrackID string `json:"track_id"`
}

type AudioFailedPayload struct {
	TrackID string `json:"track_id"`
	Reason  string `json:"reason"`
}

type BackPayload struct {
	Confirmed bool `json:"confirmed"`
}

// Server Messages (outgoing)

type ExamLoadedPayload struct {
	SessionID string           `json:"session_id"`
	Kind      string           `json:"kind"`
	ExamID    int64            `json:"exam_id"`
	Sections  []SectionPayload `json:"sections,omitempty"`
	Prompt    *PromptPayload   `json:"prompt,omitempty"`
	Remaining int              `json:"remaining_seconds"`
	Clock     string           `json:"clock"`
}

type SectionPayload struct {
	SectionID  int64             `json:"section_id"`
	Name       string            `json:"name"`
	Mode       string            `json:"mode"`
	AudioURL   string            `json:"audio_url,omitempty"`
	Transcript string            `json:"transcript,omitempty"`
	Questions  []QuestionPayload `json:"questions"`
}

type QuestionPayload struct {
	QuestionID int64    `json:"question_id"`
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Label      string   `json:"label"`
	Input      string   `json:"input"`
	Choices    []string `json:"choices,omitempty"`
}

type PromptPayload struct {
	PromptID int64  `json:"prompt_id"`
	Question string `json:"question"`
}

type TickPayload struct {
	Remaining int    `json:"remaining_seconds"`
	Clock     string `json:"clock"`
}

type AnswerRecordedPayload struct {
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
}

type SubmittedPayload struct {
	ExamID    int64 `json:"exam_id"`
	Records   int   `json:"records"`
	Answered  int   `json:"answered"`
	Unmatched int   `json:"unmatched"`
}

type ToastPayload struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type NavigatePayload struct {
	Route     string `json:"route"`
	ExamID    int64  `json:"exam_id,omitempty"`
	SectionID int64  `json:"section_id,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
}

type ConfirmExitPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type AudioPayload struct {
	URI     string `json:"uri"`
	Playing bool   `json:"playing"`
}

type AudioCommandPayload struct {
	TrackID string `json:"track_id"`
	Action  string `json:"action"`
	URI     string `json:"uri,omitempty"`
}

type FeedbackPayload struct {
	Feedback string `json:"feedback"`
}

type StatePayload struct {
	State string `json:"state"`
}

type ProgressPayload struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	ExamID    int64  `json:"exam_id"`
	State     string `json:"state"`
	Remaining int    `json:"remaining_seconds"`
	Playing   string `json:"playing,omitempty"`
	Answered  int    `json:"answered"`
	Questions int    `json:"questions"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
