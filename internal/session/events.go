package session

import "github.com/gokatarajesh/ielts-practice/internal/exam"

// EventType names an event emitted to the client.
type EventType string

const (
	EventExamLoaded     EventType = "exam_loaded"
	EventTick           EventType = "tick"
	EventAnswerRecorded EventType = "answer_recorded"
	EventSubmitted      EventType = "submitted"
	EventToast          EventType = "toast"
	EventNavigate       EventType = "navigate"
	EventConfirmExit    EventType = "confirm_exit"
	EventAudio          EventType = "audio"
	EventFeedback       EventType = "feedback"
	EventState          EventType = "state"
)

// ToastKind is the severity of a transient notice.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

// User-facing notices.
const (
	MsgLoadFailed       = "Failed to load exam data."
	MsgSubmitOK         = "Submit Successfully!"
	MsgSubmitFailed     = "Submit Failed!"
	MsgAudioFailed      = "Unable to play audio."
	MsgNoQuestion       = "No question found."
	MsgQuestionError    = "Error loading question."
	MsgEmptyAnswer      = "Please fill in your answer."
	MsgScoreFailed      = "Failed to get score."
	MsgNoFeedback       = "No feedback received."
	MsgTimeUp           = "Time is up. Submit again to save your answers."
	MsgConfirmExitTitle = "Exit exam?"
	MsgConfirmExitBody  = "Your answers will not be submitted."
)

// Navigation targets.
const (
	RouteResults = "results"
	RouteBack    = "back"
)

// Toast is a transient notice.
type Toast struct {
	Kind ToastKind `json:"kind"`
	Text string    `json:"text"`
}

// Navigation asks the client to leave the exam screen.
type Navigation struct {
	Route     string `json:"route"`
	ExamID    int64  `json:"examId,omitempty"`
	SectionID int64  `json:"sectionId,omitempty"`
	UserID    int64  `json:"userId,omitempty"`
}

// Confirm is an exit confirmation prompt.
type Confirm struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// AudioState reports the audio manager's state.
type AudioState struct {
	URI     string `json:"uri"`
	Playing bool   `json:"playing"`
}

// Event is emitted by a session. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType
	SessionID string
	State     State

	Remaining int
	Clock     string

	QuestionID int64
	Answer     string

	Sections []exam.Section
	Prompt   *exam.WritingPrompt
	Records  []exam.Record
	Feedback string

	Toast      *Toast
	Navigation *Navigation
	Confirm    *Confirm
	Audio      *AudioState
}

// Listener receives session events. It may be called from the timer goroutine
// as well as the caller's, so it must be safe for concurrent use.
type Listener func(Event)
