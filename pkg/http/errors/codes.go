package errors

// Error codes shared by HTTP error responses and WebSocket error payloads
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Request errors
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeMissingField       = "missing_field"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Exam session errors
	ErrCodeSessionNotReady  = "session_not_ready"
	ErrCodeAlreadyStarted   = "already_started"
	ErrCodeAlreadySubmitted = "already_submitted"
	ErrCodeSubmitInFlight   = "submit_in_flight"
	ErrCodeEmptyAnswer      = "empty_answer"
	ErrCodeUnknownQuestion  = "unknown_question"
	ErrCodeSessionClosed    = "session_closed"
	ErrCodeLoadFailed       = "load_failed"
	ErrCodeSubmitFailed     = "submit_failed"
	ErrCodeAudioFailed      = "audio_failed"
	ErrCodeScoreFetchFailed = "score_fetch_failed"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
