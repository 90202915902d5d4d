package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/ielts-practice/internal/auth"
	"github.com/gokatarajesh/ielts-practice/internal/backend"
	"github.com/gokatarajesh/ielts-practice/internal/session"
	httperrors "github.com/gokatarajesh/ielts-practice/pkg/http/errors"
	"github.com/gokatarajesh/ielts-practice/pkg/http/ws"
)

// controller is the part of a session the message loop drives. It hides the
// differences between exam and writing sessions.
type controller interface {
	ID() string
	Start(ctx context.Context) error
	setAnswer(p ws.SetAnswerPayload) error
	submit(ctx context.Context) error
	playAudio(ctx context.Context, uri string) error
	audioFailed(ctx context.Context, uri, reason string)
	Back(ctx context.Context, confirmed bool)
	Snapshot() session.Snapshot
	Close(ctx context.Context)
}

type examController struct{ *session.ExamSession }

func (c examController) setAnswer(p ws.SetAnswerPayload) error {
	return c.SetAnswer(p.QuestionID, p.Answer)
}

func (c examController) submit(ctx context.Context) error {
	_, err := c.Submit(ctx, session.TriggerUser)
	return err
}

func (c examController) playAudio(ctx context.Context, uri string) error {
	return c.PlayAudio(ctx, uri)
}

func (c examController) audioFailed(ctx context.Context, uri, reason string) {
	c.AudioFailed(ctx, uri, reason)
}

type writingController struct{ *session.WritingSession }

func (c writingController) setAnswer(p ws.SetAnswerPayload) error {
	return c.SetAnswer(p.Answer)
}

func (c writingController) submit(ctx context.Context) error {
	_, err := c.Submit(ctx, session.TriggerUser)
	return err
}

func (writingController) playAudio(context.Context, string) error { return session.ErrNotReady }

func (writingController) audioFailed(context.Context, string, string) {}

// Handler serves exam sessions over WebSocket.
type Handler struct {
	client   *backend.Client
	cache    backend.StructureCache
	hub      *ws.Hub
	upgrader *websocket.Upgrader
	opts     Options
	logger   zerolog.Logger
}

// Options carries the per-session settings the handler applies.
type Options struct {
	Session session.Options
	// WritingDuration overrides the writing task length.
	WritingDuration time.Duration
	Loader          backend.LoaderOptions
}

// NewHandler creates the exam session handler. cache may be nil.
func NewHandler(client *backend.Client, cache backend.StructureCache, hub *ws.Hub, upgrader *websocket.Upgrader, opts Options, logger zerolog.Logger) *Handler {
	return &Handler{
		client:   client,
		cache:    cache,
		hub:      hub,
		upgrader: upgrader,
		opts:     opts,
		logger:   logger.With().Str("component", "gateway").Logger(),
	}
}

// HandleWebSocket serves GET /ws/exams/{examId}?kind=exam|writing. It must run
// behind auth.Middleware.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	examID, err := strconv.ParseInt(r.PathValue("examId"), 10, 64)
	if err != nil || examID <= 0 {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid exam id")
		return
	}

	kind := session.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = session.KindExam
	}
	if kind != session.KindExam && kind != session.KindWriting {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, fmt.Sprintf("Unknown session kind: %s", kind))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, principal, examID, kind)
}

// HandleConnection runs one session for the lifetime of the connection.
func (h *Handler) HandleConnection(conn *websocket.Conn, principal auth.Principal, examID int64, kind session.Kind) {
	wsConn := ws.NewConnection(conn, h.logger)
	ctrl, player := h.newSession(wsConn, principal, examID, kind)
	logger := h.logger.With().Str("session_id", ctrl.ID()).Logger()

	h.hub.Register(ctrl.ID(), wsConn)

	// Start write pump
	go wsConn.WritePump()

	go func() {
		err := ctrl.Start(context.Background())
		switch {
		case err == nil:
		case errors.Is(err, session.ErrSessionClosed):
			logger.Debug().Msg("session left before the exam loaded")
		default:
			logger.Warn().Err(err).Msg("session start failed")
			if err := h.reply(wsConn, "", err); err != nil {
				logger.Debug().Err(err).Msg("start error not delivered")
			}
		}
	}()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), wsConn, ctrl, player, msg)
	})

	// Cleanup on disconnect
	ctrl.Close(context.Background())
	h.hub.Unregister(ctrl.ID())
}

func (h *Handler) newSession(out sender, principal auth.Principal, examID int64, kind session.Kind) (controller, *remotePlayer) {
	user := session.User{ID: principal.UserID, Token: principal.Token}
	api := h.client.ForUser(principal.Token, h.cache, h.opts.Loader, h.logger)

	var listener session.Listener = func(ev session.Event) {
		msg, err := toMessage(ev, kind, examID)
		if err != nil {
			h.logger.Error().Err(err).Str("event", string(ev.Type)).Msg("encode event")
			return
		}
		if err := out.Send(msg); err != nil {
			h.logger.Debug().Err(err).Str("event", string(ev.Type)).Msg("event not delivered")
		}
	}

	if kind == session.KindWriting {
		opts := h.opts.Session
		opts.Duration = h.opts.WritingDuration
		s := session.NewWritingSession(examID, user, api, listener, opts, h.logger)
		return writingController{s}, nil
	}
	player := newRemotePlayer(out)
	s := session.NewExamSession(examID, user, api, player, listener, h.opts.Session, h.logger)
	return examController{s}, player
}

// handleMessage routes incoming WebSocket messages.
func (h *Handler) handleMessage(ctx context.Context, out sender, ctrl controller, player *remotePlayer, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeSetAnswer:
		var req ws.SetAnswerPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return h.sendError(out, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid set_answer payload")
		}
		return h.reply(out, msg.RequestID, ctrl.setAnswer(req))
	case ws.TypeSubmit:
		// The read loop keeps serving back and progress while the backend call runs.
		go func() {
			if err := h.reply(out, msg.RequestID, ctrl.submit(ctx)); err != nil {
				h.logger.Debug().Err(err).Str("session_id", ctrl.ID()).Msg("submit reply not delivered")
			}
		}()
		return nil
	case ws.TypePlayAudio:
		var req ws.PlayAudioPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return h.sendError(out, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid play_audio payload")
		}
		if req.URI == "" {
			return h.sendError(out, msg.RequestID, httperrors.ErrCodeMissingField, "uri is required")
		}
		return h.reply(out, msg.RequestID, ctrl.playAudio(ctx, req.URI))
	case ws.TypeAudioFinished:
		var req ws.AudioFinishedPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return h.sendError(out, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid audio_finished payload")
		}
		if req.TrackID == "" {
			return h.sendError(out, msg.RequestID, httperrors.ErrCodeMissingField, "track_id is required")
		}
		if player != nil {
			player.finished(req.TrackID)
		}
		return nil
	case ws.TypeAudioFailed:
		var req ws.AudioFailedPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return h.sendError(out, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid audio_failed payload")
		}
		if req.TrackID == "" {
			return h.sendError(out, msg.RequestID, httperrors.ErrCodeMissingField, "track_id is required")
		}
		if player == nil {
			return nil
		}
		if uri, ok := player.lookup(req.TrackID); ok {
			ctrl.audioFailed(ctx, uri, req.Reason)
		}
		return nil
	case ws.TypeBack:
		var req ws.BackPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return h.sendError(out, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid back payload")
			}
		}
		ctrl.Back(ctx, req.Confirmed)
		return nil
	case ws.TypeProgress:
		snap := ctrl.Snapshot()
		reply, err := ws.NewMessage(ws.TypeProgress, ws.ProgressPayload{
			SessionID: snap.ID,
			Kind:      string(snap.Kind),
			ExamID:    snap.ExamID,
			State:     snap.State,
			Remaining: snap.Remaining,
			Playing:   snap.Playing,
			Answered:  snap.Answered,
			Questions: snap.Questions,
		}, msg.RequestID)
		if err != nil {
			return err
		}
		return out.Send(reply)
	case ws.TypePing:
		return out.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})
	default:
		return h.sendError(out, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

// reply reports a failed intent to the client, tagged with the request it
// answers. Backend failures also reach the user as a toast.
func (h *Handler) reply(out sender, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return h.sendError(out, requestID, errorCode(err), err.Error())
}

func (h *Handler) sendError(out sender, requestID, code, message string) error {
	msg, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message}, requestID)
	if err != nil {
		return err
	}
	return out.Send(msg)
}
