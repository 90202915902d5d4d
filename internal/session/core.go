package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/ielts-practice/internal/metrics"
)

// Kind distinguishes listening/reading exams from writing tasks.
type Kind string

const (
	KindExam    Kind = "exam"
	KindWriting Kind = "writing"
)

// State is a session's lifecycle position.
type State int

const (
	StateInit State = iota
	StateReady
	StateLoadFailed
	StateSubmitting
	StateSubmitted
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReady:
		return "ready"
	case StateLoadFailed:
		return "load_failed"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateLoadFailed || s == StateSubmitted || s == StateTerminated
}

// Trigger records what initiated a submission.
type Trigger string

const (
	TriggerUser  Trigger = "user"
	TriggerTimer Trigger = "timer"
)

var (
	ErrAlreadyStarted   = errors.New("session already started")
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrSubmitInFlight   = errors.New("submission in flight")
	ErrNotReady         = errors.New("session not ready")
	ErrEmptyAnswer      = errors.New("answer is empty")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrSessionClosed    = errors.New("session closed")
	ErrLoadFailed       = errors.New("load failed")
	ErrSubmitFailed     = errors.New("submission failed")
	ErrAudioFailed      = errors.New("audio playback failed")
)

// User is the authenticated identity a session acts for.
type User struct {
	ID    int64
	Token string
}

// Options tunes a session. Zero values pick defaults.
type Options struct {
	// Duration overrides the exam length.
	Duration time.Duration
	// TickInterval is the countdown period. Negative disables the ticker so
	// the countdown is only advanced by explicit Tick calls.
	TickInterval time.Duration
	// AutoPlay starts the first section's audio once the exam is ready.
	AutoPlay bool
	// SubmitTimeout bounds timer-triggered submissions.
	SubmitTimeout time.Duration
	Clock         func() time.Time
	Metrics       *metrics.Collector
}

func (o Options) withDefaults(duration time.Duration) Options {
	if o.Duration <= 0 {
		o.Duration = duration
	}
	if o.TickInterval == 0 {
		o.TickInterval = time.Second
	}
	if o.SubmitTimeout <= 0 {
		o.SubmitTimeout = 15 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// core is the lifecycle shared by exam and writing sessions: the state value,
// the countdown and event delivery.
type core struct {
	id       string
	kind     Kind
	examID   int64
	user     User
	opts     Options
	listener Listener
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	closed    bool
	countdown *Countdown
	stopTimer context.CancelFunc
}

func newCore(kind Kind, examID int64, user User, listener Listener, opts Options, logger zerolog.Logger) core {
	id := uuid.NewString()
	if listener == nil {
		listener = func(Event) {}
	}
	return core{
		id:       id,
		kind:     kind,
		examID:   examID,
		user:     user,
		opts:     opts,
		listener: listener,
		logger: logger.With().
			Str("component", "session").
			Str("session_id", id).
			Str("kind", string(kind)).
			Int64("exam_id", examID).
			Int64("user_id", user.ID).
			Logger(),
	}
}

// ID returns the session identifier.
func (c *core) ID() string { return c.id }

// ExamID returns the exam this session belongs to.
func (c *core) ExamID() int64 { return c.examID }

// Kind returns the session kind.
func (c *core) Kind() Kind { return c.kind }

// State returns the current lifecycle state.
func (c *core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining returns the seconds left on the countdown, or the full duration
// before it is armed.
func (c *core) Remaining() int {
	c.mu.Lock()
	cd := c.countdown
	c.mu.Unlock()
	if cd == nil {
		return int(c.opts.Duration / time.Second)
	}
	return cd.Remaining()
}

func (c *core) emit(ev Event) {
	c.mu.Lock()
	closed := c.closed
	ev.State = c.state
	c.mu.Unlock()
	if closed {
		return
	}
	ev.SessionID = c.id
	c.listener(ev)
}

func (c *core) emitState() {
	c.emit(Event{Type: EventState})
}

func (c *core) toast(kind ToastKind, text string) {
	c.emit(Event{Type: EventToast, Toast: &Toast{Kind: kind, Text: text}})
}

func (c *core) navigate(nav Navigation) {
	c.emit(Event{Type: EventNavigate, Navigation: &nav})
}

// armTimerLocked creates the countdown and starts its ticker. Callers hold mu.
func (c *core) armTimerLocked(onExpire func()) {
	c.countdown = NewCountdown(c.opts.Duration, func(remaining int) {
		c.emit(Event{Type: EventTick, Remaining: remaining, Clock: FormatRemaining(remaining)})
	}, func() {
		c.logger.Info().Msg("countdown expired")
		c.opts.Metrics.TimerExpired(string(c.kind))
		onExpire()
	})
	if c.opts.TickInterval < 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopTimer = cancel
	go c.countdown.Run(ctx, c.opts.TickInterval)
}

func (c *core) haltTimer() {
	c.mu.Lock()
	cd, stop := c.countdown, c.stopTimer
	c.stopTimer = nil
	c.mu.Unlock()
	if cd != nil {
		cd.Halt()
	}
	if stop != nil {
		stop()
	}
}

// tick advances the countdown by one second. Used when the ticker is disabled.
func (c *core) tick() bool {
	c.mu.Lock()
	cd := c.countdown
	c.mu.Unlock()
	if cd == nil {
		return false
	}
	return cd.Tick()
}

// beginSubmitLocked applies the submitted latch. Callers hold mu.
func (c *core) beginSubmitLocked() error {
	if c.closed {
		return ErrSessionClosed
	}
	switch c.state {
	case StateReady:
		c.state = StateSubmitting
		return nil
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotReady
	}
}

// finishSubmit records the outcome of a backend submission. It reports false
// when the session was closed or terminated in the meantime.
func (c *core) finishSubmit(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateSubmitting {
		return false
	}
	if err != nil {
		c.state = StateReady
	} else {
		c.state = StateSubmitted
	}
	return true
}

// expireSubmit runs a timer-triggered submission with its own deadline.
func (c *core) expireSubmit(submit func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.SubmitTimeout)
	defer cancel()
	if err := submit(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("timer submission did not complete")
	}
}

// terminate moves a live session to StateTerminated. Submitted sessions keep
// their state.
func (c *core) terminate() {
	c.mu.Lock()
	if !c.state.Terminal() {
		c.state = StateTerminated
	}
	c.mu.Unlock()
}

// markClosed flags the session closed. It reports false if it already was.
func (c *core) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	return true
}
