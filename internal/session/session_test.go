package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/ielts-practice/internal/exam"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestExam(t *testing.T, b *stubBackend, opts Options) (*ExamSession, *fakePlayer, *eventLog) {
	t.Helper()
	p := newFakePlayer()
	events := &eventLog{}
	opts.TickInterval = -1
	opts.Clock = func() time.Time { return fixedNow }
	s := NewExamSession(77, User{ID: 5, Token: "tok"}, b, p, events.listen, opts, zerolog.Nop())
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, p, events
}

func startedExam(t *testing.T, opts Options) (*ExamSession, *stubBackend, *fakePlayer, *eventLog) {
	t.Helper()
	b := &stubBackend{sections: sampleSections()}
	s, p, events := newTestExam(t, b, opts)
	require.NoError(t, s.Start(context.Background()))
	return s, b, p, events
}

func TestStartLoadsExam(t *testing.T) {
	s, _, p, events := startedExam(t, Options{})

	assert.Equal(t, StateReady, s.State())
	loaded := events.ofType(EventExamLoaded)
	require.Len(t, loaded, 1)
	assert.Len(t, loaded[0].Sections, 2)
	assert.Equal(t, 1200, loaded[0].Remaining)
	assert.Equal(t, "20:00", loaded[0].Clock)
	assert.NotEmpty(t, loaded[0].SessionID)
	assert.Empty(t, p.log())
}

func TestStartAutoPlaysFirstAudioSection(t *testing.T) {
	_, _, p, events := startedExam(t, Options{AutoPlay: true})

	assert.Equal(t, []string{"load:https://cdn.example/part1.mp3"}, p.log())
	audio := events.ofType(EventAudio)
	require.NotEmpty(t, audio)
	assert.True(t, audio[len(audio)-1].Audio.Playing)
}

func TestStartFailureIsTerminal(t *testing.T) {
	b := &stubBackend{loadErr: errBackend}
	s, _, events := newTestExam(t, b, Options{})

	err := s.Start(context.Background())
	require.ErrorIs(t, err, errBackend)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, StateLoadFailed, s.State())
	assert.Equal(t, []Toast{{Kind: ToastError, Text: MsgLoadFailed}}, events.toasts())

	_, err = s.Submit(context.Background(), TriggerUser)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 0, b.submitCount())
}

func TestSetAnswerRecordsAndEmits(t *testing.T) {
	s, _, _, events := startedExam(t, Options{})

	require.NoError(t, s.SetAnswer(11, "A"))
	require.NoError(t, s.SetAnswer(11, "B"))
	assert.Equal(t, "B", s.Answer(11))

	recorded := events.ofType(EventAnswerRecorded)
	require.Len(t, recorded, 2)
	assert.Equal(t, int64(11), recorded[1].QuestionID)
	assert.Equal(t, "B", recorded[1].Answer)

	assert.ErrorIs(t, s.SetAnswer(999, "x"), ErrUnknownQuestion)
}

func TestSetAnswerBeforeReady(t *testing.T) {
	s, _, _ := newTestExam(t, &stubBackend{}, Options{})
	assert.ErrorIs(t, s.SetAnswer(11, "A"), ErrNotReady)
}

func TestSubmitSendsAssembledRecords(t *testing.T) {
	s, b, _, events := startedExam(t, Options{})
	require.NoError(t, s.SetAnswer(11, "B"))
	require.NoError(t, s.SetAnswer(21, "Not Given"))

	records, err := s.Submit(context.Background(), TriggerUser)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(112), records[0].AnswerOptionID)
	assert.Equal(t, int64(121), records[1].AnswerOptionID)
	assert.Equal(t, int64(213), records[2].AnswerOptionID)
	assert.Equal(t, fixedNow, records[0].AnsweredAt)
	assert.Equal(t, records, b.lastBatch)

	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, []Toast{{Kind: ToastSuccess, Text: MsgSubmitOK}}, events.toasts())

	nav := events.ofType(EventNavigate)
	require.Len(t, nav, 1)
	assert.Equal(t, Navigation{Route: RouteResults, ExamID: 77, SectionID: 1, UserID: 5}, *nav[0].Navigation)
	require.Len(t, events.ofType(EventSubmitted), 1)
}

func TestSubmitLatchAllowsOneBackendWrite(t *testing.T) {
	s, b, _, _ := startedExam(t, Options{})
	ctx := context.Background()

	_, err := s.Submit(ctx, TriggerUser)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := s.Submit(ctx, TriggerUser)
		assert.ErrorIs(t, err, ErrAlreadySubmitted)
	}
	assert.False(t, s.Tick())
	assert.Equal(t, 1, b.submitCount())
}

func TestSubmitConcurrentTriggers(t *testing.T) {
	s, b, _, _ := startedExam(t, Options{})
	b.gate = make(chan struct{})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, trig := range []Trigger{TriggerUser, TriggerTimer} {
		wg.Add(1)
		go func(trig Trigger) {
			defer wg.Done()
			_, err := s.Submit(context.Background(), trig)
			errs <- err
		}(trig)
	}

	require.Eventually(t, func() bool { return b.submitCount() == 1 }, time.Second, time.Millisecond)
	// The loser returns while the winner is still waiting on the backend.
	loser := <-errs
	assert.ErrorIs(t, loser, ErrSubmitInFlight)
	close(b.gate)
	wg.Wait()
	close(errs)

	assert.NoError(t, <-errs)
	assert.Equal(t, 1, b.submitCount())
	assert.Equal(t, StateSubmitted, s.State())
}

func TestSubmitFailureReturnsToReady(t *testing.T) {
	s, b, _, events := startedExam(t, Options{})
	b.setSubmitErr(errBackend)

	_, err := s.Submit(context.Background(), TriggerUser)
	require.ErrorIs(t, err, errBackend)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, []Toast{{Kind: ToastError, Text: MsgSubmitFailed}}, events.toasts())
	assert.True(t, s.Tick(), "timer keeps running after a failed submit")

	b.setSubmitErr(nil)
	_, err = s.Submit(context.Background(), TriggerUser)
	require.NoError(t, err)
	assert.Equal(t, 2, b.submitCount())
}

func TestTimerExpirySubmitsOnce(t *testing.T) {
	s, b, _, events := startedExam(t, Options{Duration: 3 * time.Second})

	assert.True(t, s.Tick())
	assert.True(t, s.Tick())
	assert.False(t, s.Tick())
	assert.False(t, s.Tick())

	assert.Equal(t, 1, b.submitCount())
	assert.Equal(t, StateSubmitted, s.State())
	ticks := events.ofType(EventTick)
	require.Len(t, ticks, 3)
	assert.Equal(t, 0, ticks[2].Remaining)
	assert.Equal(t, "00:00", ticks[2].Clock)
}

func TestSubmitReleasesAudio(t *testing.T) {
	s, _, p, _ := startedExam(t, Options{AutoPlay: true})

	_, err := s.Submit(context.Background(), TriggerUser)
	require.NoError(t, err)
	url := "https://cdn.example/part1.mp3"
	assert.Equal(t, []string{"load:" + url, "stop:" + url, "unload:" + url}, p.log())
	assert.ErrorIs(t, s.PlayAudio(context.Background(), url), ErrNotReady)
}

func TestPlayAudioFailureToasts(t *testing.T) {
	s, _, p, events := startedExam(t, Options{})
	p.loadErr["bad.mp3"] = errBackend

	err := s.PlayAudio(context.Background(), "bad.mp3")
	assert.ErrorIs(t, err, ErrAudioFailed)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, []Toast{{Kind: ToastError, Text: MsgAudioFailed}}, events.toasts())
	assert.Equal(t, "", s.Snapshot().Playing)
}

func TestAudioFailedFromPlayer(t *testing.T) {
	s, _, _, events := startedExam(t, Options{AutoPlay: true})
	url := "https://cdn.example/part1.mp3"

	s.AudioFailed(context.Background(), "stale.mp3", "decode")
	assert.Empty(t, events.toasts())

	s.AudioFailed(context.Background(), url, "decode")
	assert.Equal(t, []Toast{{Kind: ToastError, Text: MsgAudioFailed}}, events.toasts())
	assert.Equal(t, "", s.Snapshot().Playing)
}

func TestBackRequiresConfirmationWhileLive(t *testing.T) {
	s, _, p, events := startedExam(t, Options{AutoPlay: true})
	ctx := context.Background()

	s.Back(ctx, false)
	assert.Len(t, events.ofType(EventConfirmExit), 1)
	assert.Equal(t, StateReady, s.State())
	assert.Empty(t, events.ofType(EventNavigate))

	s.Back(ctx, true)
	assert.Equal(t, StateTerminated, s.State())
	nav := events.ofType(EventNavigate)
	require.Len(t, nav, 1)
	assert.Equal(t, RouteBack, nav[0].Navigation.Route)
	assert.Contains(t, p.log(), "unload:https://cdn.example/part1.mp3")
	assert.False(t, s.Tick())

	_, err := s.Submit(ctx, TriggerTimer)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestBackAfterSubmitSkipsConfirmation(t *testing.T) {
	s, _, _, events := startedExam(t, Options{})
	_, err := s.Submit(context.Background(), TriggerUser)
	require.NoError(t, err)

	s.Back(context.Background(), false)
	assert.Empty(t, events.ofType(EventConfirmExit))
	assert.Equal(t, StateSubmitted, s.State())
	assert.Len(t, events.ofType(EventNavigate), 2)
}

func TestCloseDropsLateSubmitResult(t *testing.T) {
	s, b, _, events := startedExam(t, Options{})
	b.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), TriggerUser)
		done <- err
	}()
	require.Eventually(t, func() bool { return b.submitCount() == 1 }, time.Second, time.Millisecond)

	s.Close(context.Background())
	before := events.count()
	close(b.gate)

	assert.ErrorIs(t, <-done, ErrSessionClosed)
	assert.Equal(t, before, events.count())
	assert.Empty(t, events.ofType(EventNavigate))
}

func TestCloseBeforeStart(t *testing.T) {
	b := &stubBackend{sections: sampleSections()}
	s, _, events := newTestExam(t, b, Options{})
	s.Close(context.Background())

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	assert.Zero(t, events.count())
}

// startGated runs Start in the background and returns once the load is blocked.
func startGated(t *testing.T, s interface{ Start(context.Context) error }, loading <-chan struct{}) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	waitFor(t, loading)
	return done
}

func TestCloseWhileLoading(t *testing.T) {
	b := gatedBackend()
	s, p, events := newTestExam(t, b, Options{AutoPlay: true, Duration: 2 * time.Second})
	done := startGated(t, s, b.loading)

	s.Close(context.Background())
	close(b.loadGate)

	assert.ErrorIs(t, <-done, ErrSessionClosed)
	assert.Zero(t, events.count())
	assert.Empty(t, p.log())
	assert.False(t, s.Tick(), "no countdown is armed")
	assert.False(t, s.Tick())
	assert.Equal(t, 0, b.submitCount())
}

func TestConfirmedBackWhileLoading(t *testing.T) {
	b := gatedBackend()
	s, p, events := newTestExam(t, b, Options{AutoPlay: true, Duration: 2 * time.Second})
	done := startGated(t, s, b.loading)

	s.Back(context.Background(), true)
	assert.Equal(t, StateTerminated, s.State())
	close(b.loadGate)

	assert.ErrorIs(t, <-done, ErrSessionClosed)
	assert.Equal(t, StateTerminated, s.State())
	assert.Empty(t, events.ofType(EventExamLoaded))
	assert.Empty(t, events.ofType(EventAudio))
	assert.Len(t, events.ofType(EventNavigate), 1)
	assert.Empty(t, p.log())
	assert.False(t, s.Tick(), "no countdown is armed")
	assert.False(t, s.Tick())

	_, err := s.Submit(context.Background(), TriggerUser)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, 0, b.submitCount())
}

func TestTimerSubmitFailureAnnouncesDeadline(t *testing.T) {
	s, b, _, events := startedExam(t, Options{Duration: time.Second})
	b.setSubmitErr(errBackend)

	assert.False(t, s.Tick())
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, []Toast{
		{Kind: ToastError, Text: MsgSubmitFailed},
		{Kind: ToastInfo, Text: MsgTimeUp},
	}, events.toasts())
	assert.Equal(t, 0, s.Remaining())

	b.setSubmitErr(nil)
	_, err := s.Submit(context.Background(), TriggerUser)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, 2, b.submitCount())
}

func TestSnapshot(t *testing.T) {
	s, _, _, _ := startedExam(t, Options{AutoPlay: true})
	require.NoError(t, s.SetAnswer(21, "True"))
	s.Tick()

	snap := s.Snapshot()
	assert.Equal(t, "ready", snap.State)
	assert.Equal(t, 1199, snap.Remaining)
	assert.Equal(t, 1, snap.Answered)
	assert.Equal(t, 3, snap.Questions)
	assert.Equal(t, "https://cdn.example/part1.mp3", snap.Playing)
	assert.Equal(t, KindExam, snap.Kind)
}

func TestSubmitCarriesUnansweredQuestions(t *testing.T) {
	s, b, _, _ := startedExam(t, Options{})

	_, err := s.Submit(context.Background(), TriggerTimer)
	require.NoError(t, err)
	require.Len(t, b.lastBatch, 3)
	assert.Equal(t, exam.ResolutionUnmatched, b.lastBatch[0].Resolution)
	assert.Equal(t, exam.ResolutionAnchored, b.lastBatch[1].Resolution)
}
