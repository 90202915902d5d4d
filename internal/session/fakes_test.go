package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gokatarajesh/ielts-practice/internal/exam"
)

// fakePlayer records every audio operation in order.
type fakePlayer struct {
	mu       sync.Mutex
	ops      []string
	finish   map[string]func()
	loadErr  map[string]error
	pauseErr error
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{finish: map[string]func(){}, loadErr: map[string]error{}}
}

func (p *fakePlayer) Load(_ context.Context, uri string, onFinish func()) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, "load:"+uri)
	if err := p.loadErr[uri]; err != nil {
		return nil, err
	}
	p.finish[uri] = onFinish
	return &fakeTrack{p: p, uri: uri}, nil
}

func (p *fakePlayer) record(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, op)
}

func (p *fakePlayer) log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

func (p *fakePlayer) complete(uri string) {
	p.mu.Lock()
	fn := p.finish[uri]
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fakeTrack struct {
	p   *fakePlayer
	uri string
}

func (t *fakeTrack) Pause(context.Context) error {
	t.p.record("pause:" + t.uri)
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.p.pauseErr
}

func (t *fakeTrack) Resume(context.Context) error {
	t.p.record("resume:" + t.uri)
	return nil
}

func (t *fakeTrack) Stop(context.Context) error {
	t.p.record("stop:" + t.uri)
	return nil
}

func (t *fakeTrack) Unload(context.Context) error {
	t.p.record("unload:" + t.uri)
	return nil
}

// stubBackend serves a fixed exam and counts submissions.
type stubBackend struct {
	mu        sync.Mutex
	sections  []exam.Section
	loadErr   error
	submitErr error
	submits   int
	lastBatch []exam.Record
	// gate, when set, blocks SubmitResults until closed.
	gate chan struct{}
	// loading is closed once LoadStructure is entered; loadGate then holds
	// the load until it is closed.
	loading  chan struct{}
	loadGate chan struct{}
}

func (b *stubBackend) LoadStructure(context.Context, int64) ([]exam.Section, error) {
	if b.loadGate != nil {
		close(b.loading)
		<-b.loadGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.sections, nil
}

func gatedBackend() *stubBackend {
	return &stubBackend{
		sections: sampleSections(),
		loading:  make(chan struct{}),
		loadGate: make(chan struct{}),
	}
}

// waitFor fails the test if ch is not closed within a second.
func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting")
	}
}

func (b *stubBackend) SubmitResults(ctx context.Context, records []exam.Record) error {
	b.mu.Lock()
	b.submits++
	b.lastBatch = records
	gate := b.gate
	err := b.submitErr
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (b *stubBackend) submitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submits
}

func (b *stubBackend) setSubmitErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitErr = err
}

var errBackend = errors.New("backend unavailable")

// eventLog collects emitted events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) toasts() []Toast {
	var out []Toast
	for _, ev := range l.ofType(EventToast) {
		out = append(out, *ev.Toast)
	}
	return out
}

func (l *eventLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func sampleSections() []exam.Section {
	return []exam.Section{
		{
			ID:       1,
			Name:     "Listening Part 1",
			AudioURL: "https://cdn.example/part1.mp3",
			Questions: []exam.Question{
				{ID: 11, Type: exam.TypeMultipleChoiceSingle, Options: []exam.Option{{ID: 111, Text: "A"}, {ID: 112, Text: "B"}}},
				{ID: 12, Type: exam.TypeNoteCompletion, Options: []exam.Option{{ID: 121, Text: "anchor"}}},
			},
		},
		{
			ID:         2,
			Name:       "Reading Passage 1",
			Transcript: "Passage text",
			Questions: []exam.Question{
				{ID: 21, Type: exam.TypeTrueFalseNotGiven, Options: []exam.Option{{ID: 211, Text: "True"}, {ID: 212, Text: "False"}, {ID: 213, Text: "Not Given"}}},
			},
		},
	}
}
