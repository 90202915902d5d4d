package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gokatarajesh/ielts-practice/internal/session"
	"github.com/gokatarajesh/ielts-practice/pkg/http/ws"
)

// sender delivers a message to the client.
type sender interface {
	Send(msg ws.Message) error
}

// remotePlayer plays audio on the client device. Every track gets an id the
// client echoes back when the track finishes or fails.
type remotePlayer struct {
	out sender

	mu     sync.Mutex
	tracks map[string]*remoteTrack
}

var _ session.Player = (*remotePlayer)(nil)

func newRemotePlayer(out sender) *remotePlayer {
	return &remotePlayer{out: out, tracks: make(map[string]*remoteTrack)}
}

func (p *remotePlayer) Load(_ context.Context, uri string, onFinish func()) (session.Track, error) {
	t := &remoteTrack{id: uuid.NewString(), uri: uri, player: p, onFinish: onFinish}
	if err := p.command(t, ws.AudioLoad); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.tracks[t.id] = t
	p.mu.Unlock()
	return t, nil
}

// finished runs the completion callback of a track. Unknown ids are ignored.
func (p *remotePlayer) finished(trackID string) bool {
	p.mu.Lock()
	t, ok := p.tracks[trackID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	t.finishOnce.Do(func() {
		if t.onFinish != nil {
			t.onFinish()
		}
	})
	return true
}

// lookup returns the uri a track was loaded from.
func (p *remotePlayer) lookup(trackID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tracks[trackID]
	if !ok {
		return "", false
	}
	return t.uri, true
}

func (p *remotePlayer) command(t *remoteTrack, action string) error {
	payload := ws.AudioCommandPayload{TrackID: t.id, Action: action}
	if action == ws.AudioLoad {
		payload.URI = t.uri
	}
	msg, err := ws.NewMessage(ws.TypeAudioCommand, payload, "")
	if err != nil {
		return err
	}
	if err := p.out.Send(msg); err != nil {
		return fmt.Errorf("send %s command: %w", action, err)
	}
	return nil
}

type remoteTrack struct {
	id         string
	uri        string
	player     *remotePlayer
	onFinish   func()
	finishOnce sync.Once
}

func (t *remoteTrack) Pause(context.Context) error  { return t.player.command(t, ws.AudioPause) }
func (t *remoteTrack) Resume(context.Context) error { return t.player.command(t, ws.AudioResume) }
func (t *remoteTrack) Stop(context.Context) error   { return t.player.command(t, ws.AudioStop) }

func (t *remoteTrack) Unload(context.Context) error {
	t.player.mu.Lock()
	delete(t.player.tracks, t.id)
	t.player.mu.Unlock()
	return t.player.command(t, ws.AudioUnload)
}
