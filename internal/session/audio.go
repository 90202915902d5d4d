package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Player loads audio tracks. A loaded track starts playing immediately.
// onFinish is called once when the track plays to its end.
type Player interface {
	Load(ctx context.Context, uri string, onFinish func()) (Track, error)
}

// Track is a loaded audio handle.
type Track interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Unload(ctx context.Context) error
}

// AudioManager keeps at most one track loaded and tracks whether it is playing.
type AudioManager struct {
	player Player
	logger zerolog.Logger

	// ops serializes Play, Fail and StopAndRelease so a replaced track is
	// always released before the next one loads.
	ops sync.Mutex

	mu       sync.Mutex
	track    Track
	uri      string
	playing  bool
	finished bool
	gen      uint64
	onChange func(uri string, playing bool)
}

// NewAudioManager creates a manager over player. onChange may be nil.
func NewAudioManager(player Player, onChange func(uri string, playing bool), logger zerolog.Logger) *AudioManager {
	return &AudioManager{
		player:   player,
		onChange: onChange,
		logger:   logger.With().Str("component", "audio").Logger(),
	}
}

// Play starts uri. If uri is already loaded it toggles pause/resume; any other
// loaded track is stopped and unloaded first.
func (m *AudioManager) Play(ctx context.Context, uri string) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	m.mu.Lock()
	if m.track != nil && m.uri == uri && !m.finished {
		track, playing := m.track, m.playing
		m.mu.Unlock()
		return m.toggle(ctx, track, uri, playing)
	}
	prev := m.detachLocked()
	gen := m.gen
	m.mu.Unlock()

	if prev != nil {
		m.release(ctx, prev)
	}

	track, err := m.player.Load(ctx, uri, func() { m.finish(gen) })
	if err != nil {
		m.notify("", false)
		return fmt.Errorf("load audio %s: %w", uri, err)
	}

	m.mu.Lock()
	m.track = track
	m.uri = uri
	m.playing = true
	m.mu.Unlock()

	m.logger.Debug().Str("uri", uri).Msg("audio loaded")
	m.notify(uri, true)
	return nil
}

func (m *AudioManager) toggle(ctx context.Context, track Track, uri string, playing bool) error {
	var err error
	if playing {
		err = track.Pause(ctx)
	} else {
		err = track.Resume(ctx)
	}
	if err != nil {
		m.mu.Lock()
		m.playing = false
		m.mu.Unlock()
		m.notify(uri, false)
		return fmt.Errorf("toggle audio %s: %w", uri, err)
	}

	m.mu.Lock()
	m.playing = !playing
	m.mu.Unlock()
	m.notify(uri, !playing)
	return nil
}

// StopAndRelease stops and unloads the current track. No-op when nothing is loaded.
func (m *AudioManager) StopAndRelease(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	m.mu.Lock()
	prev := m.detachLocked()
	m.mu.Unlock()
	if prev == nil {
		return nil
	}

	err := errors.Join(prev.Stop(ctx), prev.Unload(ctx))
	m.notify("", false)
	if err != nil {
		return fmt.Errorf("release audio: %w", err)
	}
	return nil
}

// Fail records an asynchronous playback failure for uri. The track is released
// so the next Play loads it afresh. Failures for a track no longer loaded are
// ignored and reported as false.
func (m *AudioManager) Fail(ctx context.Context, uri string, cause error) bool {
	m.ops.Lock()
	defer m.ops.Unlock()

	m.mu.Lock()
	if m.track == nil || m.uri != uri {
		m.mu.Unlock()
		return false
	}
	prev := m.detachLocked()
	m.mu.Unlock()

	m.logger.Warn().Err(cause).Str("uri", uri).Msg("audio playback failed")
	if err := prev.Unload(ctx); err != nil {
		m.logger.Debug().Err(err).Str("uri", uri).Msg("unload failed track")
	}
	m.notify("", false)
	return true
}

// Playing returns the uri currently playing, or "" when paused or idle.
func (m *AudioManager) Playing() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.playing {
		return ""
	}
	return m.uri
}

// Loaded returns the uri of the loaded track, playing or not.
func (m *AudioManager) Loaded() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uri
}

func (m *AudioManager) finish(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.track == nil {
		m.mu.Unlock()
		return
	}
	uri := m.uri
	m.playing = false
	m.finished = true
	m.mu.Unlock()

	m.logger.Debug().Str("uri", uri).Msg("audio finished")
	m.notify(uri, false)
}

// detachLocked forgets the current track and invalidates its callbacks.
func (m *AudioManager) detachLocked() Track {
	prev := m.track
	m.track = nil
	m.uri = ""
	m.playing = false
	m.finished = false
	m.gen++
	return prev
}

func (m *AudioManager) release(ctx context.Context, t Track) {
	if err := t.Stop(ctx); err != nil {
		m.logger.Debug().Err(err).Msg("stop previous track")
	}
	if err := t.Unload(ctx); err != nil {
		m.logger.Debug().Err(err).Msg("unload previous track")
	}
}

func (m *AudioManager) notify(uri string, playing bool) {
	if m.onChange != nil {
		m.onChange(uri, playing)
	}
}
