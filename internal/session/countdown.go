package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Default exam lengths.
const (
	ListeningReadingDuration = 20 * time.Minute
	WritingDuration          = 30 * time.Minute
)

// Countdown counts whole seconds down to zero. It is driven either by Run or by
// calling Tick directly.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	halted    bool

	onTick   func(remaining int)
	onExpire func()

	done     chan struct{}
	doneOnce sync.Once
}

// NewCountdown creates a countdown of d (rounded down to
// whole seconds). Either callback may be nil.
func NewCountdown(d time.Duration, onTick func(remaining int), onExpire func()) *Countdown {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &Countdown{
		remaining: secs,
		onTick:    onTick,
		onExpire:  onExpire,
		done:      make(chan struct{}),
	}
}

// Tick advances the countdown by one second. It returns false once the
// countdown has expired or been halted; expiry fires onExpire exactly once.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	if c.halted {
		c.mu.Unlock()
		return false
	}
	expired := c.remaining <= 1
	if expired {
		c.remaining = 0
		c.halted = true
	} else {
		c.remaining--
	}
	remaining := c.remaining
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(remaining)
	}
	if expired {
		c.closeDone()
		if c.onExpire != nil {
			c.onExpire()
		}
	}
	return !expired
}

// Halt stops the countdown without firing onExpire. Safe to call repeatedly.
func (c *Countdown) Halt() {
	c.mu.Lock()
	c.halted = true
	c.mu.Unlock()
	c.closeDone()
}

// Halted reports whether the countdown has expired or been halted.
func (c *Countdown) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// Remaining reports the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Run ticks every interval until the countdown halts or ctx is cancelled.
func (c *Countdown) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if !c.Tick() {
				return
			}
		}
	}
}

func (c *Countdown) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// FormatRemaining renders seconds as mm:ss.
func FormatRemaining(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
