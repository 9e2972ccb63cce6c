package audio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultTick is how often a playing clip reports its time.
const DefaultTick = 50 * time.Millisecond

// Clip is one playback of one unit's audio. Every clip carries a
// generation number; listeners compare it with the generation they
// attached to and ignore callbacks from superseded clips.
type Clip struct {
	gen     uint64
	src     string
	speed   float64
	tick    time.Duration
	backend Backend

	mu          sync.Mutex
	voice       Voice
	position    time.Duration
	onTime      []func(seconds float64)
	onEnded     []func()
	highlighter bool
	stopped     bool
	stopOnce    sync.Once
	stopCh      chan struct{}
}

// NewClip prepares a clip; nothing sounds until Play.
func NewClip(gen uint64, src string, speed float64, b Backend) *Clip {
	return &Clip{
		gen:     gen,
		src:     src,
		speed:   speed,
		tick:    DefaultTick,
		backend: b,
		stopCh:  make(chan struct{}),
	}
}

// SetTick changes the time-update interval. Call before Play.
func (c *Clip) SetTick(d time.Duration) {
	if d > 0 {
		c.tick = d
	}
}

// Generation returns the clip's generation number.
func (c *Clip) Generation() uint64 { return c.gen }

// Source returns the clip location.
func (c *Clip) Source() string { return c.src }

// Speed returns the playback rate.
func (c *Clip) Speed() float64 { return c.speed }

// OnTimeUpdate registers fn to receive the media time, in seconds, on
// every tick while playing.
func (c *Clip) OnTimeUpdate(fn func(seconds float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTime = append(c.onTime, fn)
}

// OnEnded registers fn to run once when the clip plays out or fails. It
// does not run when the clip is stopped.
func (c *Clip) OnEnded(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEnded = append(c.onEnded, fn)
}

// MarkHighlighterAttached records that a highlighter owns this clip. It
// returns false if one was already attached.
func (c *Clip) MarkHighlighterAttached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.highlighter {
		return false
	}
	c.highlighter = true
	return true
}

// HasHighlighter reports whether MarkHighlighterAttached was called.
func (c *Clip) HasHighlighter() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlighter
}

// CurrentTime returns the last reported media time in seconds.
func (c *Clip) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position.Seconds()
}

// Stopped reports whether Stop was called.
func (c *Clip) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Play starts the clip and blocks until it ends, fails, is stopped or ctx
// is cancelled. A stopped clip returns nil without firing ended handlers.
func (c *Clip) Play(ctx context.Context) error {
	if c.Stopped() {
		return nil
	}

	v, err := c.backend.Start(ctx, c.src, c.speed)
	if err != nil {
		c.emitEnded()
		return fmt.Errorf("unable to start %s: %w", c.src, err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		v.Stop()
		return nil
	}
	c.voice = v
	c.mu.Unlock()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			v.Stop()
			return ctx.Err()
		case <-c.stopCh:
			v.Stop()
			return nil
		case <-v.Done():
			if c.Stopped() {
				return nil
			}
			c.emitTime(v.Position())
			c.emitEnded()
			if err := v.Err(); err != nil {
				return fmt.Errorf("playback of %s failed: %w", c.src, err)
			}
			return nil
		case <-ticker.C:
			c.emitTime(v.Position())
		}
	}
}

// Stop silences the clip (pause and rewind) and detaches it from its
// listeners. Safe to call at any time, any number of times.
func (c *Clip) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		v := c.voice
		c.position = 0
		c.mu.Unlock()

		close(c.stopCh)
		if v != nil {
			v.Stop()
		}
	})
}

func (c *Clip) emitTime(pos time.Duration) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.position = pos
	handlers := append([]func(float64){}, c.onTime...)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(pos.Seconds())
	}
}

func (c *Clip) emitEnded() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	handlers := append([]func(){}, c.onEnded...)
	c.onEnded = nil
	c.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}
