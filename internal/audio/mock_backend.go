package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockBackend plays nothing. Voices either run on the wall clock for a
// configured duration or, when no duration is known, wait for the test
// to drive them through MockVoice.Advance and MockVoice.Finish.
type MockBackend struct {
	// Durations maps a source to its media length.
	Durations map[string]time.Duration
	// Default applies to sources missing from Durations. Zero means
	// manually driven voices.
	Default time.Duration
	// Failures makes Start fail for the listed sources.
	Failures map[string]error

	mu      sync.Mutex
	started []string
	voices  []*MockVoice

	live    atomic.Int32
	maxLive atomic.Int32
}

// NewMockBackend creates a backend where every clip lasts d.
func NewMockBackend(d time.Duration) *MockBackend {
	return &MockBackend{Default: d}
}

// Start implements Backend.
func (b *MockBackend) Start(ctx context.Context, src string, speed float64) (Voice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.started = append(b.started, src)
	err := b.Failures[src]
	d, ok := b.Durations[src]
	if !ok {
		d = b.Default
	}
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}

	v := &MockVoice{
		backend: b,
		length:  d,
		speed:   speed,
		done:    make(chan struct{}),
		began:   time.Now(),
	}
	b.mu.Lock()
	b.voices = append(b.voices, v)
	b.mu.Unlock()

	n := b.live.Add(1)
	for {
		m := b.maxLive.Load()
		if n <= m || b.maxLive.CompareAndSwap(m, n) {
			break
		}
	}

	if d > 0 {
		v.timer = time.AfterFunc(time.Duration(float64(d)/speed), func() { v.Finish(nil) })
	}
	return v, nil
}

// Started returns the sources passed to Start, in order.
func (b *MockBackend) Started() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.started...)
}

// Voices returns every voice created so far.
func (b *MockBackend) Voices() []*MockVoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MockVoice(nil), b.voices...)
}

// Last returns the most recent voice, or nil.
func (b *MockBackend) Last() *MockVoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.voices) == 0 {
		return nil
	}
	return b.voices[len(b.voices)-1]
}

// Live is the number of voices currently sounding.
func (b *MockBackend) Live() int { return int(b.live.Load()) }

// MaxLive is the highest number of voices that sounded at once.
func (b *MockBackend) MaxLive() int { return int(b.maxLive.Load()) }

// MockVoice is a Voice produced by MockBackend.
type MockVoice struct {
	backend *MockBackend
	length  time.Duration
	speed   float64
	began   time.Time
	timer   *time.Timer

	mu       sync.Mutex
	manual   time.Duration
	err      error
	finished bool
	stopped  bool
	done     chan struct{}
}

// Position implements Voice.
func (v *MockVoice) Position() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.length == 0 {
		return v.manual
	}
	p := time.Duration(float64(time.Since(v.began)) * v.speed)
	return min(p, v.length)
}

// Done implements Voice.
func (v *MockVoice) Done() <-chan struct{} { return v.done }

// Err implements Voice.
func (v *MockVoice) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Stop implements Voice.
func (v *MockVoice) Stop() {
	v.mu.Lock()
	v.stopped = true
	v.mu.Unlock()
	v.finish(nil)
}

// Stopped reports whether Stop was called.
func (v *MockVoice) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

// Advance sets the media time of a manually driven voice.
func (v *MockVoice) Advance(to time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.manual = to
}

// Finish ends the voice as if it had played out, or failed with err.
func (v *MockVoice) Finish(err error) {
	v.finish(err)
}

func (v *MockVoice) finish(err error) {
	v.mu.Lock()
	if v.finished {
		v.mu.Unlock()
		return
	}
	v.finished = true
	v.err = err
	if v.timer != nil {
		v.timer.Stop()
	}
	v.mu.Unlock()

	v.backend.live.Add(-1)
	close(v.done)
}
