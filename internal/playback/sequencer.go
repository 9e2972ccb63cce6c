package playback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readalong/internal/audio"
	"github.com/dgnsrekt/readalong/internal/catalog"
)

// Units is the catalog the sequencer walks. It is re-read by index on
// every step so a rebuild mid-playback takes effect immediately.
type Units interface {
	Len() int
	At(i int) (catalog.Unit, bool)
}

// Highlighter follows the live clip with word highlighting.
type Highlighter interface {
	// Attach binds the highlighter to a clip about to play unit u.
	Attach(clip *audio.Clip, u catalog.Unit)
	// ClearAll removes every word highlight and hides any popup.
	ClearAll()
}

// Config holds sequencer settings.
type Config struct {
	Speed            float64       // Playback rate, one of audio.Speeds
	DescribeImages   bool          // Play image units instead of skipping them
	Autoplay         bool          // Start on page load after the first interaction
	Tick             time.Duration // Clip time-update interval
	ClickSuppression time.Duration // Unit clicks ignored after a glossary activation
}

// DefaultConfig returns the default sequencer configuration.
func DefaultConfig() Config {
	return Config{
		Speed:            1,
		Tick:             audio.DefaultTick,
		ClickSuppression: 300 * time.Millisecond,
	}
}

// Sequencer plays the units of a page one after another. All state
// changes go through its methods; user commands bump an epoch and stop
// the live clip before touching the index, so a late continuation from a
// superseded loop never moves it.
type Sequencer struct {
	backend audio.Backend
	units   Units

	mu              sync.Mutex
	hl              Highlighter
	cfg             Config
	state           State
	live            *audio.Clip
	running         bool
	interacted      bool
	pendingAutoplay bool
	epoch           uint64
	gen             uint64
	suppressUntil   time.Time
	subs            map[int]func(Event)
	nextSub         int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSequencer creates a sequencer over units using backend for output.
func NewSequencer(backend audio.Backend, units Units, cfg Config) (*Sequencer, error) {
	if cfg.Speed == 0 {
		cfg.Speed = 1
	}
	if err := audio.ValidateSpeed(cfg.Speed); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Tick <= 0 {
		cfg.Tick = audio.DefaultTick
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sequencer{
		backend: backend,
		units:   units,
		cfg:     cfg,
		state:   State{Speed: cfg.Speed},
		subs:    make(map[int]func(Event)),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// SetHighlighter sets the highlighter attached to every clip.
func (s *Sequencer) SetHighlighter(h Highlighter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hl = h
}

// Subscribe registers fn for every event and returns a function that
// removes it. Events are delivered outside the sequencer lock.
func (s *Sequencer) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// State returns a snapshot of the playback state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Live returns the live clip, or nil.
func (s *Sequencer) Live() *audio.Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Config returns the current configuration.
func (s *Sequencer) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetSpeed changes the rate used for the next clip.
func (s *Sequencer) SetSpeed(speed float64) error {
	if err := audio.ValidateSpeed(speed); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Speed = speed
	s.state.Speed = speed
	return nil
}

// SetDescribeImages toggles whether image units are played.
func (s *Sequencer) SetDescribeImages(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.DescribeImages = on
}

// SetAutoplay toggles autoplay on page load.
func (s *Sequencer) SetAutoplay(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Autoplay = on
	if !on {
		s.pendingAutoplay = false
	}
}

// SetIndex moves the current index without playing anything.
func (s *Sequencer) SetIndex(i int) {
	s.mu.Lock()
	if s.state.Index == i {
		s.mu.Unlock()
		return
	}
	s.state.Index = i
	st := s.state
	s.mu.Unlock()
	s.emit(Event{Type: EventIndexChanged, State: st})
}

// NotifyUserInteraction records that the user has interacted with the
// reader. Playback never starts before this; a pending autoplay starts
// now.
func (s *Sequencer) NotifyUserInteraction() {
	s.mu.Lock()
	s.interacted = true
	start := s.pendingAutoplay
	s.pendingAutoplay = false
	s.mu.Unlock()

	if start {
		s.PlayAudioSequentially()
	}
}

// Autoplay starts playback for a freshly loaded page when autoplay is on.
// Without a prior interaction the start is deferred until one happens.
func (s *Sequencer) Autoplay() {
	s.mu.Lock()
	if !s.cfg.Autoplay {
		s.mu.Unlock()
		return
	}
	if !s.interacted {
		s.pendingAutoplay = true
		s.mu.Unlock()
		log.Debug("autoplay waiting for user interaction")
		return
	}
	s.mu.Unlock()
	s.PlayAudioSequentially()
}

// SuppressClicks makes ClickUnit ignore clicks for the configured window.
func (s *Sequencer) SuppressClicks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressUntil = time.Now().Add(s.cfg.ClickSuppression)
}

// TogglePlayPause starts sequential playback when stopped and stops it
// when playing.
func (s *Sequencer) TogglePlayPause() {
	s.mu.Lock()
	playing := s.state.Playing
	s.mu.Unlock()

	if playing {
		s.Stop()
		return
	}
	s.PlayAudioSequentially()
}

// Stop ends playback: the live clip is silenced and dropped, every
// highlight is cleared and the indicator is updated. Safe to call in any
// state, any number of times.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	s.epoch++
	s.running = false
	evs := s.stopLocked()
	hl := s.hl
	s.mu.Unlock()

	if hl != nil {
		hl.ClearAll()
	}
	s.emit(evs...)
}

func (s *Sequencer) stopLocked() []Event {
	if s.live != nil {
		s.live.Stop()
		s.live = nil
	}
	var evs []Event
	if s.state.Highlighted != "" {
		s.state.Highlighted = ""
		evs = append(evs, Event{Type: EventHighlight, State: s.state})
	}
	s.state.Playing = false
	s.state.Generation = 0
	return append(evs, Event{Type: EventPlayState, State: s.state})
}

// PlayAudioSequentially plays from the current index to the end of the
// page. It returns false without doing anything when a loop is already
// running or the user has not interacted yet.
func (s *Sequencer) PlayAudioSequentially() bool {
	s.mu.Lock()
	if !s.interacted {
		s.mu.Unlock()
		log.Debug("playback requires a user interaction")
		return false
	}
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.epoch++
	e := s.epoch
	s.state.Playing = true
	st := s.state
	s.mu.Unlock()

	s.emit(Event{Type: EventPlayState, State: st})
	s.startLoop(e)
	return true
}

// PlayNextAudio moves forward one unit and plays from there.
func (s *Sequencer) PlayNextAudio() {
	s.restart(func(st *State) {
		st.Direction = Forward
		st.Index++
	})
}

// PlayPreviousAudio moves back one unit (not below the first) and plays
// from there. Once that unit has played the direction resolves forward.
func (s *Sequencer) PlayPreviousAudio() {
	s.restart(func(st *State) {
		st.Direction = Backward
		st.Index = max(st.Index-1, 0)
	})
}

func (s *Sequencer) restart(move func(*State)) {
	s.mu.Lock()
	s.interacted = true
	s.epoch++
	e := s.epoch
	evs := s.stopLocked()
	move(&s.state)
	s.state.Playing = true
	s.running = true
	evs = append(evs,
		Event{Type: EventIndexChanged, State: s.state},
		Event{Type: EventPlayState, State: s.state},
	)
	hl := s.hl
	s.mu.Unlock()

	if hl != nil {
		hl.ClearAll()
	}
	s.emit(evs...)
	s.startLoop(e)
}

// PlayCurrentAudio plays the unit at the current index once, without
// advancing afterwards.
func (s *Sequencer) PlayCurrentAudio() {
	s.mu.Lock()
	s.interacted = true
	s.epoch++
	e := s.epoch
	s.running = false
	evs := s.stopLocked()
	u, ok := s.units.At(s.state.Index)
	if ok {
		s.state.Playing = true
		s.state.Highlighted = u.ID()
		evs = append(evs,
			Event{Type: EventPlayState, State: s.state},
			Event{Type: EventHighlight, State: s.state},
		)
	}
	hl := s.hl
	s.mu.Unlock()

	if hl != nil {
		hl.ClearAll()
	}
	s.emit(evs...)
	if !ok {
		log.Debug("no unit at index", "index", s.State().Index)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.playClip(e, u)

		s.mu.Lock()
		if s.epoch != e {
			s.mu.Unlock()
			return
		}
		evs := s.stopLocked()
		s.mu.Unlock()
		s.emit(evs...)
	}()
}

// ClickUnit handles a direct click on unit i: it plays that unit once,
// unless clicks are being suppressed after a glossary activation.
func (s *Sequencer) ClickUnit(i int) bool {
	s.mu.Lock()
	if time.Now().Before(s.suppressUntil) {
		s.mu.Unlock()
		log.Debug("unit click suppressed", "index", i)
		return false
	}
	s.mu.Unlock()

	s.SetIndex(i)
	s.PlayCurrentAudio()
	return true
}

// Wait blocks until every playback goroutine has returned.
func (s *Sequencer) Wait() {
	s.wg.Wait()
}

// Shutdown stops playback and waits for it to wind down.
func (s *Sequencer) Shutdown() {
	s.Stop()
	s.cancel()
	s.wg.Wait()
}

func (s *Sequencer) startLoop(e uint64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(e)
	}()
}

// loop is the queue walk. Every iteration starts by checking that its
// epoch is still current; any user command retires it.
func (s *Sequencer) loop(e uint64) {
	for {
		s.mu.Lock()
		if s.epoch != e {
			s.mu.Unlock()
			return
		}

		u, ok := s.units.At(s.state.Index)
		if !ok {
			s.epoch++
			s.running = false
			evs := s.stopLocked()
			s.state.Index = 0
			s.state.Direction = Forward
			evs = append(evs, Event{Type: EventIndexChanged, State: s.state})
			hl := s.hl
			s.mu.Unlock()

			log.Debug("playback reached the end of the page")
			if hl != nil {
				hl.ClearAll()
			}
			s.emit(evs...)
			return
		}

		var evs []Event
		if s.state.Highlighted != "" {
			s.state.Highlighted = ""
			evs = append(evs, Event{Type: EventHighlight, State: s.state})
		}

		if u.Kind() == catalog.KindImage && !s.cfg.DescribeImages {
			evs = append(evs, Event{Type: EventSkipped, State: s.state, Unit: u.ID()})
			if s.state.Direction == Backward {
				s.state.Index--
			} else {
				s.state.Index++
			}
			evs = append(evs, Event{Type: EventIndexChanged, State: s.state})
			s.mu.Unlock()

			log.Debug("skipping image unit", "id", u.ID())
			s.emit(evs...)
			continue
		}

		s.state.Highlighted = u.ID()
		evs = append(evs, Event{Type: EventHighlight, State: s.state})
		hl := s.hl
		s.mu.Unlock()

		if hl != nil {
			hl.ClearAll()
		}
		s.emit(evs...)

		s.playClip(e, u)

		s.mu.Lock()
		if s.epoch != e {
			s.mu.Unlock()
			return
		}
		evs = evs[:0]
		if s.state.Highlighted != "" {
			s.state.Highlighted = ""
			evs = append(evs, Event{Type: EventHighlight, State: s.state})
		}
		if !s.state.Playing {
			s.running = false
			evs = append(evs, s.stopLocked()...)
			s.mu.Unlock()
			s.emit(evs...)
			return
		}
		s.state.Direction = Forward
		s.state.Index++
		evs = append(evs, Event{Type: EventIndexChanged, State: s.state})
		s.mu.Unlock()
		s.emit(evs...)
	}
}

// playClip plays one unit's audio and returns when it has ended, failed
// or been stopped. Failures are logged and count as ended. Nothing is
// started when playback is no longer wanted.
func (s *Sequencer) playClip(e uint64, u catalog.Unit) {
	s.mu.Lock()
	if s.epoch != e || !s.state.Playing {
		s.mu.Unlock()
		return
	}
	if s.live != nil {
		s.live.Stop()
	}
	s.gen++
	clip := audio.NewClip(s.gen, u.Source(), s.cfg.Speed, s.backend)
	clip.SetTick(s.cfg.Tick)
	s.live = clip
	s.state.Generation = clip.Generation()
	hl := s.hl
	s.mu.Unlock()

	if hl != nil {
		hl.Attach(clip, u)
	}

	err := clip.Play(s.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("audio playback failed", "id", u.ID(), "src", u.Source(), "error", err)
	} else {
		err = nil
	}

	s.mu.Lock()
	if s.live == clip {
		s.live = nil
		s.state.Generation = 0
	}
	st := s.state
	s.mu.Unlock()

	s.emit(Event{Type: EventClipEnded, State: st, Unit: u.ID(), Err: err})
}

func (s *Sequencer) emit(evs ...Event) {
	if len(evs) == 0 {
		return
	}
	s.mu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, ev := range evs {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
