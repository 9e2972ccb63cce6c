package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readalong/internal/audio"
	"github.com/dgnsrekt/readalong/internal/catalog"
	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/page"
)

const threeText = `<main>
<p data-id="t1">One</p>
<p data-id="t2">Two</p>
<p data-id="t3">Three</p>
</main>`

const textImageText = `<main>
<p data-id="t1">One</p>
<img data-id="i1" alt="Leaf">
<p data-id="t3">Three</p>
</main>`

func buildUnits(t *testing.T, html string) *catalog.Store {
	t.Helper()
	doc, err := page.ParseString(html)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	idx := content.NewAudioIndex(map[string]string{
		"t1": "t1.mp3",
		"t2": "t2.mp3",
		"t3": "t3.mp3",
		"i1": "i1.mp3",
	}, "a")
	var s catalog.Store
	s.Replace(catalog.Build(doc, idx, false))
	return &s
}

type recordingHighlighter struct {
	mu       sync.Mutex
	attached []string
	gens     []uint64
	clears   int
}

func (h *recordingHighlighter) Attach(clip *audio.Clip, u catalog.Unit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clip.MarkHighlighterAttached()
	h.attached = append(h.attached, u.ID())
	h.gens = append(h.gens, clip.Generation())
}

func (h *recordingHighlighter) ClearAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clears++
}

func (h *recordingHighlighter) Clears() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clears
}

type eventLog struct {
	mu  sync.Mutex
	evs []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evs = append(l.evs, ev)
}

func (l *eventLog) indices() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []int
	for _, ev := range l.evs {
		if ev.Type == EventIndexChanged {
			out = append(out, ev.State.Index)
		}
	}
	return out
}

func (l *eventLog) of(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.evs {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestSequencer(t *testing.T, b audio.Backend, units Units, cfg Config) (*Sequencer, *recordingHighlighter, *eventLog) {
	t.Helper()
	cfg.Tick = time.Millisecond
	s, err := NewSequencer(b, units, cfg)
	if err != nil {
		t.Fatalf("NewSequencer failed: %v", err)
	}
	h := &recordingHighlighter{}
	s.SetHighlighter(h)
	l := &eventLog{}
	s.Subscribe(l.record)
	t.Cleanup(s.Shutdown)
	return s, h, l
}

func sources(ids ...string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "a/" + id + ".mp3"
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

// waitForVoice waits until the clip for src is sounding and reporting time.
func waitForVoice(t *testing.T, s *Sequencer, b *audio.MockBackend, src string) *audio.MockVoice {
	t.Helper()
	waitFor(t, func() bool {
		v := b.Last()
		c := s.Live()
		return v != nil && c != nil && c.Source() == src && len(b.Started()) > 0 && b.Started()[len(b.Started())-1] == src
	})
	v := b.Last()
	v.Advance(10 * time.Millisecond)
	waitFor(t, func() bool {
		c := s.Live()
		return c != nil && c.CurrentTime() > 0
	})
	return v
}

func TestEndToEndThreeUnits(t *testing.T) {
	b := audio.NewMockBackend(20 * time.Millisecond)
	s, h, l := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())

	s.NotifyUserInteraction()
	s.TogglePlayPause()
	s.Wait()

	if got, want := b.Started(), sources("t1", "t2", "t3"); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if b.MaxLive() != 1 {
		t.Errorf("expected at most one live clip, got %d", b.MaxLive())
	}

	st := s.State()
	if st.Playing {
		t.Error("expected playback to have stopped")
	}
	if st.Index != 0 || st.Direction != Forward {
		t.Errorf("expected reset to index 0 forward, got %d %v", st.Index, st.Direction)
	}
	if st.Highlighted != "" || s.Live() != nil {
		t.Error("expected no highlight and no live clip")
	}

	h.mu.Lock()
	if !equalStrings(h.attached, []string{"t1", "t2", "t3"}) {
		t.Errorf("expected highlighter on every clip, got %v", h.attached)
	}
	for i := 1; i < len(h.gens); i++ {
		if h.gens[i] <= h.gens[i-1] {
			t.Errorf("generations must increase: %v", h.gens)
		}
	}
	h.mu.Unlock()

	plays := l.of(EventPlayState)
	if len(plays) == 0 || !plays[0].State.Playing || plays[len(plays)-1].State.Playing {
		t.Errorf("unexpected play state events: %+v", plays)
	}
	if ended := l.of(EventClipEnded); len(ended) != 3 {
		t.Errorf("expected 3 clip ended events, got %d", len(ended))
	}
}

func TestSingleHighlightedUnit(t *testing.T) {
	b := audio.NewMockBackend(10 * time.Millisecond)
	s, _, l := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())

	s.NotifyUserInteraction()
	s.PlayAudioSequentially()
	s.Wait()

	// Every highlight event names at most one unit and clears come
	// between units.
	prev := ""
	for _, ev := range l.of(EventHighlight) {
		cur := ev.State.Highlighted
		if prev != "" && cur != "" {
			t.Errorf("unit %s highlighted while %s still lit", cur, prev)
		}
		prev = cur
	}
}

func TestRequiresUserInteraction(t *testing.T) {
	b := audio.NewMockBackend(10 * time.Millisecond)
	s, _, _ := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())

	if s.PlayAudioSequentially() {
		t.Error("playback must not start before a user interaction")
	}
	s.TogglePlayPause()
	s.Wait()

	if len(b.Started()) != 0 {
		t.Errorf("expected nothing played, got %v", b.Started())
	}
	if s.State().Playing {
		t.Error("expected not playing")
	}
}

func TestReentrancyGuard(t *testing.T) {
	b := audio.NewMockBackend(0)
	s, _, _ := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())
	s.NotifyUserInteraction()

	if !s.PlayAudioSequentially() {
		t.Fatal("expected first call to start playback")
	}
	if s.PlayAudioSequentially() {
		t.Error("second call must be a no-op")
	}

	waitForVoice(t, s, b, "a/t1.mp3")
	if n := len(b.Started()); n != 1 {
		t.Errorf("expected one clip started, got %d", n)
	}
	s.Stop()
}

func TestSkipImages(t *testing.T) {
	tests := []struct {
		name     string
		describe bool
		want     []string
		skipped  int
	}{
		{"describe images off", false, sources("t1", "t3"), 1},
		{"describe images on", true, sources("t1", "i1", "t3"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := audio.NewMockBackend(5 * time.Millisecond)
			cfg := DefaultConfig()
			cfg.DescribeImages = tt.describe
			s, _, l := newTestSequencer(t, b, buildUnits(t, textImageText), cfg)

			s.NotifyUserInteraction()
			s.TogglePlayPause()
			s.Wait()

			if got := b.Started(); !equalStrings(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			skipped := l.of(EventSkipped)
			if len(skipped) != tt.skipped {
				t.Fatalf("expected %d skip events, got %d", tt.skipped, len(skipped))
			}
			for _, ev := range skipped {
				if ev.Unit != "i1" {
					t.Errorf("unexpected skipped unit %q", ev.Unit)
				}
			}
		})
	}
}

func TestSkipImagesReverse(t *testing.T) {
	b := audio.NewMockBackend(0)
	s, _, l := newTestSequencer(t, b, buildUnits(t, textImageText), DefaultConfig())

	s.SetIndex(2)
	s.PlayPreviousAudio()

	v := waitForVoice(t, s, b, "a/t1.mp3")
	st := s.State()
	if st.Index != 0 || st.Direction != Backward {
		t.Errorf("expected index 0 backward, got %d %v", st.Index, st.Direction)
	}
	v.Finish(nil)

	v = waitForVoice(t, s, b, "a/t3.mp3")
	if st := s.State(); st.Index != 2 || st.Direction != Forward {
		t.Errorf("expected index 2 forward, got %d %v", st.Index, st.Direction)
	}
	v.Finish(nil)
	s.Wait()

	if got, want := b.Started(), sources("t1", "t3"); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got, want := l.indices(), []int{2, 1, 0, 1, 2, 3, 0}; !equalInts(got, want) {
		t.Errorf("expected index sequence %v, got %v", want, got)
	}
	if s.State().Playing {
		t.Error("expected playback to end")
	}
}

func TestSkipImagesBackwardAtStart(t *testing.T) {
	const html = `<main><img data-id="i1" alt="Leaf"><p data-id="t1">One</p></main>`
	b := audio.NewMockBackend(0)
	s, _, _ := newTestSequencer(t, b, buildUnits(t, html), DefaultConfig())

	s.SetIndex(1)
	s.PlayPreviousAudio()
	s.Wait()

	if len(b.Started()) != 0 {
		t.Errorf("expected nothing played, got %v", b.Started())
	}
	if st := s.State(); st.Playing || st.Index != 0 || st.Direction != Forward {
		t.Errorf("expected stopped at index 0 forward, got %+v", st)
	}
}

func TestStopSafety(t *testing.T) {
	t.Run("when stopped", func(t *testing.T) {
		s, h, _ := newTestSequencer(t, audio.NewMockBackend(0), buildUnits(t, threeText), DefaultConfig())
		s.Stop()
		s.Stop()

		st := s.State()
		if st.Playing || st.Highlighted != "" || s.Live() != nil {
			t.Errorf("unexpected state after stop: %+v", st)
		}
		if h.Clears() != 2 {
			t.Errorf("expected highlights cleared on every stop, got %d", h.Clears())
		}
	})

	t.Run("during playback", func(t *testing.T) {
		b := audio.NewMockBackend(0)
		s, _, _ := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())
		s.NotifyUserInteraction()
		s.TogglePlayPause()

		v := waitForVoice(t, s, b, "a/t1.mp3")
		s.TogglePlayPause()
		s.Stop()
		s.Wait()

		if !v.Stopped() {
			t.Error("expected the live voice to be stopped")
		}
		st := s.State()
		if st.Playing || st.Highlighted != "" || s.Live() != nil {
			t.Errorf("unexpected state after stop: %+v", st)
		}
		if st.Index != 0 {
			t.Errorf("stop must keep the index, got %d", st.Index)
		}
		if n := len(b.Started()); n != 1 {
			t.Errorf("expected one clip, got %d", n)
		}
	})
}

func TestPlayNextSupersedesLiveClip(t *testing.T) {
	b := audio.NewMockBackend(0)
	s, _, _ := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())
	s.NotifyUserInteraction()
	s.TogglePlayPause()

	first := waitForVoice(t, s, b, "a/t1.mp3")
	s.PlayNextAudio()
	second := waitForVoice(t, s, b, "a/t2.mp3")

	if !first.Stopped() {
		t.Error("expected the first clip to be stopped")
	}
	if b.MaxLive() != 1 {
		t.Errorf("expected at most one live clip, got %d", b.MaxLive())
	}
	if st := s.State(); st.Index != 1 || !st.Playing {
		t.Errorf("expected playing index 1, got %+v", st)
	}

	second.Finish(nil)
	waitForVoice(t, s, b, "a/t3.mp3").Finish(nil)
	s.Wait()

	if got, want := b.Started(), sources("t1", "t2", "t3"); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPlayPreviousFloorsAtZero(t *testing.T) {
	b := audio.NewMockBackend(0)
	s, _, _ := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())

	s.PlayPreviousAudio()
	waitForVoice(t, s, b, "a/t1.mp3")
	if st := s.State(); st.Index != 0 {
		t.Errorf("expected index 0, got %d", st.Index)
	}
	s.Stop()
}

func TestPlayCurrentAudio(t *testing.T) {
	b := audio.NewMockBackend(5 * time.Millisecond)
	s, _, _ := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())

	if !s.ClickUnit(1) {
		t.Fatal("expected click to play")
	}
	s.Wait()

	if got, want := b.Started(), sources("t2"); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	st := s.State()
	if st.Playing || st.Index != 1 {
		t.Errorf("expected stopped at index 1, got %+v", st)
	}
}

func TestClickSuppression(t *testing.T) {
	b := audio.NewMockBackend(5 * time.Millisecond)
	cfg := DefaultConfig()
	cfg.ClickSuppression = time.Hour
	s, _, _ := newTestSequencer(t, b, buildUnits(t, threeText), cfg)

	s.SuppressClicks()
	if s.ClickUnit(0) {
		t.Error("expected click to be suppressed")
	}
	s.Wait()
	if len(b.Started()) != 0 {
		t.Errorf("expected nothing played, got %v", b.Started())
	}
}

func TestAutoplayWaitsForInteraction(t *testing.T) {
	b := audio.NewMockBackend(5 * time.Millisecond)
	cfg := DefaultConfig()
	cfg.Autoplay = true
	s, _, _ := newTestSequencer(t, b, buildUnits(t, threeText), cfg)

	s.Autoplay()
	if s.State().Playing {
		t.Fatal("autoplay must wait for an interaction")
	}

	s.NotifyUserInteraction()
	s.Wait()

	if got, want := b.Started(), sources("t1", "t2", "t3"); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestStartFailureCountsAsEnded(t *testing.T) {
	boom := errors.New("autoplay blocked")
	b := audio.NewMockBackend(5 * time.Millisecond)
	b.Failures = map[string]error{"a/t2.mp3": boom}
	s, _, l := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())

	s.NotifyUserInteraction()
	s.TogglePlayPause()
	s.Wait()

	if got, want := b.Started(), sources("t1", "t2", "t3"); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	var failed []string
	for _, ev := range l.of(EventClipEnded) {
		if errors.Is(ev.Err, boom) {
			failed = append(failed, ev.Unit)
		}
	}
	if !equalStrings(failed, []string{"t2"}) {
		t.Errorf("expected t2 to be reported as failed, got %v", failed)
	}
}

func TestCatalogShrinkEndsPlayback(t *testing.T) {
	b := audio.NewMockBackend(0)
	units := buildUnits(t, threeText)
	s, _, _ := newTestSequencer(t, b, units, DefaultConfig())
	s.NotifyUserInteraction()
	s.TogglePlayPause()

	v := waitForVoice(t, s, b, "a/t1.mp3")
	units.Replace(catalog.Build(mustParse(t, `<main><p data-id="t1">One</p></main>`), content.NewAudioIndex(map[string]string{"t1": "t1.mp3"}, "a"), false))
	v.Finish(nil)
	s.Wait()

	if got, want := b.Started(), sources("t1"); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if s.State().Playing {
		t.Error("expected playback to end")
	}
}

func TestSetSpeed(t *testing.T) {
	b := audio.NewMockBackend(0)
	s, _, _ := newTestSequencer(t, b, buildUnits(t, threeText), DefaultConfig())

	if err := s.SetSpeed(3); !errors.Is(err, audio.ErrUnsupportedSpeed) {
		t.Errorf("expected ErrUnsupportedSpeed, got %v", err)
	}
	if err := s.SetSpeed(1.5); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}

	s.NotifyUserInteraction()
	s.TogglePlayPause()
	waitForVoice(t, s, b, "a/t1.mp3")
	if got := s.Live().Speed(); got != 1.5 {
		t.Errorf("expected clip speed 1.5, got %g", got)
	}
	s.Stop()
}

func mustParse(t *testing.T, html string) *page.Document {
	t.Helper()
	doc, err := page.ParseString(html)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	return doc
}
