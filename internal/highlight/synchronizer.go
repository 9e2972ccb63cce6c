// Package highlight keeps the word being spoken highlighted. For every
// clip the Synchronizer splits the unit's text into word spans, stores
// them in a side table keyed by container, and moves the active span as
// the clip reports its time.
package highlight

import (
	"context"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readalong/internal/audio"
	"github.com/dgnsrekt/readalong/internal/catalog"
	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/glossary"
	"github.com/dgnsrekt/readalong/internal/popup"
)

// Container is the highlighting state of one text container.
type Container struct {
	ID     string // Unit element ID, or popup text area ID
	UnitID string // Resolved unit ID
	Key    string // Timecode key the words came from
	Words  []content.WordTimestamp
	Spans  []Span
	Active int // Active span, -1 when none
}

// ActiveSpan returns the lit span, if any.
func (c Container) ActiveSpan() (Span, bool) {
	if c.Active < 0 || c.Active >= len(c.Spans) {
		return Span{}, false
	}
	return c.Spans[c.Active], true
}

// Popups creates and dismisses caption popups for image units.
type Popups interface {
	Create(anchorID, text string, widthHint int) popup.Popup
	Dismiss(id uint64) bool
}

// Playback is the part of the sequencer a glossary activation drives.
type Playback interface {
	Stop()
	SuppressClicks()
}

// DefinitionPresenter displays a glossary definition.
type DefinitionPresenter interface {
	ShowDefinition(e *glossary.Entry)
}

// Synchronizer binds word highlighting to the live clip.
type Synchronizer struct {
	ctx context.Context

	mu           sync.Mutex
	timecodes    content.Timecodes
	translations content.Translations
	glossary    *glossary.Glossary
	popups      Popups
	playback    Playback
	definitions DefinitionPresenter

	containers map[string]*Container
	current    string // Container owned by the live clip
	gen        uint64 // Generation of the live clip
	popupID    uint64 // Popup owned by the live clip
	onChange   []func()
	onFallback []func(id string)
}

// New creates a synchronizer reading word timings from timecodes.
func New(ctx context.Context, timecodes content.Timecodes) *Synchronizer {
	return &Synchronizer{
		ctx:        ctx,
		timecodes:  timecodes,
		containers: map[string]*Container{},
	}
}

// SetGlossary sets the glossary used to merge term spans.
func (s *Synchronizer) SetGlossary(g *glossary.Glossary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.glossary = g
}

// SetPopups sets where image captions are shown.
func (s *Synchronizer) SetPopups(p Popups) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popups = p
}

// SetPlayback sets the sequencer stopped by glossary activations.
func (s *Synchronizer) SetPlayback(p Playback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback = p
}

// SetDefinitions sets the glossary definition presenter.
func (s *Synchronizer) SetDefinitions(d DefinitionPresenter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions = d
}

// SetTimecodes switches the word timing source, e.g. after a language
// change. The side table is reset.
func (s *Synchronizer) SetTimecodes(tc content.Timecodes) {
	s.mu.Lock()
	s.timecodes = tc
	s.mu.Unlock()
	s.Reset()
}

// SetTranslations sets the text image captions are read from.
func (s *Synchronizer) SetTranslations(t content.Translations) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations = t
}

// OnChange registers fn to run whenever highlighting changes.
func (s *Synchronizer) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// OnFallback registers fn to run when an easy-read unit has no
// easy-read timings and falls back to the standard ones.
func (s *Synchronizer) OnFallback(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFallback = append(s.onFallback, fn)
}

// resolveKey picks the timecode key for u. It follows the clip the
// catalog chose: an easyread- unit reads its easy-read timings, falling
// back to the standard entry when those are missing. The fallback is
// reported since its words may not match the displayed text.
func (s *Synchronizer) resolveKey(u catalog.Unit, tc content.Timecodes) (string, []content.WordTimestamp, bool) {
	id := u.ID()
	if words, ok := tc.Words(s.ctx, id); ok && len(words) > 0 {
		return id, words, false
	}
	if !content.IsEasyReadID(id) {
		return id, nil, false
	}
	std := content.StandardID(id)
	words, ok := tc.Words(s.ctx, std)
	if !ok || len(words) == 0 {
		return std, nil, false
	}
	return std, words, true
}

// Attach binds highlighting to clip, which is about to play u. A clip
// gets at most one highlighter; later calls are ignored.
func (s *Synchronizer) Attach(clip *audio.Clip, u catalog.Unit) {
	if clip.Stopped() || !clip.MarkHighlighterAttached() {
		return
	}

	s.mu.Lock()
	tc, tr, popups, g := s.timecodes, s.translations, s.popups, s.glossary
	s.mu.Unlock()
	if tc == nil {
		return
	}

	key, words, fellBack := s.resolveKey(u, tc)
	if len(words) == 0 {
		log.Debug("no word timings", "id", key)
		return
	}
	if fellBack {
		log.Info("easy-read timings missing, using standard timings", "id", key)
		s.mu.Lock()
		fns := s.onFallback
		s.mu.Unlock()
		for _, fn := range fns {
			fn(key)
		}
	}

	text := unitText(u, tr)
	containerID := u.BaseID()
	var popupID uint64
	img, isImage := u.(catalog.ImageUnit)
	if isImage && popups != nil {
		pop := popups.Create(u.BaseID(), text, img.Width)
		containerID, popupID = pop.ContainerID, pop.ID
	}

	s.mu.Lock()
	if clip.Stopped() {
		s.mu.Unlock()
		if popupID != 0 {
			popups.Dismiss(popupID)
		}
		return
	}

	c, ok := s.containers[containerID]
	if !ok || popupID != 0 {
		c = &Container{
			ID:     containerID,
			UnitID: u.ID(),
			Key:    key,
			Words:  words,
			Spans:  WrapTextInSpans(words, text, BuildInventory(u.Node(), g)),
		}
		s.containers[containerID] = c
	}
	for id, other := range s.containers {
		if id != containerID {
			other.Active = -1
		}
	}
	c.Active = spanOf(c.Spans, 0)
	s.current = containerID
	s.gen = clip.Generation()
	s.popupID = popupID
	fns := s.onChange
	s.mu.Unlock()
	notify(fns)

	gen := clip.Generation()
	clip.OnTimeUpdate(func(t float64) {
		s.tick(clip, gen, containerID, t)
	})
	clip.OnEnded(func() {
		s.ended(gen, popupID)
	})
}

// unitText returns the words shown while u plays. An image is read from
// its resolved id, which may be its aria description rather than the alt
// text.
func unitText(u catalog.Unit, tr content.Translations) string {
	switch v := u.(type) {
	case catalog.ImageUnit:
		id := u.ID()
		if s, ok := tr.Text(content.StandardID(id), content.IsEasyReadID(id)); ok {
			return s
		}
		return v.Alt
	case catalog.InputUnit:
		p, _ := v.Node().Attr("placeholder")
		return p
	}
	return u.Node().Text()
}

func (s *Synchronizer) tick(clip *audio.Clip, gen uint64, containerID string, t float64) {
	s.mu.Lock()
	if s.gen != gen || s.current != containerID || clip.Stopped() {
		s.mu.Unlock()
		return
	}
	changed := s.updateLocked(containerID, t)
	fns := s.onChange
	s.mu.Unlock()
	if changed {
		notify(fns)
	}
}

func (s *Synchronizer) ended(gen, popupID uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	popups := s.popups
	fns := s.onChange
	s.mu.Unlock()

	if popupID != 0 && popups != nil {
		popups.Dismiss(popupID)
	}
	notify(fns)
}

// UpdateWordHighlighting lights the span active at time t, in seconds,
// in containerID and clears the rest of that container.
func (s *Synchronizer) UpdateWordHighlighting(containerID string, t float64) {
	s.mu.Lock()
	changed := s.updateLocked(containerID, t)
	fns := s.onChange
	s.mu.Unlock()
	if changed {
		notify(fns)
	}
}

func (s *Synchronizer) updateLocked(containerID string, t float64) bool {
	c, ok := s.containers[containerID]
	if !ok {
		return false
	}
	next := spanOf(c.Spans, ActiveIndex(c.Words, t))
	if next == c.Active {
		return false
	}
	c.Active = next
	return true
}

// ClearAll removes every highlight and dismisses the caption popup.
// Stale handlers from the previous clip stop applying.
func (s *Synchronizer) ClearAll() {
	s.mu.Lock()
	s.clearLocked()
	s.gen = 0
	popupID := s.popupID
	s.popupID = 0
	popups := s.popups
	fns := s.onChange
	s.mu.Unlock()

	if popupID != 0 && popups != nil {
		popups.Dismiss(popupID)
	}
	notify(fns)
}

func (s *Synchronizer) clearLocked() {
	for _, c := range s.containers {
		c.Active = -1
	}
	s.current = ""
}

// Reset forgets every wrapped container. Call it when the page is
// rendered again, after a translation or mode change.
func (s *Synchronizer) Reset() {
	s.ClearAll()
	s.mu.Lock()
	s.containers = map[string]*Container{}
	s.mu.Unlock()
}

// Snapshot returns a copy of the state of containerID.
func (s *Synchronizer) Snapshot(containerID string) (Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[containerID]
	if !ok {
		return Container{}, false
	}
	out := *c
	out.Spans = append([]Span(nil), c.Spans...)
	return out, true
}

// Current returns the container highlighted for the live clip.
func (s *Synchronizer) Current() (Container, bool) {
	s.mu.Lock()
	id := s.current
	s.mu.Unlock()
	if id == "" {
		return Container{}, false
	}
	return s.Snapshot(id)
}

// Lit returns the IDs of containers with an active span. It never holds
// more than one entry.
func (s *Synchronizer) Lit() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, c := range s.containers {
		if c.Active >= 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ActivateGlossary handles activation of span in containerID. For a
// glossary span it stops playback, suppresses unit clicks for a moment
// and opens the definition, and reports the event as handled so it does
// not reach the unit.
func (s *Synchronizer) ActivateGlossary(containerID string, span int) bool {
	s.mu.Lock()
	c, ok := s.containers[containerID]
	if !ok || span < 0 || span >= len(c.Spans) || c.Spans[span].Glossary == nil {
		s.mu.Unlock()
		return false
	}
	term := c.Spans[span].Glossary.Term
	s.mu.Unlock()

	return s.ShowTerm(term)
}

// ShowTerm does what ActivateGlossary does for a term marked anywhere on
// the page.
func (s *Synchronizer) ShowTerm(term string) bool {
	s.mu.Lock()
	g, pb, defs := s.glossary, s.playback, s.definitions
	s.mu.Unlock()

	if pb != nil {
		pb.SuppressClicks()
		pb.Stop()
	}
	e, ok := g.Entry(term)
	if !ok {
		e, ok = g.Lookup(term)
	}
	if !ok {
		log.Debug("glossary term not found", "term", term)
		return true
	}
	if defs != nil {
		defs.ShowDefinition(e)
	}
	return true
}

func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
