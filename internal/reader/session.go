// Package reader ties a textbook bundle to the read-aloud engine. A
// Session owns the page being read, the reading modes and the playback
// components, and keeps them consistent as the user switches pages,
// languages and modes.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readalong/internal/audio"
	"github.com/dgnsrekt/readalong/internal/catalog"
	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/glossary"
	"github.com/dgnsrekt/readalong/internal/highlight"
	"github.com/dgnsrekt/readalong/internal/page"
	"github.com/dgnsrekt/readalong/internal/playback"
	"github.com/dgnsrekt/readalong/internal/popup"
	"github.com/dgnsrekt/readalong/internal/prefs"
	"github.com/dgnsrekt/readalong/internal/queue"
)

// ErrNoPage is returned when paging past either end of the book.
var ErrNoPage = errors.New("no such page")

// Prefs stores reading modes and positions.
type Prefs interface {
	Modes(ctx context.Context, book string) (prefs.Modes, error)
	SaveModes(ctx context.Context, book string, m prefs.Modes) error
	Position(ctx context.Context, book string) (prefs.Position, bool, error)
	SavePosition(ctx context.Context, p prefs.Position) error
}

// Options configure a Session.
type Options struct {
	Bundle   *content.Bundle
	Backend  audio.Backend
	Queue    *queue.AudioQueue // Optional prefetcher for upcoming clips
	Prefs    Prefs             // Optional; modes and position are not kept without it
	Modes    prefs.Modes
	Playback playback.Config
	Popup    popup.Config
	Width    int
	Height   int
}

// Session is one reader over one bundle.
type Session struct {
	ctx    context.Context
	bundle *content.Bundle
	prefs  Prefs
	queue  *queue.AudioQueue
	book   string

	units  *catalog.Store
	seq    *playback.Sequencer
	sync   *highlight.Synchronizer
	screen *popup.Screen
	popups *popup.Presenter

	mu         sync.Mutex
	modes      prefs.Modes
	pageIdx    int
	doc        *page.Document
	lang       *content.Language
	definition *glossary.Entry
	onChange   []func()
	onDefine   []func(*glossary.Entry)
}

// New creates a session. No page is loaded until Open or Resume.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Bundle == nil || opts.Backend == nil {
		return nil, errors.New("reader needs a bundle and an audio backend")
	}

	m := opts.Modes
	if m.Speed == 0 {
		m.Speed = 1
	}
	if m.Language == "" || !opts.Bundle.Manifest.HasLanguage(m.Language) {
		if m.Language != "" {
			log.Warn("language not offered, using default", "lang", m.Language)
		}
		m.Language = opts.Bundle.Manifest.DefaultLanguage
	}

	cfg := opts.Playback
	cfg.Speed = m.Speed
	cfg.DescribeImages = m.DescribeImages
	cfg.Autoplay = m.Autoplay

	units := &catalog.Store{}
	seq, err := playback.NewSequencer(opts.Backend, units, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create sequencer: %w", err)
	}

	s := &Session{
		ctx:    ctx,
		bundle: opts.Bundle,
		prefs:  opts.Prefs,
		queue:  opts.Queue,
		book:   opts.Bundle.Location(),
		units:  units,
		seq:    seq,
		sync:   highlight.New(ctx, nil),
		screen: popup.NewScreen(opts.Width, opts.Height),
		modes:  m,
	}
	s.popups = popup.NewPresenter(s.screen, opts.Popup)

	s.sync.SetPopups(s.popups)
	s.sync.SetPlayback(seq)
	s.sync.SetDefinitions(s)
	seq.SetHighlighter(s.sync)
	seq.Subscribe(s.handleEvent)
	s.sync.OnChange(s.notify)
	s.popups.OnChange(s.notify)
	return s, nil
}

// OnChange registers fn to run whenever something visible changes. It
// may run on any goroutine.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Session) notify() {
	s.mu.Lock()
	fns := s.onChange
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Book returns the key modes and positions are saved under.
func (s *Session) Book() string { return s.book }

// Bundle returns the bundle being read.
func (s *Session) Bundle() *content.Bundle { return s.bundle }

// Sequencer returns the playback sequencer.
func (s *Session) Sequencer() *playback.Sequencer { return s.seq }

// Synchronizer returns the word highlighter.
func (s *Session) Synchronizer() *highlight.Synchronizer { return s.sync }

// Popups returns the caption popup presenter.
func (s *Session) Popups() *popup.Presenter { return s.popups }

// Screen returns the layout the front end keeps current.
func (s *Session) Screen() *popup.Screen { return s.screen }

// Catalog returns the units of the current page.
func (s *Session) Catalog() *catalog.Catalog { return s.units.Current() }

// Modes returns the current reading modes.
func (s *Session) Modes() prefs.Modes {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.modes
	m.Speed = s.seq.State().Speed
	return m
}

// Page returns the index of the current page.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageIdx
}

// Document returns the current page.
func (s *Session) Document() *page.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Language returns the resources of the active language.
func (s *Session) Language() *content.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Resume opens the page the reader last left this book on, or the first
// page.
func (s *Session) Resume() error {
	pos, ok := prefs.Position{}, false
	if s.prefs != nil {
		var err error
		pos, ok, err = s.prefs.Position(s.ctx, s.book)
		if err != nil {
			log.Warn("unable to load reading position", "error", err)
		}
	}
	idx := 0
	if ok {
		for i, name := range s.bundle.Pages() {
			if name == pos.Page {
				idx = i
				break
			}
		}
	}
	if err := s.Open(idx); err != nil {
		return err
	}
	if ok && pos.Index > 0 && pos.Index < s.units.Len() {
		s.seq.SetIndex(pos.Index)
	}
	return nil
}

// Open stops playback and loads page i. With autoplay on, reading
// starts once the user has interacted.
func (s *Session) Open(i int) error {
	if i < 0 || i >= len(s.bundle.Pages()) {
		return fmt.Errorf("%w: %d", ErrNoPage, i)
	}
	s.seq.Stop()
	if s.queue != nil {
		s.queue.Clear()
	}
	if err := s.load(i); err != nil {
		return err
	}
	s.seq.SetIndex(0)
	s.seq.Autoplay()
	return nil
}

// NextPage opens the following page.
func (s *Session) NextPage() error { return s.Open(s.Page() + 1) }

// PrevPage opens the preceding page.
func (s *Session) PrevPage() error { return s.Open(s.Page() - 1) }

// Reload renders the current page again, e.g. after it changed on disk.
// Playback is left alone; a shorter catalog ends it.
func (s *Session) Reload() error {
	s.bundle.Forget()
	return s.load(s.Page())
}

// load renders page i in the active language and mode: translations are
// applied, glossary terms marked and the catalog rebuilt.
func (s *Session) load(i int) error {
	s.mu.Lock()
	m := s.modes
	s.mu.Unlock()

	lang, err := s.bundle.Language(s.ctx, m.Language)
	if err != nil {
		return err
	}
	doc, err := s.bundle.Page(s.ctx, i)
	if err != nil {
		return err
	}

	n := content.Apply(doc, lang.Translations, m.EasyRead)
	terms := lang.Glossary.Mark(doc.Main())
	cat := catalog.Build(doc, lang.Audio, m.EasyRead)
	log.Debug("page rendered",
		"page", s.bundle.Pages()[i],
		"lang", m.Language,
		"easy_read", m.EasyRead,
		"translated", n,
		"glossary_terms", terms,
		"units", cat.Len(),
	)

	s.sync.SetGlossary(lang.Glossary)
	s.sync.SetTranslations(lang.Translations)
	s.sync.SetTimecodes(lang.Timecodes)

	s.mu.Lock()
	s.doc = doc
	s.lang = lang
	s.pageIdx = i
	s.mu.Unlock()

	s.units.Replace(cat)
	s.savePosition(s.seq.State().Index)
	s.notify()
	return nil
}

// SetLanguage switches the reading language. Playback stops since the
// clips change with it.
func (s *Session) SetLanguage(code string) error {
	if !s.bundle.Manifest.HasLanguage(code) {
		return fmt.Errorf("language %q not offered by this book", code)
	}
	s.seq.Stop()
	if s.queue != nil {
		s.queue.Clear()
	}

	s.mu.Lock()
	prev := s.modes.Language
	s.modes.Language = code
	s.mu.Unlock()

	if err := s.load(s.Page()); err != nil {
		s.mu.Lock()
		s.modes.Language = prev
		s.mu.Unlock()
		return err
	}
	if idx := s.seq.State().Index; idx >= s.units.Len() {
		s.seq.SetIndex(0)
	}
	s.saveModes()
	return nil
}

// NextLanguage cycles through the book's languages.
func (s *Session) NextLanguage() error {
	return s.SetLanguage(s.bundle.Manifest.NextLanguage(s.Modes().Language))
}

// SetEasyRead toggles easy-read text and audio. The page is rendered
// again; playback continues over the new catalog.
func (s *Session) SetEasyRead(on bool) error {
	s.mu.Lock()
	s.modes.EasyRead = on
	s.mu.Unlock()

	if err := s.load(s.Page()); err != nil {
		return err
	}
	s.saveModes()
	return nil
}

// SetDescribeImages toggles playing image descriptions.
func (s *Session) SetDescribeImages(on bool) {
	s.mu.Lock()
	s.modes.DescribeImages = on
	s.mu.Unlock()
	s.seq.SetDescribeImages(on)
	s.saveModes()
	s.notify()
}

// SetAutoplay toggles autoplay on page load.
func (s *Session) SetAutoplay(on bool) {
	s.mu.Lock()
	s.modes.Autoplay = on
	s.mu.Unlock()
	s.seq.SetAutoplay(on)
	s.saveModes()
	s.notify()
}

// SpeedUp moves to the next faster speed.
func (s *Session) SpeedUp() error {
	return s.setSpeed(audio.NextSpeed(s.seq.State().Speed))
}

// SlowDown moves to the next slower speed.
func (s *Session) SlowDown() error {
	return s.setSpeed(audio.PrevSpeed(s.seq.State().Speed))
}

func (s *Session) setSpeed(v float64) error {
	if err := s.seq.SetSpeed(v); err != nil {
		return err
	}
	s.mu.Lock()
	s.modes.Speed = v
	s.mu.Unlock()
	s.saveModes()
	s.notify()
	return nil
}

// OnDefinition registers fn to run each time a definition is shown.
func (s *Session) OnDefinition(fn func(*glossary.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDefine = append(s.onDefine, fn)
}

// ShowDefinition implements highlight.DefinitionPresenter.
func (s *Session) ShowDefinition(e *glossary.Entry) {
	s.mu.Lock()
	s.definition = e
	hooks := s.onDefine
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(e)
	}
	s.notify()
}

// Definition returns the glossary entry on display, if any.
func (s *Session) Definition() (*glossary.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.definition, s.definition != nil
}

// CloseDefinition hides the glossary entry.
func (s *Session) CloseDefinition() {
	s.mu.Lock()
	s.definition = nil
	s.mu.Unlock()
	s.notify()
}

// GlossaryTerms returns the terms marked on the current page in order.
func (s *Session) GlossaryTerms() []string {
	doc := s.Document()
	if doc == nil {
		return nil
	}
	var terms []string
	seen := map[string]bool{}
	for _, n := range doc.Main().GlossaryTerms() {
		term, _ := n.Attr(page.AttrTerm)
		if term == "" {
			term = n.Text()
		}
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	return terms
}

func (s *Session) handleEvent(ev playback.Event) {
	if ev.Type == playback.EventIndexChanged {
		s.savePosition(ev.State.Index)
		s.prefetch(ev.State.Index)
	}
	s.notify()
}

// prefetch asks the queue for the clips from index i on.
func (s *Session) prefetch(i int) {
	if s.queue == nil {
		return
	}
	cat := s.units.Current()
	describe := s.Modes().DescribeImages
	var srcs []string
	for k := max(i, 0); k < cat.Len(); k++ {
		u, _ := cat.At(k)
		if u.Kind() == catalog.KindImage && !describe {
			continue
		}
		srcs = append(srcs, u.Source())
	}
	s.queue.Prefetch(srcs)
}

func (s *Session) savePosition(index int) {
	if s.prefs == nil {
		return
	}
	pages := s.bundle.Pages()
	i := s.Page()
	if i >= len(pages) {
		return
	}
	p := prefs.Position{Book: s.book, Page: pages[i], Index: index}
	if err := s.prefs.SavePosition(s.ctx, p); err != nil {
		log.Warn("unable to save reading position", "error", err)
	}
}

func (s *Session) saveModes() {
	if s.prefs == nil {
		return
	}
	if err := s.prefs.SaveModes(s.ctx, s.book, s.Modes()); err != nil {
		log.Warn("unable to save reading modes", "error", err)
	}
}

// Close stops playback and drops the popup.
func (s *Session) Close() {
	s.seq.Shutdown()
	s.popups.Close()
}
