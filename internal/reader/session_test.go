package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/readalong/internal/audio"
	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/glossary"
	"github.com/dgnsrekt/readalong/internal/playback"
	"github.com/dgnsrekt/readalong/internal/popup"
	"github.com/dgnsrekt/readalong/internal/prefs"
	"github.com/dgnsrekt/readalong/internal/queue"
)

var plantsBundle = map[string]string{
	"book.yml": `title: Plants
languages: [en, es]
pages: [pages/01.html, pages/02.html]
`,
	"pages/01.html": `<html><body><main>
<h1 data-id="h1">Plants</h1>
<p data-id="p1">Plants grow in soil.</p>
<img data-id="img1" alt="A leaf">
</main></body></html>`,
	"pages/02.html": `<html><body><main>
<p data-id="p2">Roots drink water.</p>
</main></body></html>`,
	"i18n/en/audio.json":        `{"h1":"h1.mp3","p1":"p1.mp3","easyread-p1":"er-p1.mp3","img1":"img1.mp3","p2":"p2.mp3"}`,
	"i18n/en/translations.json": `{"easyread-p1":"Plants grow."}`,
	"i18n/en/glossary.json":     `{"soil":{"definition":"The top layer of earth."}}`,
	"i18n/en/timecodes.json": `{"p1":{"timecodes":{"0":{"word_timestamps":[
		{"text":"Plants","start":0,"end":0.3},
		{"text":"grow","start":0.3,"end":0.6},
		{"text":"in","start":0.6,"end":0.7},
		{"text":"soil.","start":0.7,"end":1.0}]}}}}`,
	"i18n/es/audio.json":        `{"h1":"h1.mp3","p1":"p1.mp3"}`,
	"i18n/es/translations.json": `{"h1":"Plantas","p1":"Las plantas crecen."}`,
}

func writeBundle(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

type fixture struct {
	bundle  *content.Bundle
	backend *audio.MockBackend
	prefs   *prefs.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	b, err := content.Open(ctx, writeBundle(t, plantsBundle), nil)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	st, err := prefs.Open(ctx, "")
	if err != nil {
		t.Fatalf("open prefs: %v", err)
	}
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return &fixture{bundle: b, backend: audio.NewMockBackend(0), prefs: st}
}

func (f *fixture) session(t *testing.T, opts Options) *Session {
	t.Helper()
	opts.Bundle = f.bundle
	opts.Backend = f.backend
	if opts.Prefs == nil {
		opts.Prefs = f.prefs
	}
	if opts.Playback == (playback.Config{}) {
		opts.Playback = playback.DefaultConfig()
	}
	if opts.Popup == (popup.Config{}) {
		opts.Popup = popup.DefaultConfig()
	}
	s, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func unitIDs(s *Session) []string {
	var ids []string
	for _, u := range s.Catalog().Units() {
		ids = append(ids, u.ID())
	}
	return ids
}

func equal(a, b []string) bool {
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

func TestNewRequiresBundleAndBackend(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Error("expected an error without bundle and backend")
	}
}

func TestNewFallsBackToDefaultLanguage(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, Options{Modes: prefs.Modes{Language: "fr"}})
	if got := s.Modes().Language; got != "en" {
		t.Errorf("Language = %q, want en", got)
	}
	if got := s.Modes().Speed; got != 1 {
		t.Errorf("Speed = %v, want 1", got)
	}
}

func TestOpenBuildsCatalog(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, Options{})

	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if s.Page() != 0 {
		t.Errorf("Page = %d, want 0", s.Page())
	}
	if ids := unitIDs(s); !equal(ids, []string{"h1", "p1", "img1"}) {
		t.Errorf("units = %v", ids)
	}
	u, _ := s.Catalog().At(1)
	if u.Source() != "audio/en/p1.mp3" {
		t.Errorf("Source = %q", u.Source())
	}
	if terms := s.GlossaryTerms(); !equal(terms, []string{"soil"}) {
		t.Errorf("GlossaryTerms = %v", terms)
	}
}

func TestPaging(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, Options{})
	if err := s.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.NextPage(); err != nil {
		t.Fatalf("NextPage: %v", err)
	}
	if ids := unitIDs(s); s.Page() != 1 || !equal(ids, []string{"p2"}) {
		t.Errorf("page %d units %v", s.Page(), ids)
	}
	if err := s.NextPage(); !errors.Is(err, ErrNoPage) {
		t.Errorf("expected ErrNoPage past the last page, got %v", err)
	}
	if s.Page() != 1 {
		t.Errorf("failed page change moved to %d", s.Page())
	}
	if err := s.PrevPage(); err != nil || s.Page() != 0 {
		t.Errorf("PrevPage: page %d, err %v", s.Page(), err)
	}
	if err := s.PrevPage(); !errors.Is(err, ErrNoPage) {
		t.Errorf("expected ErrNoPage before the first page, got %v", err)
	}
}

func TestOpenStopsPlayback(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, Options{})
	if err := s.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Sequencer().NotifyUserInteraction()
	s.Sequencer().PlayAudioSequentially()
	if !s.Sequencer().State().Playing {
		t.Fatal("expected playback to start")
	}

	if err := s.Open(1); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st := s.Sequencer().State(); st.Playing || st.Index != 0 {
		t.Errorf("state after page change = %+v", st)
	}
}

func TestSetEasyRead(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, Options{})
	if err := s.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.SetEasyRead(true); err != nil {
		t.Fatalf("SetEasyRead: %v", err)
	}
	if ids := unitIDs(s); !equal(ids, []string{"h1", "easyread-p1", "img1"}) {
		t.Errorf("easy-read units = %v", ids)
	}
	u, _ := s.Catalog().At(1)
	if got := u.Node().Text(); got != "Plants grow." {
		t.Errorf("easy-read text = %q", got)
	}

	saved, err := f.prefs.Modes(context.Background(), s.Book())
	if err != nil {
		t.Fatalf("Modes: %v", err)
	}
	if !saved.EasyRead {
		t.Error("easy-read mode was not saved")
	}

	if err := s.SetEasyRead(false); err != nil {
		t.Fatalf("SetEasyRead: %v", err)
	}
	u, _ = s.Catalog().At(1)
	if u.ID() != "p1" || u.Node().Text() != "Plants grow in soil." {
		t.Errorf("standard unit = %s %q", u.ID(), u.Node().Text())
	}
}

func TestSetLanguage(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, Options{})
	if err := s.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Sequencer().SetIndex(2)

	if err := s.SetLanguage("es"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	if ids := unitIDs(s); !equal(ids, []string{"h1", "p1"}) {
		t.Errorf("es units = %v", ids)
	}
	u, _ := s.Catalog().At(0)
	if u.Node().Text() != "Plantas" || u.Source() != "audio/es/h1.mp3" {
		t.Errorf("es heading = %q from %q", u.Node().Text(), u.Source())
	}
	if idx := s.Sequencer().State().Index; idx != 0 {
		t.Errorf("index beyond the new catalog was kept: %d", idx)
	}
	if s.Language().Code != "es" {
		t.Errorf("Language = %q", s.Language().Code)
	}

	if err := s.SetLanguage("fr"); err == nil {
		t.Error("expected an error for a language the book lacks")
	}
	if s.Modes().Language != "es" {
		t.Errorf("failed switch changed language to %q", s.Modes().Language)
	}

	if err := s.NextLanguage(); err != nil || s.Modes().Language != "en" {
		t.Errorf("NextLanguage: %q, %v", s.Modes().Language, err)
	}
}

func TestSpeed(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, Options{})

	if err := s.SpeedUp(); err != nil {
		t.Fatalf("SpeedUp: %v", err)
	}
	want := audio.NextSpeed(1)
	if got := s.Modes().Speed; got != want {
		t.Errorf("Speed = %v, want %v", got, want)
	}
	saved, _ := f.prefs.Modes(context.Background(), s.Book())
	if saved.Speed != want {
		t.Errorf("saved speed = %v, want %v", saved.Speed, want)
	}

	if err := s.SlowDown(); err != nil {
		t.Fatalf("SlowDown: %v", err)
	}
	if got := s.Modes().Speed; got != 1 {
		t.Errorf("Speed = %v, want 1", got)
	}
}

func TestToggles(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, Options{})

	var changes atomic.Int32
	s.OnChange(func() { changes.Add(1) })

	s.SetDescribeImages(true)
	s.SetAutoplay(true)

	m := s.Modes()
	if !m.DescribeImages || !m.Autoplay {
		t.Errorf("modes = %+v", m)
	}
	cfg := s.Sequencer().Config()
	if !cfg.DescribeImages || !cfg.Autoplay {
		t.Errorf("sequencer config = %+v", cfg)
	}
	if n := changes.Load(); n < 2 {
		t.Errorf("expected change notifications, got %d", n)
	}
}

func TestResume(t *testing.T) {
	f := newFixture(t)
	first := f.session(t, Options{})
	if err := first.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	first.Sequencer().SetIndex(2)

	second := f.session(t, Options{})
	if err := second.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if second.Page() != 0 || second.Sequencer().State().Index != 2 {
		t.Errorf("resumed at page %d index %d", second.Page(), second.Sequencer().State().Index)
	}

	if err := first.Open(1); err != nil {
		t.Fatalf("Open: %v", err)
	}
	third := f.session(t, Options{})
	if err := third.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if third.Page() != 1 || third.Sequencer().State().Index != 0 {
		t.Errorf("resumed at page %d index %d", third.Page(), third.Sequencer().State().Index)
	}
}

func TestShowDefinition(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, Options{})
	if err := s.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	var shown []string
	s.OnDefinition(func(e *glossary.Entry) { shown = append(shown, e.Term) })

	if !s.Synchronizer().ShowTerm("soil") {
		t.Fatal("ShowTerm returned false")
	}
	e, ok := s.Definition()
	if !ok || e.Term != "soil" {
		t.Fatalf("Definition = %+v, %v", e, ok)
	}
	if len(shown) != 1 || shown[0] != "soil" {
		t.Errorf("OnDefinition saw %v", shown)
	}
	s.CloseDefinition()
	if _, ok := s.Definition(); ok {
		t.Error("definition still shown after close")
	}
}

func TestPrefetchSkipsImagesWithoutDescriptions(t *testing.T) {
	f := newFixture(t)
	q := queue.NewAudioQueue(func(_ context.Context, src string) ([]byte, error) {
		return []byte(src), nil
	}, queue.DefaultConfig())
	t.Cleanup(func() { q.Close() }) //nolint:errcheck

	s := f.session(t, Options{Queue: q})
	if err := s.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Sequencer().SetIndex(1)

	deadline := time.Now().Add(2 * time.Second)
	for !q.Ready("audio/en/p1.mp3") {
		if time.Now().After(deadline) {
			t.Fatal("p1 was not prefetched")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if q.Ready("audio/en/img1.mp3") {
		t.Error("image audio prefetched while descriptions are off")
	}
}
