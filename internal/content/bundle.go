// Package content loads textbook bundles: the manifest, pages and the
// per-language translation, audio, timecode and glossary resources.
package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"

	"github.com/dgnsrekt/readalong/internal/cache"
	"github.com/dgnsrekt/readalong/internal/glossary"
	"github.com/dgnsrekt/readalong/internal/page"
)

// ErrNoPages is returned when a bundle has no readable pages.
var ErrNoPages = errors.New("bundle has no pages")

var pageExtensions = []string{"*.html", "*.htm", "*.md", "*.markdown"}

// Bundle is an opened textbook.
type Bundle struct {
	Manifest Manifest

	src   Source
	pages []string

	mu        sync.Mutex
	languages map[string]*Language
}

// Language holds every resource of one language.
type Language struct {
	Code         string
	Translations Translations
	Audio        *AudioIndex
	Timecodes    Timecodes
	Glossary     *glossary.Glossary
}

// Open opens the bundle at loc, a directory or an http(s) URL. Remote
// resources go through c when it is not nil.
func Open(ctx context.Context, loc string, c *cache.Manager) (*Bundle, error) {
	var src Source
	if IsRemote(loc) {
		s, err := NewHTTPSource(loc, HTTPConfig{Cache: c})
		if err != nil {
			return nil, err
		}
		src = s
	} else {
		src = DirSource{Root: loc}
	}
	return OpenSource(ctx, src)
}

// OpenSource opens a bundle from an arbitrary source.
func OpenSource(ctx context.Context, src Source) (*Bundle, error) {
	var m Manifest
	data, err := src.Read(ctx, ManifestFile)
	switch {
	case err == nil:
		if m, err = ParseManifest(data); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		log.Debug("no manifest, using defaults", "location", src.Location())
		m.setDefaults()
	default:
		return nil, fmt.Errorf("unable to read manifest: %w", err)
	}

	b := &Bundle{
		Manifest:  m,
		src:       src,
		pages:     m.Pages,
		languages: make(map[string]*Language),
	}

	if len(b.pages) == 0 {
		if dir, ok := src.(DirSource); ok {
			b.pages, err = discoverPages(dir.Root, m)
			if err != nil {
				return nil, err
			}
		}
	}
	if len(b.pages) == 0 {
		return nil, ErrNoPages
	}
	if b.Manifest.Title == "" {
		b.Manifest.Title = path.Base(strings.TrimSuffix(src.Location(), "/"))
	}
	return b, nil
}

// discoverPages finds page files below root, skipping the resource
// directories.
func discoverPages(root string, m Manifest) ([]string, error) {
	ignore := []string{m.AudioDir + "/", m.I18nDir + "/", "node_modules/"}
	ch, err := gitcha.FindFilesExcept(root, pageExtensions, ignore)
	if err != nil {
		return nil, fmt.Errorf("unable to search for pages: %w", err)
	}
	var pages []string
	for res := range ch {
		rel, err := filepath.Rel(root, res.Path)
		if err != nil {
			continue
		}
		pages = append(pages, filepath.ToSlash(rel))
	}
	sort.Strings(pages)
	return pages, nil
}

// Location returns where the bundle was opened from.
func (b *Bundle) Location() string { return b.src.Location() }

// Pages returns the page names in reading order.
func (b *Bundle) Pages() []string { return b.pages }

// Page loads and parses page i.
func (b *Bundle) Page(ctx context.Context, i int) (*page.Document, error) {
	if i < 0 || i >= len(b.pages) {
		return nil, fmt.Errorf("page %d out of range [0, %d)", i, len(b.pages))
	}
	name := b.pages[i]
	data, err := b.src.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("unable to read page %s: %w", name, err)
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		return page.ParseMarkdown(data)
	default:
		return page.ParseString(string(data))
	}
}

// ReadAudio reads the clip at src, as returned by AudioIndex.Src.
func (b *Bundle) ReadAudio(ctx context.Context, src string) ([]byte, error) {
	return b.src.Read(ctx, src)
}

// Language loads (once) and returns the resources of lang. Missing
// optional files (glossary, timecodes) yield empty values.
func (b *Bundle) Language(ctx context.Context, lang string) (*Language, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.languages[lang]; ok {
		return l, nil
	}
	if !b.Manifest.HasLanguage(lang) {
		return nil, fmt.Errorf("language %q not offered by this book", lang)
	}

	dir := path.Join(b.Manifest.I18nDir, lang)
	l := &Language{Code: lang}

	data, err := b.src.Read(ctx, path.Join(dir, "translations.json"))
	switch {
	case err == nil:
		if l.Translations, err = ParseTranslations(data); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		l.Translations = Translations{}
	default:
		return nil, err
	}

	data, err = b.src.Read(ctx, path.Join(dir, "audio.json"))
	if err != nil {
		return nil, fmt.Errorf("unable to read audio index: %w", err)
	}
	if l.Audio, err = ParseAudioIndex(data, b.Manifest.AudioDir, lang); err != nil {
		return nil, err
	}

	switch b.Manifest.Timecodes {
	case TimecodesLazy:
		l.Timecodes = NewLazyTimecodes(b.src, path.Join(dir, "timecodes"))
	default:
		data, err = b.src.Read(ctx, path.Join(dir, "timecodes.json"))
		switch {
		case err == nil:
			if l.Timecodes, err = ParseBulkTimecodes(data); err != nil {
				return nil, err
			}
		case errors.Is(err, ErrNotFound):
			log.Warn("no timecodes for language", "lang", lang)
			l.Timecodes = BulkTimecodes{}
		default:
			return nil, err
		}
	}

	data, err = b.src.Read(ctx, path.Join(dir, "glossary.json"))
	switch {
	case err == nil:
		if l.Glossary, err = glossary.Parse(data); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		l.Glossary = glossary.New(nil)
	default:
		return nil, err
	}

	b.languages[lang] = l
	return l, nil
}

// Forget drops cached language resources so the next Language call
// reloads them.
func (b *Bundle) Forget() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.languages = make(map[string]*Language)
}
