package catalog

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/page"
)

// AudioLookup resolves identifiers to clip locations.
type AudioLookup interface {
	Src(id string) (string, bool)
}

// Catalog is an immutable, ordered snapshot of speakable units.
type Catalog struct {
	units []Unit
}

// Len returns the number of units.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.units)
}

// At returns unit i, or false when i is out of range.
func (c *Catalog) At(i int) (Unit, bool) {
	if c == nil || i < 0 || i >= len(c.units) {
		return nil, false
	}
	return c.units[i], true
}

// Units returns a copy of the unit list.
func (c *Catalog) Units() []Unit {
	if c == nil {
		return nil
	}
	return append([]Unit(nil), c.units...)
}

// IndexOf returns the position of the unit whose resolved or base id is
// id, or -1.
func (c *Catalog) IndexOf(id string) int {
	for i, u := range c.Units() {
		if u.ID() == id || u.BaseID() == id {
			return i
		}
	}
	return -1
}

// IndexOfNode returns the position of the unit bound to n, or -1.
func (c *Catalog) IndexOfNode(n page.Node) int {
	for i, u := range c.Units() {
		if u.Node().Same(n) {
			return i
		}
	}
	return -1
}

// Build selects the speakable units of doc. Candidates are elements in
// the main region carrying a data-id or data-placeholder-id, outside
// navigation menus and not ELI5 content. Candidates without audio are
// dropped. Building twice from the same document and modes yields the
// same sequence.
func Build(doc *page.Document, audio AudioLookup, easyRead bool) *Catalog {
	c := &Catalog{}
	doc.Main().Walk(func(n page.Node) bool {
		if page.IsNavigation(n) {
			return false
		}
		if u, ok := resolve(n, audio, easyRead); ok {
			c.units = append(c.units, u)
		}
		return true
	})
	return c
}

func resolve(n page.Node, audio AudioLookup, easyRead bool) (Unit, bool) {
	baseID := n.ID()
	placeholder := n.PlaceholderID()
	if baseID == "" && placeholder == "" {
		return nil, false
	}
	if content.IsELI5ID(baseID) || content.IsELI5ID(placeholder) {
		return nil, false
	}

	if n.IsInput() || (baseID == "" && placeholder != "") {
		id := placeholder
		if id == "" {
			id = baseID
		}
		src, ok := audio.Src(id)
		if !ok {
			log.Debug("dropping unit without audio", "id", id)
			return nil, false
		}
		return InputUnit{base{id: id, baseID: id, src: src, node: n}}, true
	}

	id := baseID
	if n.IsImage() {
		if aria := n.AriaID(); aria != "" {
			if _, ok := audio.Src(aria); ok {
				id = aria
			}
		}
	}
	if easyRead && !page.KeepsStandardAudio(n) {
		if _, ok := audio.Src(content.EasyReadID(id)); ok {
			id = content.EasyReadID(id)
		}
	}

	src, ok := audio.Src(id)
	if !ok {
		log.Debug("dropping unit without audio", "id", id)
		return nil, false
	}
	b := base{id: id, baseID: baseID, src: src, node: n}
	if n.IsImage() {
		return newImageUnit(b), true
	}
	return TextUnit{base: b, Heading: n.IsHeading()}, true
}

// Store holds the current catalog. Rebuilds replace it wholesale.
type Store struct {
	mu      sync.RWMutex
	current *Catalog
	version uint64
}

// Replace installs c as the current catalog. It does not touch playback.
func (s *Store) Replace(c *Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = c
	s.version++
}

// Current returns the current catalog, possibly nil.
func (s *Store) Current() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version increments on every Replace.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len is the length of the current catalog.
func (s *Store) Len() int { return s.Current().Len() }

// At returns unit i of the current catalog.
func (s *Store) At(i int) (Unit, bool) { return s.Current().At(i) }
