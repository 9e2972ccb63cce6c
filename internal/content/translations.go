package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgnsrekt/readalong/internal/page"
)

const (
	easyReadPrefix = "easyread-"
	eli5Prefix     = "eli5-"
)

// EasyReadID returns the easy-read variant key of id.
func EasyReadID(id string) string { return easyReadPrefix + id }

// IsEasyReadID reports whether id is an easy-read variant key.
func IsEasyReadID(id string) bool { return strings.HasPrefix(id, easyReadPrefix) }

// StandardID strips the easy-read prefix from id, if any.
func StandardID(id string) string { return strings.TrimPrefix(id, easyReadPrefix) }

// IsELI5ID reports whether id belongs to the "explain like I'm five"
// overlay, which is never read aloud by the page reader.
func IsELI5ID(id string) bool { return strings.HasPrefix(id, eli5Prefix) }

// Translations maps content identifiers (including easyread-<id>
// variants) to localized text.
type Translations map[string]string

// ParseTranslations decodes a translations file.
func ParseTranslations(data []byte) (Translations, error) {
	var t Translations
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unable to parse translations: %w", err)
	}
	return t, nil
}

// Text returns the text shown for id. In easy-read mode the easy-read
// variant wins when present.
func (t Translations) Text(id string, easyRead bool) (string, bool) {
	if easyRead {
		if s, ok := t[EasyReadID(id)]; ok {
			return s, true
		}
	}
	s, ok := t[id]
	return s, ok
}

// Apply writes localized text into doc: element text for data-id nodes,
// alt text for images and placeholders for data-placeholder-id inputs.
// Elements that keep their standard audio in easy-read mode keep their
// standard text too. It returns how many elements were updated.
func Apply(doc *page.Document, t Translations, easyRead bool) int {
	updated := 0
	for _, n := range doc.Elements(page.AttrID, page.AttrPlaceholderID) {
		er := easyRead && !page.KeepsStandardAudio(n)
		switch {
		case n.IsInput():
			id := n.PlaceholderID()
			if id == "" {
				id = n.ID()
			}
			if s, ok := t.Text(id, er); ok {
				n.SetAttr("placeholder", s)
				updated++
			}
		case n.IsImage():
			if s, ok := t.Text(n.ID(), er); ok {
				n.SetAttr("alt", s)
				updated++
			}
		default:
			id := n.ID()
			if id == "" {
				continue
			}
			// Containers of other units keep their structure.
			if len(n.Find(func(c page.Node) bool { return c.ID() != "" || c.PlaceholderID() != "" })) > 0 {
				continue
			}
			if s, ok := t.Text(id, er); ok {
				n.SetText(s)
				updated++
			}
		}
	}
	return updated
}
