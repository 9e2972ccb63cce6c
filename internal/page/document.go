package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoBody is returned when a page has no body element.
var ErrNoBody = errors.New("page has no body")

// Document is a parsed page.
type Document struct {
	root *html.Node
	body Node
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse page: %w", err)
	}
	d := &Document{root: root}
	Node{root}.Walk(func(n Node) bool {
		if n.h.DataAtom == atom.Body {
			d.body = n
			return false
		}
		return true
	})
	if d.body.IsZero() {
		return nil, ErrNoBody
	}
	return d, nil
}

// ParseString is Parse for an in-memory page.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
		parser.WithAttribute(),
	),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// ParseMarkdown converts a markdown page to HTML and parses it. Raw HTML
// blocks are kept so pages can carry data-id attributes; headings also
// accept the {data-id=...} attribute syntax.
func ParseMarkdown(src []byte) (*Document, error) {
	var buf bytes.Buffer
	buf.WriteString("<html><body><main>")
	if err := md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("unable to render markdown: %w", err)
	}
	buf.WriteString("</main></body></html>")
	return Parse(&buf)
}

// Body returns the body element.
func (d *Document) Body() Node { return d.body }

// Main returns the main content region: the first <main>, else the
// element with id "content", else the body.
func (d *Document) Main() Node {
	var main, content Node
	d.body.Walk(func(n Node) bool {
		if main.IsZero() && n.h.DataAtom == atom.Main {
			main = n
		}
		if content.IsZero() && n.ElementID() == "content" {
			content = n
		}
		return main.IsZero()
	})
	switch {
	case !main.IsZero():
		return main
	case !content.IsZero():
		return content
	}
	return d.body
}

// Title returns the text of the first h1 in the page, if any.
func (d *Document) Title() string {
	var title string
	d.body.Walk(func(n Node) bool {
		if title == "" && n.h.DataAtom == atom.H1 {
			title = n.Text()
		}
		return title == ""
	})
	return title
}

// IsNavigation reports whether n is a navigation menu container.
func IsNavigation(n Node) bool {
	if n.IsZero() {
		return false
	}
	return n.h.DataAtom == atom.Nav || n.HasClass("nav-menu") || n.ElementID() == "navPopup"
}

// InNavigation reports whether n sits inside a navigation menu.
func InNavigation(n Node) bool {
	return IsNavigation(n) || !n.Closest(IsNavigation).IsZero()
}

// Containers whose units keep their standard text and audio in easy-read
// mode.
var standardContainers = []string{"word-card", "activity-item", "nav-list", "activity-text"}

// KeepsStandardAudio reports whether n is read from its standard variant
// even in easy-read mode: headings and anything inside a word card,
// activity item, nav list or activity text.
func KeepsStandardAudio(n Node) bool {
	if n.IsZero() {
		return false
	}
	if n.IsHeading() {
		return true
	}
	inside := func(p Node) bool {
		for _, cls := range standardContainers {
			if p.HasClass(cls) {
				return true
			}
		}
		return false
	}
	return inside(n) || !n.Closest(inside).IsZero()
}

// FindByID returns the first element whose data-id, data-placeholder-id
// or data-aria-id equals id.
func (d *Document) FindByID(id string) Node {
	var found Node
	d.body.Walk(func(n Node) bool {
		if !found.IsZero() {
			return false
		}
		if n.ID() == id || n.PlaceholderID() == id || n.AriaID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Elements returns every element carrying any of the given attributes,
// in document order.
func (d *Document) Elements(attrs ...string) []Node {
	var out []Node
	d.body.Walk(func(n Node) bool {
		for _, a := range attrs {
			if _, ok := n.Attr(a); ok {
				out = append(out, n)
				break
			}
		}
		return true
	})
	return out
}

// Render writes the document back out as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}
