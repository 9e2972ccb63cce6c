package page

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attributes carrying unit identifiers.
const (
	AttrID            = "data-id"
	AttrPlaceholderID = "data-placeholder-id"
	AttrAriaID        = "data-aria-id"
	AttrTerm          = "data-term"
)

// GlossaryClass marks an inline glossary term.
const GlossaryClass = "glossary-term"

// Node is a handle onto an element of a Document. The zero Node is not
// attached to any element.
type Node struct {
	h *html.Node
}

// IsZero reports whether n refers to no element.
func (n Node) IsZero() bool { return n.h == nil }

// Same reports whether both handles refer to the same element.
func (n Node) Same(o Node) bool { return n.h != nil && n.h == o.h }

// Tag returns the lower-case tag name.
func (n Node) Tag() string {
	if n.h == nil {
		return ""
	}
	return n.h.Data
}

// Attr returns the value of the named attribute.
func (n Node) Attr(name string) (string, bool) {
	if n.h == nil {
		return "", false
	}
	for _, a := range n.h.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func (n Node) SetAttr(name, val string) {
	if n.h == nil {
		return
	}
	for i, a := range n.h.Attr {
		if a.Key == name {
			n.h.Attr[i].Val = val
			return
		}
	}
	n.h.Attr = append(n.h.Attr, html.Attribute{Key: name, Val: val})
}

func (n Node) attr(name string) string {
	v, _ := n.Attr(name)
	return v
}

// ID returns the data-id attribute.
func (n Node) ID() string { return n.attr(AttrID) }

// PlaceholderID returns the data-placeholder-id attribute.
func (n Node) PlaceholderID() string { return n.attr(AttrPlaceholderID) }

// AriaID returns the data-aria-id attribute.
func (n Node) AriaID() string { return n.attr(AttrAriaID) }

// ElementID returns the html id attribute.
func (n Node) ElementID() string { return n.attr("id") }

// Classes returns the class list.
func (n Node) Classes() []string {
	return strings.Fields(n.attr("class"))
}

// HasClass reports whether the class list contains c.
func (n Node) HasClass(c string) bool {
	for _, cl := range n.Classes() {
		if cl == c {
			return true
		}
	}
	return false
}

// IsHeading reports whether n is an h1-h6 element.
func (n Node) IsHeading() bool {
	if n.h == nil {
		return false
	}
	switch n.h.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// IsInput reports whether n is a text entry field.
func (n Node) IsInput() bool {
	return n.h != nil && (n.h.DataAtom == atom.Input || n.h.DataAtom == atom.Textarea)
}

// IsImage reports whether n is an image.
func (n Node) IsImage() bool {
	return n.h != nil && n.h.DataAtom == atom.Img
}

// Parent returns the enclosing element.
func (n Node) Parent() Node {
	if n.h == nil {
		return Node{}
	}
	for p := n.h.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return Node{p}
		}
	}
	return Node{}
}

// Closest returns the nearest ancestor (excluding n) matching fn.
func (n Node) Closest(fn func(Node) bool) Node {
	for p := n.Parent(); !p.IsZero(); p = p.Parent() {
		if fn(p) {
			return p
		}
	}
	return Node{}
}

// Contains reports whether o is n or a descendant of n.
func (n Node) Contains(o Node) bool {
	if n.h == nil || o.h == nil {
		return false
	}
	for p := o.h; p != nil; p = p.Parent {
		if p == n.h {
			return true
		}
	}
	return false
}

// Children returns the child elements.
func (n Node) Children() []Node {
	if n.h == nil {
		return nil
	}
	var out []Node
	for c := n.h.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, Node{c})
		}
	}
	return out
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the subtree of the visited element.
func (n Node) Walk(fn func(Node) bool) {
	if n.h == nil {
		return
	}
	var visit func(*html.Node)
	visit = func(h *html.Node) {
		if h.Type == html.ElementNode && !fn(Node{h}) {
			return
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n.h)
}

// Find returns descendants of n (excluding n) matching fn.
func (n Node) Find(fn func(Node) bool) []Node {
	var out []Node
	n.Walk(func(c Node) bool {
		if !c.Same(n) && fn(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Text returns the concatenated text content with whitespace collapsed.
func (n Node) Text() string {
	if n.h == nil {
		return ""
	}
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(h *html.Node) {
		if h.Type == html.TextNode {
			sb.WriteString(h.Data)
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n.h)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// SetText replaces every child of n with a single text node.
func (n Node) SetText(s string) {
	if n.h == nil {
		return
	}
	for c := n.h.FirstChild; c != nil; {
		next := c.NextSibling
		n.h.RemoveChild(c)
		c = next
	}
	n.h.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

// AppendElement adds a child element with the given attributes and text.
func (n Node) AppendElement(tag string, attrs map[string]string, text string) Node {
	if n.h == nil {
		return Node{}
	}
	child := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for k, v := range attrs {
		child.Attr = append(child.Attr, html.Attribute{Key: k, Val: v})
	}
	if text != "" {
		child.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	n.h.AppendChild(child)
	return Node{child}
}

// GlossaryTerms returns the inline glossary markup inside n.
func (n Node) GlossaryTerms() []Node {
	return n.Find(func(c Node) bool { return c.HasClass(GlossaryClass) })
}
