package page

import (
	"sort"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Match is a byte range of a text node to wrap in a span.
type Match struct {
	Start, End int
	Attrs      map[string]string
}

// WrapText calls find for every text node below n and wraps each
// returned range in a <span> carrying the match attributes. Subtrees for
// which skip returns true are left alone. Ranges must be sorted and
// non-overlapping. It returns the number of spans created.
func (n Node) WrapText(find func(text string) []Match, skip func(Node) bool) int {
	if n.h == nil {
		return 0
	}
	var texts []*html.Node
	var collect func(*html.Node)
	collect = func(h *html.Node) {
		if h.Type == html.ElementNode && skip != nil && skip(Node{h}) {
			return
		}
		if h.Type == html.TextNode {
			texts = append(texts, h)
			return
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n.h)

	created := 0
	for _, t := range texts {
		matches := find(t.Data)
		if len(matches) == 0 {
			continue
		}
		parent, text, pos := t.Parent, t.Data, 0
		for _, m := range matches {
			if m.Start < pos || m.End > len(text) || m.Start >= m.End {
				continue
			}
			if m.Start > pos {
				parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text[pos:m.Start]}, t)
			}
			span := &html.Node{Type: html.ElementNode, Data: "span", DataAtom: atom.Span}
			keys := make([]string, 0, len(m.Attrs))
			for k := range m.Attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				span.Attr = append(span.Attr, html.Attribute{Key: k, Val: m.Attrs[k]})
			}
			span.AppendChild(&html.Node{Type: html.TextNode, Data: text[m.Start:m.End]})
			parent.InsertBefore(span, t)
			created++
			pos = m.End
		}
		if pos < len(text) {
			t.Data = text[pos:]
		} else {
			parent.RemoveChild(t)
		}
	}
	return created
}
