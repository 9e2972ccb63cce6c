package ui

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/readalong/internal/catalog"
	"github.com/dgnsrekt/readalong/internal/highlight"
	"github.com/dgnsrekt/readalong/internal/page"
	"github.com/dgnsrekt/readalong/internal/popup"
)

const gutterWidth = 2

var blockTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "li": true, "dt": true, "dd": true, "blockquote": true,
	"figcaption": true, "td": true, "th": true, "pre": true,
	"img": true, "input": true, "textarea": true,
}

// highlights returns the highlighting state of a text container.
type highlights interface {
	Snapshot(containerID string) (highlight.Container, bool)
}

// block is one rendered paragraph-like element of the page.
type block struct {
	node   page.Node
	unit   int    // Catalog index of the unit it reads, -1 when silent
	anchor string // Popup anchor for images
	top    int    // First line in the rendered page
	height int
}

// pageView is a page laid out for the terminal.
type pageView struct {
	content string
	blocks  []block
}

// blockAt returns the block covering line.
func (v pageView) blockAt(line int) (block, bool) {
	for _, b := range v.blocks {
		if line >= b.top && line < b.top+b.height {
			return b, true
		}
	}
	return block{}, false
}

// blockOf returns the block reading unit i.
func (v pageView) blockOf(i int) (block, bool) {
	for _, b := range v.blocks {
		if b.unit == i {
			return b, true
		}
	}
	return block{}, false
}

// anchors returns where the image blocks sit on screen when the page is
// scrolled to yOffset and the viewport is height rows tall.
func (v pageView) anchors(width, height, yOffset int) map[string]popup.Rect {
	out := map[string]popup.Rect{}
	for _, b := range v.blocks {
		if b.anchor == "" {
			continue
		}
		r := popup.Rect{X: gutterWidth, Y: b.top - yOffset, Width: max(1, width-gutterWidth), Height: b.height}
		if r.Y+r.Height <= 0 || r.Y >= height {
			continue
		}
		out[b.anchor] = r
	}
	return out
}

// layoutPage renders the main content of doc as wrapped blocks. The unit
// at current is marked in the gutter and lit words come from hl.
func layoutPage(doc *page.Document, cat *catalog.Catalog, hl highlights, current, width int) pageView {
	var v pageView
	if doc == nil {
		return v
	}
	wrapAt := max(10, width-gutterWidth)

	var lines []string
	doc.Main().Walk(func(n page.Node) bool {
		if page.IsNavigation(n) {
			return false
		}
		unit := cat.IndexOfNode(n)
		if !blockTags[n.Tag()] && unit < 0 {
			return true
		}
		if unit < 0 {
			unit = firstUnitIn(cat, n)
		}

		text, ok := blockText(n, cat, unit, hl)
		if !ok {
			return false
		}

		gutter := strings.Repeat(" ", gutterWidth)
		if unit >= 0 && unit == current {
			gutter = cursorStyle.Render("▌") + strings.Repeat(" ", gutterWidth-1)
		}
		wrapped := strings.Split(wordwrap.String(text, wrapAt), "\n")

		if len(lines) > 0 {
			lines = append(lines, "")
		}
		b := block{node: n, unit: unit, top: len(lines), height: len(wrapped)}
		if n.IsImage() {
			b.anchor = n.ID()
		}
		for _, l := range wrapped {
			lines = append(lines, gutter+l)
		}
		v.blocks = append(v.blocks, b)
		return false
	})
	v.content = strings.Join(lines, "\n")
	return v
}

// firstUnitIn returns the first unit inside n, or -1.
func firstUnitIn(cat *catalog.Catalog, n page.Node) int {
	for i, u := range cat.Units() {
		if n.Contains(u.Node()) {
			return i
		}
	}
	return -1
}

// blockText styles the text of n. It reports false for blocks with
// nothing to show.
func blockText(n page.Node, cat *catalog.Catalog, unit int, hl highlights) (string, bool) {
	switch {
	case n.IsImage():
		alt, _ := n.Attr("alt")
		if alt == "" {
			alt = "image"
		}
		return imageStyle.Render("▣ " + alt), true
	case n.IsInput():
		p, _ := n.Attr("placeholder")
		if p == "" {
			p = "…"
		}
		return inputStyle.Render(p), true
	}

	text := strings.Join(strings.Fields(n.Text()), " ")
	if text == "" {
		return "", false
	}
	if u, ok := cat.At(unit); ok && u.Node().Same(n) && hl != nil {
		if c, ok := hl.Snapshot(u.BaseID()); ok && c.Active >= 0 {
			text = highlight.Render(c)
		}
	}
	if n.IsHeading() {
		return headingStyle.Render(text), true
	}
	return text, true
}
