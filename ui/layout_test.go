package ui

import (
	"strings"
	"testing"

	"github.com/muesli/reflow/ansi"

	"github.com/dgnsrekt/readalong/internal/catalog"
	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/highlight"
	"github.com/dgnsrekt/readalong/internal/page"
	"github.com/dgnsrekt/readalong/internal/popup"
)

const leafPage = `<main>
<nav><p data-id="menu">Menu</p></nav>
<h1 data-id="h1">Leaves</h1>
<p data-id="p1">Leaves make food from sunlight and water.</p>
<p>Silent aside.</p>
<img data-id="img1" alt="A green leaf">
<div><span data-id="s1">Inline unit</span></div>
</main>`

type fakeHighlights map[string]highlight.Container

func (f fakeHighlights) Snapshot(id string) (highlight.Container, bool) {
	c, ok := f[id]
	return c, ok
}

func buildLeaf(t *testing.T) (*page.Document, *catalog.Catalog) {
	t.Helper()
	doc, err := page.ParseString(leafPage)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	idx := content.NewAudioIndex(map[string]string{
		"menu": "menu.mp3",
		"h1":   "h1.mp3",
		"p1":   "p1.mp3",
		"img1": "img1.mp3",
		"s1":   "s1.mp3",
	}, "a")
	return doc, catalog.Build(doc, idx, false)
}

func TestLayoutPage(t *testing.T) {
	doc, cat := buildLeaf(t)
	v := layoutPage(doc, cat, nil, 1, 40)

	wantUnits := []int{0, 1, -1, 2, 3}
	if len(v.blocks) != len(wantUnits) {
		t.Fatalf("got %d blocks, want %d", len(v.blocks), len(wantUnits))
	}
	for i, b := range v.blocks {
		if b.unit != wantUnits[i] {
			t.Errorf("block %d reads unit %d, want %d", i, b.unit, wantUnits[i])
		}
	}
	if strings.Contains(v.content, "Menu") {
		t.Error("navigation was rendered")
	}
	if v.blocks[3].anchor != "img1" {
		t.Errorf("image anchor = %q", v.blocks[3].anchor)
	}

	lines := strings.Split(v.content, "\n")
	for _, l := range lines {
		if w := ansi.PrintableRuneWidth(l); w > 40 {
			t.Errorf("line wider than the page: %d %q", w, l)
		}
	}
	p1 := v.blocks[1]
	if !strings.Contains(lines[p1.top], "▌") {
		t.Errorf("current unit not marked: %q", lines[p1.top])
	}
	if strings.Contains(lines[v.blocks[0].top], "▌") {
		t.Error("other unit marked as current")
	}
	if p1.height < 2 {
		t.Errorf("expected the paragraph to wrap, height %d", p1.height)
	}

	if b, ok := v.blockAt(p1.top + 1); !ok || b.unit != 1 {
		t.Errorf("blockAt = %+v, %v", b, ok)
	}
	if _, ok := v.blockAt(p1.top + p1.height); ok {
		t.Error("blank line between blocks belongs to no block")
	}
	if b, ok := v.blockOf(3); !ok || b.unit != 3 {
		t.Errorf("blockOf(3) = %+v, %v", b, ok)
	}
}

func TestLayoutPageHighlight(t *testing.T) {
	doc, cat := buildLeaf(t)
	hl := fakeHighlights{"p1": {
		ID:     "p1",
		Spans:  []highlight.Span{{Text: "Leaves"}, {First: 1, Last: 1, Text: "make"}},
		Active: 1,
	}}
	v := layoutPage(doc, cat, hl, -1, 80)
	want := highlight.ActiveStyle.Render("make")
	if !strings.Contains(v.content, want) {
		t.Errorf("active word not styled in %q", v.content)
	}
}

func TestAnchors(t *testing.T) {
	doc, cat := buildLeaf(t)
	v := layoutPage(doc, cat, nil, -1, 40)
	img := v.blocks[3]

	got := v.anchors(40, 100, 0)
	want := popup.Rect{X: gutterWidth, Y: img.top, Width: 40 - gutterWidth, Height: img.height}
	if got["img1"] != want {
		t.Errorf("anchor = %+v, want %+v", got["img1"], want)
	}

	if got := v.anchors(40, 100, img.top+img.height); len(got) != 0 {
		t.Errorf("anchor scrolled off the top still reported: %+v", got)
	}
	if got := v.anchors(40, img.top, 0); len(got) != 0 {
		t.Errorf("anchor below the viewport still reported: %+v", got)
	}
}

func TestOverlay(t *testing.T) {
	base := "aaaaaaaa\nbbbbbbbb\ncccccccc"
	got := overlay(base, "XX\nYY", 3, 1)
	want := "aaaaaaaa\nbbbXX\ncccYY"
	if got != want {
		t.Errorf("overlay = %q, want %q", got, want)
	}

	got = overlay("ab", "Z", 4, 2)
	want = "ab\n\n    Z"
	if got != want {
		t.Errorf("overlay past the end = %q, want %q", got, want)
	}
}

func TestSameRects(t *testing.T) {
	a := map[string]popup.Rect{"x": {X: 1}}
	if !sameRects(a, map[string]popup.Rect{"x": {X: 1}}) {
		t.Error("equal maps reported different")
	}
	if sameRects(a, map[string]popup.Rect{"x": {X: 2}}) || sameRects(a, nil) {
		t.Error("different maps reported equal")
	}
}
