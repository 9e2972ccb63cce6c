package page

import (
	"testing"
)

const samplePage = `<html><body>
<nav class="nav-menu"><a data-id="nav-1">Home</a></nav>
<main>
  <h1 data-id="title">Plants</h1>
  <p data-id="p1">Plants need <span class="glossary-term" data-term="sunlight">sunlight</span> to grow.</p>
  <img data-id="img1" data-aria-id="img1-aria" alt="A plant" width="300">
  <input data-placeholder-id="q1" placeholder="Answer">
</main>
</body></html>`

func TestMainRegion(t *testing.T) {
	doc, err := ParseString(samplePage)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	main := doc.Main()
	if main.Tag() != "main" {
		t.Fatalf("expected main element, got %q", main.Tag())
	}
	if doc.Title() != "Plants" {
		t.Errorf("expected title Plants, got %q", doc.Title())
	}
}

func TestMainRegionFallbacks(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{"content id", `<body><div id="content"><p>x</p></div></body>`, "div"},
		{"body", `<body><p>x</p></body>`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseString(tt.page)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := doc.Main().Tag(); got != tt.want {
				t.Errorf("Main() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNodeQueries(t *testing.T) {
	doc, err := ParseString(samplePage)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	nav := doc.FindByID("nav-1")
	if !InNavigation(nav) {
		t.Error("expected nav link to be inside navigation")
	}

	p := doc.FindByID("p1")
	if InNavigation(p) {
		t.Error("paragraph should not be inside navigation")
	}
	if got := p.Text(); got != "Plants need sunlight to grow." {
		t.Errorf("unexpected text %q", got)
	}
	terms := p.GlossaryTerms()
	if len(terms) != 1 || terms[0].attr(AttrTerm) != "sunlight" {
		t.Errorf("expected one glossary term, got %d", len(terms))
	}

	img := doc.FindByID("img1-aria")
	if !img.IsImage() || img.AriaID() != "img1-aria" {
		t.Error("expected lookup by aria id to find the image")
	}

	in := doc.FindByID("q1")
	if !in.IsInput() {
		t.Error("expected input element")
	}

	if !doc.FindByID("title").IsHeading() {
		t.Error("expected heading")
	}
}

func TestKeepsStandardAudio(t *testing.T) {
	doc, err := ParseString(`<main>
<h2 data-id="h2">Roots</h2>
<p data-id="p1">Roots drink water.</p>
<div class="word-card"><p data-id="w1">Root</p></div>
<ul class="activity-item"><li><span data-id="a1">Draw a root</span></li></ul>
<p class="activity-text" data-id="t1">Label it</p>
<div class="nav-list"><p data-id="n1">Next</p></div>
</main>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	tests := []struct {
		id   string
		want bool
	}{
		{"h2", true},
		{"p1", false},
		{"w1", true},
		{"a1", true},
		{"t1", true},
		{"n1", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := KeepsStandardAudio(doc.FindByID(tt.id)); got != tt.want {
				t.Errorf("KeepsStandardAudio(%s) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
	if KeepsStandardAudio(Node{}) {
		t.Error("zero node")
	}
}

func TestSetText(t *testing.T) {
	doc, err := ParseString(samplePage)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := doc.FindByID("p1")
	p.SetText("Las plantas crecen.")
	if got := p.Text(); got != "Las plantas crecen." {
		t.Errorf("unexpected text %q", got)
	}
	if len(p.GlossaryTerms()) != 0 {
		t.Error("expected markup to be replaced")
	}
}

func TestParseMarkdown(t *testing.T) {
	src := []byte("# Seeds {data-id=\"h1\"}\n\n<p data-id=\"p1\">Seeds sprout.</p>\n")
	doc, err := ParseMarkdown(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Main().Tag() != "main" {
		t.Errorf("expected markdown to be wrapped in main")
	}
	if h := doc.FindByID("h1"); !h.IsHeading() {
		t.Error("expected heading with attribute id")
	}
	if p := doc.FindByID("p1"); p.Text() != "Seeds sprout." {
		t.Errorf("unexpected paragraph text %q", p.Text())
	}
}
