package glossary

import (
	"strings"
	"testing"

	"github.com/dgnsrekt/readalong/internal/page"
)

const sampleGlossary = `{
  "bosque tropical": {"definition": "A warm, wet forest.", "emoji": "🌴", "variations": ["bosques tropicales"]},
  "sunlight": {"definition": "Light from the sun.", "emoji": "☀️"}
}`

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Sunlight.", "sunlight"},
		{"  Bosque   Tropical!  ", "bosque tropical"},
		{"¿Qué?", "qué"},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	g, err := Parse([]byte(sampleGlossary))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("Len = %d, want 2", g.Len())
	}
	e, ok := g.Lookup("Bosques tropicales,")
	if !ok || e.Term != "bosque tropical" {
		t.Errorf("variation lookup failed: %v %v", e, ok)
	}
	if g.MaxWords() != 2 {
		t.Errorf("MaxWords = %d, want 2", g.MaxWords())
	}
}

func TestMatchRunsLongestFirst(t *testing.T) {
	forms := map[string]bool{"bosque": true, "bosque tropical": true}
	tokens := []string{"el", "bosque", "tropical", "es", "grande"}
	runs := MatchRuns(tokens, func(f string) bool { return forms[f] }, 2)
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].First != 1 || runs[0].Last != 2 {
		t.Errorf("run = %+v, want tokens 1..2", runs[0])
	}
}

func TestMark(t *testing.T) {
	g, err := Parse([]byte(sampleGlossary))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	doc, err := page.ParseString(`<body><main>
<p data-id="p1">El bosque tropical necesita sunlight.</p>
<p data-id="p2">Ya <span class="glossary-term" data-term="sunlight">sunlight</span></p>
<nav><p data-id="n1">sunlight</p></nav>
</main></body>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if n := g.Mark(doc.Main()); n != 2 {
		t.Errorf("Mark = %d, want 2", n)
	}

	terms := doc.FindByID("p1").GlossaryTerms()
	if len(terms) != 2 {
		t.Fatalf("expected 2 marked terms, got %d", len(terms))
	}
	if terms[0].Text() != "bosque tropical" {
		t.Errorf("first term text = %q", terms[0].Text())
	}
	if terms[1].Text() != "sunlight" {
		t.Errorf("trailing punctuation should stay outside the span, got %q", terms[1].Text())
	}
	if got := doc.FindByID("p1").Text(); got != "El bosque tropical necesita sunlight." {
		t.Errorf("text changed: %q", got)
	}
	if len(doc.FindByID("n1").GlossaryTerms()) != 0 {
		t.Error("navigation text should not be marked")
	}
	if len(doc.FindByID("p2").GlossaryTerms()) != 1 {
		t.Error("existing markup should not be wrapped twice")
	}
}

func TestSearch(t *testing.T) {
	g, _ := Parse([]byte(sampleGlossary))
	res := g.Search("sun")
	if len(res) == 0 || res[0].Term != "sunlight" {
		t.Errorf("expected sunlight first, got %v", res)
	}
	if all := g.Search(""); len(all) != 2 {
		t.Errorf("empty query should list all terms, got %d", len(all))
	}
}

func TestRender(t *testing.T) {
	g, _ := Parse([]byte(sampleGlossary))
	e, _ := g.Entry("sunlight")
	out, err := Render(e, "notty", 40)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "Light from the sun.") {
		t.Errorf("definition missing from %q", out)
	}
}
