package highlight

import (
	"strings"

	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/glossary"
	"github.com/dgnsrekt/readalong/internal/page"
)

// Tolerance is the slack, in seconds, used when mapping audio time to
// the active word.
const Tolerance = 0.2

// Guards the tolerance comparisons against float rounding.
const epsilon = 1e-9

// GlossaryAttrs are the visual attributes of a glossary span.
type GlossaryAttrs struct {
	Term     string   // Glossary term (data-term)
	Classes  []string // Class list of the original markup
	Role     string
	TabIndex string
	Display  string // Display text of the original markup
}

// Span is one rendered word, or one merged run of words forming a
// glossary term.
type Span struct {
	First, Last int    // Word indices covered, inclusive
	Text        string // Display text
	Glossary    *GlossaryAttrs
}

// Inventory maps normalized glossary forms to their attributes.
type Inventory map[string]GlossaryAttrs

// maxWords is the word count of the longest form.
func (inv Inventory) maxWords() int {
	n := 0
	for form := range inv {
		n = max(n, len(strings.Fields(form)))
	}
	return n
}

// BuildInventory collects the glossary markup already present in
// container, then adds every form of g that the markup does not cover.
func BuildInventory(container page.Node, g *glossary.Glossary) Inventory {
	inv := Inventory{}
	for _, n := range container.GlossaryTerms() {
		text := n.Text()
		form := glossary.Normalize(text)
		if form == "" {
			continue
		}
		term, _ := n.Attr(page.AttrTerm)
		if term == "" {
			term = text
		}
		role, _ := n.Attr("role")
		tab, _ := n.Attr("tabindex")
		inv[form] = GlossaryAttrs{
			Term:     term,
			Classes:  n.Classes(),
			Role:     role,
			TabIndex: tab,
			Display:  text,
		}
	}
	for _, form := range g.Forms() {
		if _, ok := inv[form]; ok {
			continue
		}
		e, _ := g.Lookup(form)
		inv[form] = GlossaryAttrs{
			Term:     e.Term,
			Classes:  []string{page.GlossaryClass},
			Role:     "button",
			TabIndex: "0",
			Display:  e.Term,
		}
	}
	return inv
}

// WrapTextInSpans splits a unit into spans, one per timestamped word,
// merging runs that form a glossary term. text is the displayed text;
// its tokens are used for display when they line up one to one with the
// timestamps, otherwise the timestamp tokens are shown.
func WrapTextInSpans(words []content.WordTimestamp, text string, inv Inventory) []Span {
	if len(words) == 0 {
		return nil
	}

	display := strings.Fields(text)
	if len(display) != len(words) {
		display = make([]string, len(words))
		for i, w := range words {
			display[i] = w.Text
		}
	}

	norms := make([]string, len(words))
	for i, w := range words {
		norms[i] = glossary.Normalize(w.Text)
	}

	runs := map[int]glossary.Run{}
	if len(inv) > 0 {
		has := func(form string) bool {
			_, ok := inv[form]
			return ok
		}
		for _, r := range glossary.MatchRuns(norms, has, inv.maxWords()) {
			runs[r.First] = r
		}
	}

	spans := make([]Span, 0, len(words))
	for i := 0; i < len(words); {
		if r, ok := runs[i]; ok {
			attrs := inv[r.Form]
			spans = append(spans, Span{
				First:    r.First,
				Last:     r.Last,
				Text:     strings.Join(display[r.First:r.Last+1], " "),
				Glossary: &attrs,
			})
			i = r.Last + 1
			continue
		}
		spans = append(spans, Span{First: i, Last: i, Text: display[i]})
		i++
	}
	return spans
}

// ActiveIndex returns the index of the word to highlight at time t, in
// seconds, or -1 when none should be lit.
func ActiveIndex(words []content.WordTimestamp, t float64) int {
	if len(words) == 0 {
		return -1
	}
	if t > words[len(words)-1].End+Tolerance+epsilon {
		return -1
	}
	if t < words[0].Start {
		return 0
	}

	active := 0
	for i, w := range words {
		if w.Start > t {
			break
		}
		active = i
	}

	if next := active + 1; next < len(words) {
		// Light short words early rather than never.
		if words[next].Start-t < Tolerance-epsilon {
			return next
		}
		if t > words[active].End+Tolerance+epsilon && t < words[next].Start-Tolerance-epsilon {
			return -1
		}
	}
	return active
}

// spanOf returns the span covering word i, or -1.
func spanOf(spans []Span, i int) int {
	if i < 0 {
		return -1
	}
	for k, s := range spans {
		if i >= s.First && i <= s.Last {
			return k
		}
	}
	return -1
}
