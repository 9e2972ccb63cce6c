// Package glossary loads a textbook's glossary, marks glossary terms in
// page text and renders term definitions.
package glossary

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Entry is one glossary term.
type Entry struct {
	Term       string   `json:"-"`
	Definition string   `json:"definition"`
	Emoji      string   `json:"emoji"`
	Variations []string `json:"variations"`
}

// Glossary indexes entries by their normalized term and variations.
type Glossary struct {
	entries  map[string]*Entry // by term
	forms    map[string]*Entry // normalized term or variation
	maxWords int
}

// Parse decodes a term → entry map.
func Parse(data []byte) (*Glossary, error) {
	raw := map[string]Entry{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse glossary: %w", err)
	}
	return New(raw), nil
}

// New builds a glossary from entries keyed by term.
func New(entries map[string]Entry) *Glossary {
	g := &Glossary{
		entries: make(map[string]*Entry, len(entries)),
		forms:   make(map[string]*Entry),
	}
	for term, e := range entries {
		e := e
		e.Term = term
		g.entries[term] = &e
		g.addForm(term, &e)
		for _, v := range e.Variations {
			g.addForm(v, &e)
		}
	}
	return g
}

func (g *Glossary) addForm(s string, e *Entry) {
	n := Normalize(s)
	if n == "" {
		return
	}
	if _, taken := g.forms[n]; !taken {
		g.forms[n] = e
	}
	if w := len(strings.Fields(n)); w > g.maxWords {
		g.maxWords = w
	}
}

// Len returns the number of terms.
func (g *Glossary) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Lookup finds the entry whose term or variation matches s after
// normalization.
func (g *Glossary) Lookup(s string) (*Entry, bool) {
	if g == nil {
		return nil, false
	}
	e, ok := g.forms[Normalize(s)]
	return e, ok
}

// Forms returns every normalized term and variation.
func (g *Glossary) Forms() []string {
	if g == nil {
		return nil
	}
	out := make([]string, 0, len(g.forms))
	for f := range g.forms {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Terms returns the terms in alphabetical order.
func (g *Glossary) Terms() []string {
	if g == nil {
		return nil
	}
	out := make([]string, 0, len(g.entries))
	for t := range g.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Entry returns the entry for an exact term.
func (g *Glossary) Entry(term string) (*Entry, bool) {
	if g == nil {
		return nil, false
	}
	e, ok := g.entries[term]
	return e, ok
}

// Search fuzzy-matches query against the terms, best match first.
func (g *Glossary) Search(query string) []*Entry {
	terms := g.Terms()
	if query == "" {
		out := make([]*Entry, 0, len(terms))
		for _, t := range terms {
			out = append(out, g.entries[t])
		}
		return out
	}
	matches := fuzzy.Find(query, terms)
	out := make([]*Entry, 0, len(matches))
	for _, m := range matches {
		out = append(out, g.entries[m.Str])
	}
	return out
}

// Normalize case-folds s, strips punctuation and collapses whitespace.
func Normalize(s string) string {
	s, _, err := transform.String(transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.P))), s)
	if err != nil {
		return ""
	}
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
