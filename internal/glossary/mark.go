package glossary

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgnsrekt/readalong/internal/page"
)

// Run is a sequence of consecutive tokens [First, Last] that together
// form one glossary form.
type Run struct {
	First, Last int
	Form        string
}

// MatchRuns scans normalized tokens left to right and, at each position,
// takes the longest run (up to maxWords tokens) that has reports as a
// known form. Tokens not covered by any run are omitted from the result.
func MatchRuns(tokens []string, has func(form string) bool, maxWords int) []Run {
	var runs []Run
	for i := 0; i < len(tokens); {
		matched := false
		for k := min(maxWords, len(tokens)-i); k >= 1; k-- {
			form := strings.Join(tokens[i:i+k], " ")
			if tokens[i] == "" || tokens[i+k-1] == "" || !has(form) {
				continue
			}
			runs = append(runs, Run{First: i, Last: i + k - 1, Form: form})
			i += k
			matched = true
			break
		}
		if !matched {
			i++
		}
	}
	return runs
}

// MaxWords returns the word count of the longest form.
func (g *Glossary) MaxWords() int {
	if g == nil {
		return 0
	}
	return g.maxWords
}

// Has reports whether form (already normalized) is a term or variation.
func (g *Glossary) Has(form string) bool {
	if g == nil {
		return false
	}
	_, ok := g.forms[form]
	return ok
}

type token struct {
	start, end int
}

func tokenize(s string) []token {
	var out []token
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, token{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, token{start, len(s)})
	}
	return out
}

func trimPunct(s string, start, end int) (int, int) {
	for start < end {
		r, n := utf8.DecodeRuneInString(s[start:end])
		if !unicode.IsPunct(r) {
			break
		}
		start += n
	}
	for end > start {
		r, n := utf8.DecodeLastRuneInString(s[start:end])
		if !unicode.IsPunct(r) {
			break
		}
		end -= n
	}
	return start, end
}

// Attrs returns the markup attributes of a glossary span for e.
func Attrs(e *Entry) map[string]string {
	return map[string]string{
		"class":       page.GlossaryClass,
		page.AttrTerm: e.Term,
		"role":        "button",
		"tabindex":    "0",
	}
}

// Mark wraps glossary terms found in the text below root with
// glossary-term spans. Existing glossary markup, navigation menus and
// form fields are left untouched. It returns how many terms were marked.
func (g *Glossary) Mark(root page.Node) int {
	if g.Len() == 0 {
		return 0
	}
	skip := func(n page.Node) bool {
		return n.HasClass(page.GlossaryClass) || page.IsNavigation(n) || n.IsInput()
	}
	return root.WrapText(func(text string) []page.Match {
		toks := tokenize(text)
		norms := make([]string, len(toks))
		for i, t := range toks {
			norms[i] = Normalize(text[t.start:t.end])
		}
		var out []page.Match
		for _, r := range MatchRuns(norms, g.Has, g.maxWords) {
			start, end := trimPunct(text, toks[r.First].start, toks[r.Last].end)
			if start >= end {
				continue
			}
			out = append(out, page.Match{Start: start, End: end, Attrs: Attrs(g.forms[r.Form])})
		}
		return out
	}, skip)
}
