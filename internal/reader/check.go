package reader

import (
	"context"
	"fmt"

	"github.com/dgnsrekt/readalong/internal/catalog"
	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/page"
)

// IssueKind classifies a bundle problem.
type IssueKind string

const (
	// IssueNoAudio marks an element with an identifier but no clip; it is
	// never read aloud.
	IssueNoAudio IssueKind = "no-audio"
	// IssueNoTimecodes marks a unit that plays without word highlighting.
	IssueNoTimecodes IssueKind = "no-timecodes"
	// IssueEasyReadDesync marks a unit whose easy-read text is shown with
	// standard word timings, so the highlighted words may not match.
	IssueEasyReadDesync IssueKind = "easy-read-desync"
)

// Issue is one problem found by Check.
type Issue struct {
	Lang string
	Page string
	ID   string
	Kind IssueKind
}

// Report summarizes a bundle check.
type Report struct {
	Pages     int
	Languages int
	Units     int // Speakable units over every page and language
	Issues    []Issue
}

// Count returns how many issues of kind k were found.
func (r Report) Count(k IssueKind) int {
	n := 0
	for _, is := range r.Issues {
		if is.Kind == k {
			n++
		}
	}
	return n
}

// Check walks every page in every language and reports elements that
// will not be read, units without word timings and easy-read units that
// fall back to standard timings.
func Check(ctx context.Context, b *content.Bundle) (Report, error) {
	r := Report{Pages: len(b.Pages()), Languages: len(b.Manifest.Languages)}

	for _, code := range b.Manifest.Languages {
		lang, err := b.Language(ctx, code)
		if err != nil {
			return r, fmt.Errorf("language %s: %w", code, err)
		}
		for i, name := range b.Pages() {
			doc, err := b.Page(ctx, i)
			if err != nil {
				return r, err
			}
			content.Apply(doc, lang.Translations, false)
			cat := catalog.Build(doc, lang.Audio, false)
			r.Units += cat.Len()

			issue := func(id string, k IssueKind) {
				r.Issues = append(r.Issues, Issue{Lang: code, Page: name, ID: id, Kind: k})
			}

			for _, n := range candidates(doc) {
				if cat.IndexOfNode(n) < 0 {
					id := n.ID()
					if id == "" {
						id = n.PlaceholderID()
					}
					issue(id, IssueNoAudio)
				}
			}

			for _, u := range cat.Units() {
				if words, ok := lang.Timecodes.Words(ctx, u.ID()); !ok || len(words) == 0 {
					issue(u.ID(), IssueNoTimecodes)
				}
			}

			// Units that play easy-read audio but highlight from the
			// standard timings.
			for _, u := range catalog.Build(doc, lang.Audio, true).Units() {
				if !content.IsEasyReadID(u.ID()) {
					continue
				}
				if words, ok := lang.Timecodes.Words(ctx, u.ID()); !ok || len(words) == 0 {
					issue(u.BaseID(), IssueEasyReadDesync)
				}
			}
		}
	}
	return r, nil
}

// candidates returns the elements that would be units if they had audio.
func candidates(doc *page.Document) []page.Node {
	var out []page.Node
	doc.Main().Walk(func(n page.Node) bool {
		if page.IsNavigation(n) {
			return false
		}
		id, ph := n.ID(), n.PlaceholderID()
		if id == "" && ph == "" {
			return true
		}
		if content.IsELI5ID(id) || content.IsELI5ID(ph) {
			return true
		}
		out = append(out, n)
		return true
	})
	return out
}
