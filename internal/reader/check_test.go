package reader

import (
	"context"
	"testing"

	"github.com/dgnsrekt/readalong/internal/content"
)

func TestCheck(t *testing.T) {
	f := newFixture(t)

	r, err := Check(context.Background(), f.bundle)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if r.Pages != 2 || r.Languages != 2 || r.Units != 6 {
		t.Errorf("report totals = %d pages, %d languages, %d units", r.Pages, r.Languages, r.Units)
	}

	tests := []struct {
		kind IssueKind
		want int
	}{
		{IssueNoAudio, 2},
		{IssueNoTimecodes, 5},
		{IssueEasyReadDesync, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := r.Count(tt.kind); got != tt.want {
				t.Errorf("Count = %d, want %d (issues %+v)", got, tt.want, r.Issues)
			}
		})
	}

	found := false
	for _, is := range r.Issues {
		if is.Kind == IssueNoAudio && is.Lang == "es" && is.ID == "img1" && is.Page == "pages/01.html" {
			found = true
		}
		if is.Kind == IssueEasyReadDesync && (is.Lang != "en" || is.ID != "p1") {
			t.Errorf("unexpected desync issue %+v", is)
		}
	}
	if !found {
		t.Errorf("missing no-audio issue for es img1: %+v", r.Issues)
	}
}

func TestCheckDesyncFollowsCatalog(t *testing.T) {
	root := writeBundle(t, map[string]string{
		"book.yml": "title: Roots\nlanguages: [en]\npages: [pages/01.html]\n",
		"pages/01.html": `<html><body><main>
<h1 data-id="h1">Roots</h1>
<div class="word-card"><p data-id="w1">Root</p></div>
</main></body></html>`,
		"i18n/en/audio.json":        `{"h1":"h1.mp3","easyread-h1":"er-h1.mp3","w1":"w1.mp3","easyread-w1":"er-w1.mp3"}`,
		"i18n/en/translations.json": `{"easyread-h1":"Roots!","easyread-w1":"A root"}`,
		"i18n/en/timecodes.json": `{
			"h1":{"timecodes":{"0":{"word_timestamps":[{"text":"Roots","start":0,"end":0.4}]}}},
			"w1":{"timecodes":{"0":{"word_timestamps":[{"text":"Root","start":0,"end":0.4}]}}}}`,
	})
	b, err := content.Open(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	r, err := Check(context.Background(), b)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if n := r.Count(IssueEasyReadDesync); n != 0 {
		t.Errorf("units keeping standard audio were reported: %+v", r.Issues)
	}
}
