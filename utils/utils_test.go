package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("READALONG_TEST_DIR", "books")

	tests := []struct {
		in   string
		want string
	}{
		{"~/x", filepath.Join(home, "x")},
		{"$READALONG_TEST_DIR/a", "books/a"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveBook(t *testing.T) {
	got, err := ResolveBook("https://example.com/book")
	if err != nil || got != "https://example.com/book" {
		t.Errorf("url = %q, %v", got, err)
	}

	got, err = ResolveBook("")
	if err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	if got != wd {
		t.Errorf("empty = %q, want %q", got, wd)
	}
}
