package ui

import (
	"strings"
	"testing"

	"github.com/dgnsrekt/readalong/internal/playback"
	"github.com/dgnsrekt/readalong/internal/prefs"
)

func TestPlaybackStatusCompact(t *testing.T) {
	tests := []struct {
		name     string
		state    playback.State
		total    int
		contains []string
		excludes []string
	}{
		{
			name:     "stopped",
			state:    playback.State{Index: 0, Speed: 1},
			total:    4,
			contains: []string{"■", "1/4"},
			excludes: []string{"▶", "×"},
		},
		{
			name:     "playing",
			state:    playback.State{Playing: true, Index: 2, Speed: 1.25},
			total:    4,
			contains: []string{"▶", "3/4", "1.25×"},
		},
		{
			name:     "past the end",
			state:    playback.State{Index: 9, Speed: 0.5},
			total:    4,
			contains: []string{"4/4", "0.5×"},
		},
		{
			name:     "empty page",
			state:    playback.State{Speed: 1},
			excludes: []string{"/"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newPlaybackStatus(tt.state, tt.total, "").compact("")
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("%q missing %q", out, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(out, s) {
					t.Errorf("%q should not contain %q", out, s)
				}
			}
		})
	}
}

func TestPlaybackStatusSpinner(t *testing.T) {
	s := newPlaybackStatus(playback.State{Playing: true, Speed: 1}, 1, "")
	if out := s.compact("⣾"); !strings.Contains(out, "⣾") || strings.Contains(out, "▶") {
		t.Errorf("spinner frame not used: %q", out)
	}
}

func TestModesNote(t *testing.T) {
	tests := []struct {
		modes prefs.Modes
		want  string
	}{
		{prefs.Modes{Language: "en"}, "EN"},
		{prefs.Modes{Language: "es", EasyRead: true}, "ES · easy-read"},
		{prefs.Modes{Language: "en", DescribeImages: true, Autoplay: true}, "EN · images · autoplay"},
	}
	for _, tt := range tests {
		if got := modesNote(tt.modes); got != tt.want {
			t.Errorf("modesNote(%+v) = %q, want %q", tt.modes, got, tt.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	tests := map[float64]string{1: "1×", 1.5: "1.5×", 0.75: "0.75×", 2: "2×"}
	for in, want := range tests {
		if got := formatSpeed(in); got != want {
			t.Errorf("formatSpeed(%v) = %q, want %q", in, got, want)
		}
	}
}
