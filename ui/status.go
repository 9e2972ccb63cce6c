package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/readalong/internal/playback"
	"github.com/dgnsrekt/readalong/internal/prefs"
)

// playbackStatus is what the status bar shows about playback.
type playbackStatus struct {
	playing bool
	index   int
	total   int
	speed   float64
	word    string // Word being spoken, if any
}

func newPlaybackStatus(st playback.State, total int, word string) playbackStatus {
	return playbackStatus{
		playing: st.Playing,
		index:   st.Index,
		total:   total,
		speed:   st.Speed,
		word:    word,
	}
}

// compact returns the playback indicator. spin is drawn while playing.
func (s playbackStatus) compact(spin string) string {
	icon, color := "■", lipgloss.Color("#888888")
	if s.playing {
		icon, color = "▶", lipgloss.Color("#00FF00")
		if spin != "" {
			icon = spin
		}
	}
	out := lipgloss.NewStyle().Foreground(color).Render(icon)

	if s.total > 0 {
		pos := min(s.index+1, s.total)
		out += subtleStyle.Render(fmt.Sprintf(" %d/%d", max(pos, 1), s.total))
	}
	if s.speed > 0 && s.speed != 1 {
		out += subtleStyle.Render(" " + formatSpeed(s.speed))
	}
	if s.playing && s.word != "" {
		out += " " + s.word
	}
	return out
}

// modesNote lists the reading modes that are switched on.
func modesNote(m prefs.Modes) string {
	parts := []string{strings.ToUpper(m.Language)}
	if m.EasyRead {
		parts = append(parts, "easy-read")
	}
	if m.DescribeImages {
		parts = append(parts, "images")
	}
	if m.Autoplay {
		parts = append(parts, "autoplay")
	}
	return strings.Join(parts, " · ")
}

func formatSpeed(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".") + "×"
}
