package highlight

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// ActiveStyle marks the word being spoken (yellow background, black text).
	ActiveStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("226")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	// GlossaryStyle marks glossary terms.
	GlossaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"}).
			Underline(true)
)

// Render draws the spans of c separated by spaces, with the active span
// and glossary terms styled.
func Render(c Container) string {
	var sb strings.Builder
	for i, s := range c.Spans {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch {
		case i == c.Active:
			sb.WriteString(ActiveStyle.Render(s.Text))
		case s.Glossary != nil:
			sb.WriteString(GlossaryStyle.Render(s.Text))
		default:
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}
