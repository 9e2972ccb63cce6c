package glossary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown formats an entry as a small markdown document.
func (e *Entry) Markdown() string {
	var sb strings.Builder
	sb.WriteString("## ")
	if e.Emoji != "" {
		sb.WriteString(e.Emoji + " ")
	}
	sb.WriteString(e.Term + "\n\n")
	sb.WriteString(e.Definition + "\n")
	if len(e.Variations) > 0 {
		sb.WriteString("\n*Also:* " + strings.Join(e.Variations, ", ") + "\n")
	}
	return sb.String()
}

// Render renders an entry for the terminal. style is a glamour style
// name; "auto" picks one from the terminal background.
func Render(e *Entry, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(e.Markdown())
	if err != nil {
		return "", fmt.Errorf("error rendering definition: %w", err)
	}
	return strings.TrimSpace(out), nil
}
