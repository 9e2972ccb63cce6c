package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	HomeDir      string `env:"HOME"`
	GlamourStyle string `env:"GLAMOUR_STYLE"`
	EnableMouse  bool
	MaxWidth     uint

	// Bundle location, a directory or URL
	Path string

	// Page to open instead of resuming; negative resumes
	StartPage int

	// Watch local pages and reload them when they change
	WatchPages bool `env:"READALONG_WATCH" envDefault:"true"`

	// Subtitle popup fade duration, in and out
	PopupFade time.Duration `env:"READALONG_POPUP_FADE" envDefault:"150ms"`

	// For debugging the UI
	HighPerformancePager bool `env:"READALONG_HIGH_PERFORMANCE_PAGER" envDefault:"false"`
}
