package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const keyEsc = "esc"

var (
	normalDim = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	green     = lipgloss.Color("#04B575")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	yellow    = lipgloss.Color("226")
)

var (
	errorTitleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().
			Foreground(gray)

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(fuchsia).
			Bold(true)

	headingStyle = lipgloss.NewStyle().Bold(true)

	imageStyle = lipgloss.NewStyle().
			Foreground(normalDim).
			Italic(true)

	inputStyle = lipgloss.NewStyle().
			Foreground(normalDim).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(midGray)

	cursorStyle = lipgloss.NewStyle().
			Foreground(yellow)

	definitionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true, false, false, false).
			BorderForeground(green)
)

func logoView() string {
	return logoStyle.Render(" Read Along ")
}
