package report

import "charm.land/lipgloss/v2"

var (
	colorGreen  = lipgloss.Color("#04B575")
	colorRed    = lipgloss.Color("#FF4672")
	colorYellow = lipgloss.Color("#FDFF90")
	colorCyan   = lipgloss.Color("#00E5FF")
	colorSubtle = lipgloss.Color("#626262")
)

var (
	upHeader     = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	failedHeader = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	downHeader   = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	hostStyle    = lipgloss.NewStyle().Foreground(colorCyan)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	subtleStyle  = lipgloss.NewStyle().Foreground(colorSubtle)
	diffAdd      = lipgloss.NewStyle().Foreground(colorGreen)
	diffDel      = lipgloss.NewStyle().Foreground(colorRed)
	diffHdr      = lipgloss.NewStyle().Foreground(colorCyan)
)
