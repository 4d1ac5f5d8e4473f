package tui

import "github.com/charmbracelet/lipgloss"

// Shift colours adapt to light and dark terminals.
var (
	accent  = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	muted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	added   = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	failed  = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	overlap = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	titleStyle    = fg(accent).Bold(true).MarginBottom(1)
	subtitleStyle = fg(muted).Italic(true).MarginBottom(1)
	helpStyle     = fg(muted).MarginTop(1)
	dimStyle      = fg(muted)

	// Review table frame; the cursor row is drawn in the accent colour.
	boxStyle          = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false).BorderForeground(accent)
	highlightStyle    = fg(accent).Bold(true)
	focusedLabelStyle = fg(accent).Underline(true)

	successStyle = fg(added).Bold(true)
	errorStyle   = fg(failed).Bold(true)
	// Conflicts and advisories.
	warningStyle = fg(overlap)
)
