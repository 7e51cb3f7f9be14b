package cmd

import "github.com/charmbracelet/lipgloss"

// Scribe color palette
var (
	ColorAccent = lipgloss.Color("#A8D8EA")
	ColorMuted  = lipgloss.Color("#596E79")
	ColorGood   = lipgloss.Color("#4ECDC4")
	ColorAlert  = lipgloss.Color("#FF6B6B")
	ColorWarn   = lipgloss.Color("#FFE66D")
)

var (
	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorMuted)

	StyleLabel = lipgloss.NewStyle().Foreground(ColorMuted).Width(16)
	StyleValue = lipgloss.NewStyle()
	StyleCount = lipgloss.NewStyle().Width(14).Align(lipgloss.Right)

	StyleStatusGood = lipgloss.NewStyle().Foreground(ColorGood).Bold(true)
	StyleStatusBad  = lipgloss.NewStyle().Foreground(ColorAlert).Bold(true)
	StyleStatusWarn = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)

	StyleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)
)

// row renders one "label  value" line.
func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, StyleLabel.Render(label), StyleValue.Render(value))
}
