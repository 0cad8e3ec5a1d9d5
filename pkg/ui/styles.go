package ui

import "github.com/charmbracelet/lipgloss"

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	alertRed    = lipgloss.Color("#FF0000")
	dimGray     = lipgloss.Color("#626262")
)

// styles are bound to one renderer so color detection follows the
// printer's writer rather than stdout
type styles struct {
	label     lipgloss.Style
	value     lipgloss.Style
	success   lipgloss.Style
	warning   lipgloss.Style
	failure   lipgloss.Style
	highlight lipgloss.Style
	dim       lipgloss.Style
	title     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		label:     r.NewStyle().Foreground(neonCyan).Bold(true),
		value:     r.NewStyle().Foreground(neonYellow),
		success:   r.NewStyle().Foreground(neonGreen).Bold(true),
		warning:   r.NewStyle().Foreground(neonOrange).Bold(true),
		failure:   r.NewStyle().Foreground(alertRed).Bold(true),
		highlight: r.NewStyle().Foreground(neonMagenta),
		dim:       r.NewStyle().Foreground(dimGray),
		title: r.NewStyle().
			Background(neonMagenta).
			Foreground(lipgloss.Color("#0A0E27")).
			Bold(true).
			Padding(0, 1),
	}
}
