package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/beadsync/pkg/model"
)

var (
	ColorText     = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext  = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted    = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorPrimary  = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorWarning  = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger   = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorPulse    = lipgloss.AdaptiveColor{Light: "#FFF3B0", Dark: "#5A4A00"}
	ColorPulseDim = lipgloss.AdaptiveColor{Light: "#FFF9DB", Dark: "#3A3320"}

	ColorStatusOpen       = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorStatusInProgress = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorStatusBlocked    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorStatusClosed     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}
)

// Theme holds the styles the board renders with. Building it from a
// renderer keeps color detection tied to the output the board writes to.
type Theme struct {
	Renderer *lipgloss.Renderer

	Column        lipgloss.Style
	ColumnFocused lipgloss.Style
	Header        lipgloss.Style
	HeaderStats   lipgloss.Style
	Card          lipgloss.Style
	CardSelected  lipgloss.Style
	PulseStrong   lipgloss.Style
	PulseFaded    lipgloss.Style
	Muted         lipgloss.Style
	Error         lipgloss.Style
	StatusBar     lipgloss.Style
}

// DefaultTheme builds the standard palette.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Theme{
		Renderer: r,
		Column: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1),
		ColumnFocused: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1),
		Header:       r.NewStyle().Bold(true).Foreground(ColorPrimary),
		HeaderStats:  r.NewStyle().Foreground(ColorSubtext),
		Card:         r.NewStyle().Foreground(ColorText),
		CardSelected: r.NewStyle().Foreground(ColorText).Bold(true).Reverse(true),
		PulseStrong:  r.NewStyle().Foreground(ColorText).Background(ColorPulse).Bold(true),
		PulseFaded:   r.NewStyle().Foreground(ColorText).Background(ColorPulseDim),
		Muted:        r.NewStyle().Foreground(ColorMuted),
		Error:        r.NewStyle().Foreground(ColorDanger).Bold(true),
		StatusBar:    r.NewStyle().Foreground(ColorSubtext),
	}
}

// StatusColor returns the accent for a status. Custom statuses use the
// primary color.
func StatusColor(s model.Status) lipgloss.AdaptiveColor {
	switch s {
	case model.StatusOpen:
		return ColorStatusOpen
	case model.StatusInProgress:
		return ColorStatusInProgress
	case model.StatusBlocked:
		return ColorStatusBlocked
	case model.StatusClosed, model.StatusDone, model.StatusResolved, model.StatusCancelled:
		return ColorStatusClosed
	default:
		return ColorPrimary
	}
}

// PriorityColor returns the accent for a priority badge.
func PriorityColor(level int) lipgloss.AdaptiveColor {
	switch level {
	case 0:
		return ColorDanger
	case 1:
		return ColorWarning
	default:
		return ColorMuted
	}
}
