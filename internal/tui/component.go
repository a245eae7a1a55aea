package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Component is the interface for all TUI components.
type Component interface {
	// Init initializes the component.
	Init() tea.Cmd

	// Update handles messages and returns the updated component.
	Update(msg tea.Msg) (Component, tea.Cmd)

	// View renders the component.
	View() string

	// Title returns the component title.
	Title() string

	// SetSize sets the component dimensions.
	SetSize(width, height int)
}

// Panel padding constants for comfortable spacing
const (
	PanelPaddingV = 0
	PanelPaddingH = 1
)

// Shared colors.
var (
	ColorAccent  = lipgloss.Color("62")
	ColorMuted   = lipgloss.Color("240")
	ColorError   = lipgloss.Color("196")
	ColorSuccess = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
)

// Shared styles.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	SubheadingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorMuted)

	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// BorderStyle returns the panel border style for the focus state.
func BorderStyle(focused bool) lipgloss.Style {
	color := ColorMuted
	if focused {
		color = ColorAccent
	}
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(PanelPaddingV, PanelPaddingH)
}
