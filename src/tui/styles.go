package tui

import (
	"github.com/charmbracelet/lipgloss"

	"stackline/src/contracts"
)

// StyleConfig holds all customizable style colors for the watch UI.
type StyleConfig struct {
	// Primary colors
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	DarkBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color

	// Status colors
	Pending    lipgloss.Color
	InProgress lipgloss.Color
	Succeeded  lipgloss.Color
	Failed     lipgloss.Color
	Stopped    lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		AccentBlue:     lipgloss.Color("#4285F4"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),
		Pending:        lipgloss.Color("#9AA0A6"),
		InProgress:     lipgloss.Color("#FBBC04"),
		Succeeded:      lipgloss.Color("#34A853"),
		Failed:         lipgloss.Color("#EA4335"),
		Stopped:        lipgloss.Color("#A142F4"),
	}
}

// StatusColor returns the color for an execution status.
func (s *StyleConfig) StatusColor(status string) lipgloss.Color {
	switch status {
	case contracts.StatusInProgress:
		return s.InProgress
	case contracts.StatusSucceeded:
		return s.Succeeded
	case contracts.StatusFailed:
		return s.Failed
	case contracts.StatusStopped:
		return s.Stopped
	default:
		return s.Pending
	}
}

// StatusStyle renders a status in its color.
func (s *StyleConfig) StatusStyle(status string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.StatusColor(status)).Bold(true)
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}
