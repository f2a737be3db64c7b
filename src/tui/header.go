package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"stackline/src/contracts"
)

// Header represents the top status bar component.
type Header struct {
	pipeline    string
	executionID string
	status      string
	stage       string
	searchQuery string
	searchMode  bool
	styles      *StyleConfig
}

// NewHeader creates a new header
func NewHeader(pipeline string, styles *StyleConfig) Header {
	return Header{pipeline: pipeline, status: contracts.StatusPending, styles: styles}
}

// SetExecution records the execution shown in the header.
func (h *Header) SetExecution(pipeline, executionID, status string) {
	if pipeline != "" {
		h.pipeline = pipeline
	}
	h.executionID = executionID
	h.status = status
}

// SetStage records the stage currently running.
func (h *Header) SetStage(stage string) {
	h.stage = stage
}

// SetSearch updates the search state
func (h *Header) SetSearch(query string, mode bool) {
	h.searchQuery = query
	h.searchMode = mode
}

// Render renders the header
func (h Header) Render(width int) string {
	bold := lipgloss.NewStyle().Foreground(h.styles.PrimaryBlue).Bold(true).Padding(0, 2)

	name := h.pipeline
	if name == "" {
		name = "waiting for executions"
	}
	title := bold.Render(name)

	exec := ""
	if h.executionID != "" {
		exec = lipgloss.NewStyle().Foreground(h.styles.TextSecondary).Padding(0, 1).
			Render(Truncate(h.executionID, 12, false))
	}
	status := h.styles.StatusStyle(h.status).Padding(0, 2).
		Render(fmt.Sprintf("%s %s", statusIcon(h.status), h.status))

	stage := ""
	if h.stage != "" {
		stage = bold.Render("Stage: " + h.stage)
	}

	var searchText string
	switch {
	case h.searchMode:
		searchText = fmt.Sprintf("Search: %s█", h.searchQuery)
	case h.searchQuery != "":
		searchText = fmt.Sprintf("Search: %s", h.searchQuery)
	default:
		searchText = "[/] to search"
	}
	searchStyle := lipgloss.NewStyle().Foreground(h.styles.TextSecondary).Padding(0, 2)
	if h.searchMode {
		searchStyle = searchStyle.Foreground(h.styles.PrimaryBlue)
	}

	left := lipgloss.JoinHorizontal(lipgloss.Left, title, exec, status, stage, searchStyle.Render(searchText))
	if lipgloss.Width(left) > width {
		left = lipgloss.JoinHorizontal(lipgloss.Left, title, status)
	}

	headerStyle := lipgloss.NewStyle().
		Background(h.styles.DarkBackground).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		MaxWidth(width)

	spacer := lipgloss.NewStyle().Width(max(0, width-lipgloss.Width(left))).Render("")
	return headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Left, left, spacer))
}
