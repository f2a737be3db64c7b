package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderDetail renders the state history and last message of an action
func (m MainModel) renderDetail(item Item, maxWidth int) string {
	content := strings.Builder{}

	header := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Render(Wrap(fmt.Sprintf("%s / %s | %s", item.Stage, item.Action, item.Category), maxWidth))
	fmt.Fprintf(&content, "%s\n\n", header)

	fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Bold(true).Render("History:"))
	for _, entry := range item.History {
		fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Faint(true).Render(WrapLines(entry, maxWidth)))
	}

	if item.Message != "" {
		fmt.Fprintln(&content)
		fmt.Fprintln(&content, m.styles.StatusStyle(item.Status).Render(item.Status+":"))
		fmt.Fprint(&content, lipgloss.NewStyle().Foreground(m.styles.StatusColor(item.Status)).Render(WrapLines(item.Message, maxWidth)))
	}

	return content.String()
}

// updateDetailContent updates the viewport with content from the selected item
func (m *MainModel) updateDetailContent(item Item) {
	maxWidth := m.detailViewport.Width - 2
	m.detailViewport.SetContent(m.renderDetail(item, maxWidth))
}

// renderDetailPanel renders the right panel with detail viewport
func (m MainModel) renderDetailPanel(width, height int) string {
	borderColor := m.styles.BorderColor
	if m.detailFocused {
		borderColor = m.styles.AccentBlue
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(width - 2).
		Height(height)

	item, ok := m.listView.GetSelectedItem()
	if !ok {
		placeholder := lipgloss.NewStyle().Padding(0, 1).Render(" ")
		return lipgloss.JoinVertical(lipgloss.Left, placeholder,
			panel.Align(lipgloss.Center, lipgloss.Center).Foreground(m.styles.TextSecondary).Faint(true).
				Render("No matching actions"))
	}

	headerRow := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Padding(0, 1).
		Render(Truncate("Action: "+item.Action, width-2, true))
	return lipgloss.JoinVertical(lipgloss.Left, headerRow, panel.Render(m.detailViewport.View()))
}
