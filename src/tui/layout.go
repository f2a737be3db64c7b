package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Rows outside the panels: help line, panel column header and the two
// panel borders.
const chromeRows = 4

// actionsShare is the fraction of the width given to the action list.
const actionsShare = 0.55

type panels struct {
	height      int
	actionWidth int
	detailWidth int
}

func (m MainModel) panels() panels {
	actionWidth := int(float64(m.width) * actionsShare)
	return panels{
		height:      max(1, m.height-lipgloss.Height(m.header.Render(m.width))-chromeRows),
		actionWidth: actionWidth,
		detailWidth: m.width - actionWidth,
	}
}

// View renders the header over the action list and detail panels. Until the
// first action is known only the execution progress is shown.
func (m MainModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := m.header.Render(m.width)
	if len(m.items) == 0 {
		waiting := lipgloss.NewStyle().
			Width(m.width).
			Align(lipgloss.Center).
			PaddingTop(2).
			Render(m.progress.View())
		return lipgloss.JoinVertical(lipgloss.Left, header, waiting)
	}

	p := m.panels()
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderListPanel(p.actionWidth, p.height),
		m.renderDetailPanel(p.detailWidth, p.height),
	)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderHelpText())
}

type keyHint struct{ key, action string }

var (
	listHints   = []keyHint{{"j/k", "Nav"}, {"Enter", "History"}, {"/", "Search"}, {"q", "Quit"}}
	detailHints = []keyHint{{"j/k", "Scroll"}, {"Esc", "Back"}, {"q", "Quit"}}
)

func (m MainModel) renderHelpText() string {
	keyStyle := lipgloss.NewStyle().Foreground(m.styles.PrimaryBlue).Bold(true)
	sep := " " + lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Render("•") + " "

	hints := listHints
	if m.detailFocused {
		hints = detailHints
	}
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = keyStyle.Render(h.key) + ": " + h.action
	}
	return m.styles.HelpStyle().MaxWidth(m.width).Render(strings.Join(parts, sep))
}

// resizeComponents fits the list and viewport to the current window.
func (m *MainModel) resizeComponents() {
	p := m.panels()

	m.listView.SetSize(p.actionWidth-2, p.height)
	m.detailViewport.Width = max(0, p.detailWidth-2)
	m.detailViewport.Height = max(0, p.height-1)

	if item, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(item)
	}
}
