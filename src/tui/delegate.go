package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	listRenderingOverhead = 10
	statusWidth           = 10
	maxStageWidth         = 12
	maxActionWidth        = 24
)

// Delegate renders action items as table rows.
type Delegate struct {
	StageWidth  int
	ActionWidth int
	styles      *StyleConfig
}

// NewDelegate creates a new delegate with default styles
func NewDelegate() Delegate {
	return NewDelegateWithStyles(DefaultStyles())
}

// NewDelegateWithStyles creates a new delegate with custom styles
func NewDelegateWithStyles(styles *StyleConfig) Delegate {
	return Delegate{StageWidth: 5, ActionWidth: 6, styles: styles}
}

// SetColumnWidths sizes the stage and action columns to the longest names.
func (d *Delegate) SetColumnWidths(items []Item) {
	d.StageWidth, d.ActionWidth = 5, 6
	for _, item := range items {
		d.StageWidth = max(d.StageWidth, VisualWidth(item.Stage))
		d.ActionWidth = max(d.ActionWidth, VisualWidth(item.Action))
	}
	d.StageWidth = min(d.StageWidth, maxStageWidth)
	d.ActionWidth = min(d.ActionWidth, maxActionWidth)
}

func (d Delegate) Height() int  { return 1 }
func (d Delegate) Spacing() int { return 0 }

func (d Delegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

// Render renders a list item
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(Item)
	if !ok {
		return
	}

	stageCol := TruncateAndPad(entry.Stage, d.StageWidth, true)
	actionCol := TruncateAndPad(entry.Action, d.ActionWidth, true)
	statusCol := TruncateAndPad(entry.Status, statusWidth, false)

	// Fixed columns: icon (1) + stage + action + status + separators (12)
	fixedWidth := 1 + d.StageWidth + d.ActionWidth + statusWidth + 12
	availableWidth := m.Width() - fixedWidth - listRenderingOverhead

	var snippet string
	if availableWidth > 0 {
		snippet = TruncateAndPad(CleanLogText(entry.Message), availableWidth, true)
	}

	icon := d.styles.StatusStyle(entry.Status).Render(statusIcon(entry.Status))
	line := fmt.Sprintf("%s │ %s │ %s │ %s", stageCol, actionCol, statusCol, snippet)
	if m.Width() > 2 {
		line = runewidth.Truncate(line, m.Width()-2, "")
	}

	style := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if index == m.Index() {
		style = style.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}

	fmt.Fprint(w, icon+" "+style.Render(line))
}
