package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var logo = []string{
	"┌─┐┌┬┐┌─┐┌─┐┬┌─┬  ┬┌┐┌┌─┐",
	"└─┐ │ ├─┤│  ├┴┐│  ││││├┤ ",
	"└─┘ ┴ ┴ ┴└─┘┴ ┴┴─┘┴┘└┘└─┘",
}

var logoGradientColors = []string{"#5DADE2", "#3498DB", "#2874A6"}

// ProgressModel is the waiting screen shown until the first state change arrives.
type ProgressModel struct {
	spinner spinner.Model
	status  string
}

func NewProgressModel() ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	return ProgressModel{spinner: s, status: "Waiting for pipeline executions"}
}

// Tick starts the spinner.
func (m ProgressModel) Tick() tea.Msg {
	return m.spinner.Tick()
}

// SetStatus replaces the waiting message.
func (m *ProgressModel) SetStatus(status string) {
	m.status = status
}

func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m ProgressModel) View() string {
	var lines []string
	for i, line := range logo {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(logoGradientColors[i%len(logoGradientColors)])).Bold(true)
		lines = append(lines, style.Render(line))
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		strings.Join(lines, "\n"), "", m.spinner.View()+" "+m.status+"...")
}
