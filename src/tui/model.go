// Package tui provides the terminal view that follows pipeline executions
// as their state changes arrive from the broker.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"stackline/src/contracts"
	"stackline/src/platform"
)

// Status of the watch session.
type Status int

const (
	StatusWaiting Status = iota
	StatusWatching
	StatusClosed
)

// ChangeMsg delivers one state change to the model.
type ChangeMsg platform.StateChange

// closedMsg reports that the change stream ended.
type closedMsg struct{}

// MainModel is the Bubble Tea model of the watch view: a header with the
// execution status, the action list on the left and the selected action's
// history on the right.
type MainModel struct {
	changes <-chan platform.StateChange
	styles  *StyleConfig
	now     func() time.Time

	header         Header
	listView       View
	detailViewport viewport.Model
	progress       ProgressModel

	pipeline    string
	executionID string
	items       []Item
	index       map[string]int

	status        Status
	ready         bool
	detailFocused bool
	searchMode    bool
	searchQuery   string
	width         int
	height        int
}

// NewMainModel creates the watch model reading from changes. pipeline
// labels the header until the first change names an execution.
func NewMainModel(changes <-chan platform.StateChange, pipeline string) MainModel {
	styles := DefaultStyles()
	return MainModel{
		changes:  changes,
		styles:   styles,
		now:      time.Now,
		header:   NewHeader(pipeline, styles),
		listView: NewView(styles),
		progress: NewProgressModel(),
		pipeline: pipeline,
		index:    map[string]int{},
	}
}

// Start runs the watch view until the user quits or ctx is done.
func Start(ctx context.Context, changes <-chan platform.StateChange, pipeline string) error {
	p := tea.NewProgram(NewMainModel(changes, pipeline), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(m.progress.Tick, waitForChange(m.changes))
}

func waitForChange(changes <-chan platform.StateChange) tea.Cmd {
	return func() tea.Msg {
		change, ok := <-changes
		if !ok {
			return closedMsg{}
		}
		return ChangeMsg(change)
	}
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.detailViewport = viewport.New(0, 0)
			m.ready = true
		}
		m.resizeComponents()
		return m, nil

	case ChangeMsg:
		m.apply(platform.StateChange(msg))
		return m, waitForChange(m.changes)

	case closedMsg:
		m.status = StatusClosed
		m.progress.SetStatus("Stream closed")
		return m, nil

	case tea.KeyMsg:
		if m.searchMode {
			return m.updateSearch(msg), nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			m.searchMode = true
			m.header.SetSearch(m.searchQuery, true)
			return m, nil
		case "enter":
			m.detailFocused = true
			return m, nil
		case "esc":
			if m.detailFocused {
				m.detailFocused = false
			} else if m.searchQuery != "" {
				m.searchQuery = ""
				m.header.SetSearch("", false)
				m.applyFilter()
			}
			return m, nil
		}

		if m.detailFocused {
			var cmd tea.Cmd
			m.detailViewport, cmd = m.detailViewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.listView, cmd = m.listView.Update(msg)
		if item, ok := m.listView.GetSelectedItem(); ok {
			m.updateDetailContent(item)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.progress, cmd = m.progress.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m MainModel) updateSearch(msg tea.KeyMsg) MainModel {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.searchMode = false
	case tea.KeyBackspace:
		if r := []rune(m.searchQuery); len(r) > 0 {
			m.searchQuery = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.searchQuery += " "
	case tea.KeyRunes:
		m.searchQuery += string(msg.Runes)
	}
	m.header.SetSearch(m.searchQuery, m.searchMode)
	m.applyFilter()
	return m
}

// apply folds a state change into the view. A pipeline STARTED for a new
// execution resets the action list.
func (m *MainModel) apply(c platform.StateChange) {
	if c.ExecutionID != m.executionID {
		newRun := c.Level() == "pipeline" && c.State == contracts.StateStarted
		if m.executionID != "" && !newRun {
			return
		}
		m.items = nil
		m.index = map[string]int{}
	}
	m.status = StatusWatching
	m.executionID = c.ExecutionID
	m.pipeline = c.Pipeline
	status := statusFromState(c.State)

	switch c.Level() {
	case "pipeline":
		m.header.SetExecution(c.Pipeline, c.ExecutionID, status)
		if status != contracts.StatusInProgress {
			m.header.SetStage("")
		}
	case "stage":
		if status == contracts.StatusInProgress {
			m.header.SetStage(c.Stage)
		}
	default:
		key := c.Stage + "/" + c.Action
		i, ok := m.index[key]
		if !ok {
			i = len(m.items)
			m.index[key] = i
			m.items = append(m.items, Item{Stage: c.Stage, Action: c.Action, Category: c.Category})
		}
		item := &m.items[i]
		item.Status = status
		item.Message = c.Message
		item.Updated = m.now()
		entry := fmt.Sprintf("%s %s", item.Updated.Format("15:04:05"), c.State)
		if c.Message != "" {
			entry += ": " + c.Message
		}
		item.History = append(item.History, entry)
	}
	m.applyFilter()
}
